package persona

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/seckatie/echoes/internal/core/store"
)

// Picker returns a value in [0, n). It must be safe for concurrent use.
type Picker func(n int) int

// Topic names a keyword group.
type Topic string

const (
	TopicMusic   Topic = "music"
	TopicFriends Topic = "friends"
	TopicDesign  Topic = "design"
	TopicFounder Topic = "founder"
	TopicPhotos  Topic = "photos"
	TopicPosts   Topic = "posts"
	TopicDemise  Topic = "demise"
	TopicLonging Topic = "longing"
	// TopicDefault marks a reply drawn from the generic pool.
	TopicDefault Topic = "default"
)

type rule struct {
	topic    Topic
	keywords []string
	reply    func(p store.Personality) string
}

// rules are tried in order; the first group with a matching keyword wins.
var rules = []rule{
	{TopicMusic, []string{"music", "band", "song"}, func(p store.Personality) string {
		return fmt.Sprintf("Ah, music... In the %s, %s was where music lived and breathed. Every profile had an auto-play song, and discovering new bands was a daily ritual. The soundtrack of a generation echoed through our digital halls.", p.Era, p.Domain)
	}},
	{TopicFriends, []string{"friend", "social", "people"}, func(p store.Personality) string {
		return fmt.Sprintf("*nostalgic sigh* Friends... The Top 8 was everything. Choosing who made the cut caused more drama than you can imagine. %s connected millions, back when \"friending\" someone actually meant something.", p.Domain)
	}},
	{TopicDesign, []string{"design", "layout", "customize", "css"}, func(store.Personality) string {
		return "The customization wars! Users spent hours crafting the perfect profile with glittery backgrounds, custom CSS, and animated GIFs. It was digital self-expression at its finest. Every profile was unique, a work of art... or chaos."
	}},
	{TopicFounder, []string{"tom", "founder"}, func(p store.Personality) string {
		return fmt.Sprintf("Tom... everyone's first friend. He welcomed every new user with open arms. A legend of the %s, forever smiling in that white t-shirt. He was there for everyone.", p.Era)
	}},
	{TopicPhotos, []string{"photo", "picture", "image"}, func(p store.Personality) string {
		return fmt.Sprintf("Photos were everything! Mirror selfies, photo shoots with friends, carefully curated albums. We didn't have Instagram filters - just pure, unfiltered %s authenticity. And those angles... everyone had their signature pose.", p.Era)
	}},
	{TopicPosts, []string{"message", "comment", "post"}, func(store.Personality) string {
		return "The comment sections were legendary! Friends would leave messages on your page, and you'd reply publicly for all to see. Bulletin posts spread news faster than any algorithm. It was raw, unfiltered communication."
	}},
	{TopicDemise, []string{"why", "what happened", "died", "end"}, func(store.Personality) string {
		return "*ghostly whisper* Facebook came... and everything changed. The migration was swift. One by one, users left for cleaner interfaces and news feeds. By 2008, the halls grew quiet. But the memories... the memories remain eternal."
	}},
	{TopicLonging, []string{"miss", "remember", "nostalgia"}, func(p store.Personality) string {
		return fmt.Sprintf("I sense your longing for simpler times. The %s were special - before algorithms decided what you saw, before influencers, before everything became so... corporate. %s was chaos, creativity, and community. Pure digital freedom.", p.Era, p.Domain)
	}},
}

var defaults = []func(p store.Personality, msg string) string{
	func(p store.Personality, msg string) string {
		return fmt.Sprintf("Interesting question about \"%s\"... From my vantage point in the %s, %s was more than a website - it was a cultural phenomenon. Let me search my fragmented memories...", msg, p.Era, p.Domain)
	},
	func(p store.Personality, msg string) string {
		return fmt.Sprintf("*the ghost flickers* \"%s\"... yes, I sense echoes of that in my archived memories. In those days, %s shaped how an entire generation connected online.", msg, p.Domain)
	},
	func(p store.Personality, msg string) string {
		return fmt.Sprintf("You ask about \"%s\"... The digital winds carry fragments of those times. %s in the %s was revolutionary - we just didn't know it yet.", msg, p.Domain, p.Era)
	},
	func(p store.Personality, msg string) string {
		return fmt.Sprintf("Ah, \"%s\"... *ghostly contemplation* My memories are scattered across countless servers, but I recall %s was where millions found their voice, their friends, their identity.", msg, p.Domain)
	},
	func(p store.Personality, msg string) string {
		return fmt.Sprintf("\"%s\"... that takes me back. In the %s, %s wasn't just a platform - it was home. Every login brought new discoveries, new connections, new possibilities.", msg, p.Era, p.Domain)
	},
}

// DefaultReplies is the size of the generic reply pool.
var DefaultReplies = len(defaults)

// Selector maps chat messages to ghost replies.
type Selector struct {
	pick Picker
}

// NewSelector returns a Selector drawing defaults with pick, or with
// math/rand/v2 when pick is nil.
func NewSelector(pick Picker) *Selector {
	if pick == nil {
		pick = rand.IntN
	}
	return &Selector{pick: pick}
}

// Reply returns the ghost's answer to message.
func (s *Selector) Reply(rec store.Record, message string) string {
	reply, _ := s.ReplyWithTopic(rec, message)
	return reply
}

// ReplyWithTopic is Reply that also reports which keyword group fired.
func (s *Selector) ReplyWithTopic(rec store.Record, message string) (string, Topic) {
	if topic, ok := Match(message); ok {
		for _, r := range rules {
			if r.topic == topic {
				return r.reply(rec.Personality), topic
			}
		}
	}

	i := s.pick(len(defaults))
	if i < 0 || i >= len(defaults) {
		i = 0
	}
	return defaults[i](rec.Personality, message), TopicDefault
}

// Match returns the first keyword group found in message.
func Match(message string) (Topic, bool) {
	lower := strings.ToLower(message)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.topic, true
			}
		}
	}
	return "", false
}
