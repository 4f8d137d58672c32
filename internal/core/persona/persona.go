// Package persona derives the ghost personality of a resurrected site and
// picks its chat replies.
package persona

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/seckatie/echoes/internal/core/store"
)

// Eras
const (
	EraPre2000  = "1990s"
	Era2000s    = "2000s"
	EraPost2010 = "2010s"
)

// Tones
const (
	TonePioneering = "pioneering"
	ToneNostalgic  = "nostalgic"
	ToneModern     = "modern"
)

// Derive builds the personality of url as captured at capturedAt. It is a
// pure function and never fails.
func Derive(rawURL, capturedAt string) store.Personality {
	domain := Domain(rawURL)
	prefix := capturedAt
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}

	era, tone := Era2000s, ToneNostalgic
	yearText := prefix
	if year, ok := leadingInt(prefix); ok {
		yearText = strconv.Itoa(year)
		switch {
		case year < 2000:
			era, tone = EraPre2000, TonePioneering
		case year >= 2010:
			era, tone = EraPost2010, ToneModern
		}
	}

	return store.Personality{
		Era:    era,
		Tone:   tone,
		Domain: domain,
		Greeting: fmt.Sprintf("Greetings from the %s... I am the echo of %s, preserved in digital amber since %s.",
			era, domain, yearText),
	}
}

// Domain extracts the host of rawURL. Inputs without a scheme, and inputs
// that fail to parse, fall back to everything before the first "/".
func Domain(rawURL string) string {
	if strings.Contains(rawURL, "://") {
		if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	before, _, _ := strings.Cut(rawURL, "/")
	return before
}

// leadingInt parses the digits at the start of s.
func leadingInt(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
