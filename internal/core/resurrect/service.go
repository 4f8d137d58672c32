// Package resurrect turns submitted URLs into resurrection records and
// answers chat messages addressed to them.
package resurrect

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/seckatie/echoes/internal/core"
	"github.com/seckatie/echoes/internal/core/persona"
	"github.com/seckatie/echoes/internal/core/store"
)

// Index is the archive lookup used by Create.
type Index interface {
	Query(ctx context.Context, url string) ([]store.Snapshot, error)
}

// Options configures a Service.
type Options struct {
	// Mode is core.CompletionDeferred (default) or core.CompletionImmediate.
	Mode string
	// Delay is the wait before a deferred completion fires.
	Delay time.Duration
	// Selector picks chat replies. A random selector is used when nil.
	Selector *persona.Selector
	// NewID issues record ids. store.NewID is used when nil.
	NewID  func() string
	Now    func() time.Time
	Logger *slog.Logger
}

// Service orchestrates the archive index, the store and the scheduler.
type Service struct {
	index     Index
	store     store.Store
	scheduler *Scheduler
	selector  *persona.Selector

	mode   string
	delay  time.Duration
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

// Created is the result of Create.
type Created struct {
	ID        string
	Status    string
	Message   string
	Snapshots []store.Snapshot
	Record    store.Record
}

// Source cites the capture a chat reply is drawn from.
type Source struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ChatReply is the result of Chat.
type ChatReply struct {
	Reply       string
	Topic       persona.Topic
	Sources     []Source
	Personality store.Personality
}

// New builds a Service.
func New(index Index, st store.Store, opts Options) *Service {
	if opts.Mode == "" {
		opts.Mode = core.CompletionDeferred
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Selector == nil {
		opts.Selector = persona.NewSelector(nil)
	}
	if opts.NewID == nil {
		opts.NewID = store.NewID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		index:     index,
		store:     st,
		scheduler: NewScheduler(),
		selector:  opts.Selector,
		mode:      opts.Mode,
		delay:     opts.Delay,
		newID:     opts.NewID,
		now:       opts.Now,
		logger:    opts.Logger,
	}
}

// Create resolves url against the archive index and stores a new
// resurrection. Nothing is stored when the lookup fails or finds nothing.
func (s *Service) Create(ctx context.Context, url string) (Created, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Created{}, core.Validation(core.MsgURLRequired)
	}

	snapshots, err := s.index.Query(ctx, url)
	if err != nil {
		var cerr *core.Error
		if errors.As(err, &cerr) {
			return Created{}, cerr
		}
		return Created{}, core.Upstream(core.MsgUpstreamFailure, err)
	}
	if len(snapshots) == 0 {
		return Created{}, core.NotFound(core.MsgNoSnapshots)
	}

	rec := store.Record{
		ID:               s.newID(),
		URL:              url,
		Status:           core.StatusPending,
		Snapshots:        snapshots,
		SelectedSnapshot: snapshots[0],
		CreatedAt:        s.now().UTC(),
		Personality:      persona.Derive(url, snapshots[0].CapturedAt),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return Created{}, err
	}
	s.logger.Info("resurrection summoned", "id", rec.ID, "url", url, "snapshots", len(snapshots))

	created := Created{
		ID:        rec.ID,
		Status:    core.StatusPending,
		Message:   "The séance begins...",
		Snapshots: firstN(snapshots, core.ResponseSnapshotCount),
		Record:    rec,
	}

	if s.mode == core.CompletionImmediate {
		// the record is already stored, so a client hanging up must not
		// strand it pending
		done, _, err := s.store.Complete(context.WithoutCancel(ctx), rec.ID)
		if err != nil {
			return Created{}, err
		}
		created.Status = done.Status
		created.Message = "Resurrection complete. The site lives again."
		created.Record = done
		return created, nil
	}

	id := rec.ID
	s.scheduler.After(id, s.delay, func() { s.complete(id) })
	return created, nil
}

// complete is the deferred transition. A record that vanished or already
// completed is not an error.
func (s *Service) complete(id string) {
	_, changed, err := s.store.Complete(context.Background(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("deferred completion failed", "id", id, "error", err)
		}
		return
	}
	if changed {
		s.logger.Info("resurrection complete", "id", id)
	}
}

// Get returns one resurrection.
func (s *Service) Get(ctx context.Context, id string) (store.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Record{}, core.NotFound(core.MsgGhostFaded)
		}
		return store.Record{}, err
	}
	return rec, nil
}

// List returns every resurrection, newest first.
func (s *Service) List(ctx context.Context) ([]store.Record, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []store.Record{}
	}
	return recs, nil
}

// Chat answers message in the voice of the resurrection's ghost.
func (s *Service) Chat(ctx context.Context, id, message string) (ChatReply, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return ChatReply{}, err
	}
	if rec.Personality.IsZero() {
		return ChatReply{}, core.Validation(core.MsgNoPersonality)
	}

	reply, topic := s.selector.ReplyWithTopic(rec, message)
	return ChatReply{
		Reply: reply,
		Topic: topic,
		Sources: []Source{{
			Text: "Original content from " + rec.SelectedSnapshot.CapturedAt,
			URL:  rec.SelectedSnapshot.ArchiveURL,
		}},
		Personality: rec.Personality,
	}, nil
}

// Mode returns the configured completion mode.
func (s *Service) Mode() string {
	return s.mode
}

// Close cancels pending completions.
func (s *Service) Close() {
	s.scheduler.Stop()
}

func firstN(snaps []store.Snapshot, n int) []store.Snapshot {
	if len(snaps) > n {
		snaps = snaps[:n]
	}
	out := make([]store.Snapshot, len(snaps))
	copy(out, snaps)
	return out
}
