// Package relay implements the transport core of pigeon: a poll-driven
// listener that turns a single version-guarded mailbox file into a
// reliable, non-duplicating request/response queue.
//
// One poll cycle runs fetch → filter → partition → dispatch → upload →
// merge → write, strictly sequentially; a new cycle never starts before
// the previous one finishes. The mailbox file is the only shared mutable
// resource, protected by the store's compare-and-swap write rather than
// any local lock, so a concurrent producer appending requests costs at
// most a refetch-and-redo.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gitpigeon/pigeon/internal/queue"
	"github.com/gitpigeon/pigeon/pkg/envelope"
)

const (
	// DefaultPollInterval is the fixed sleep between cycles.
	DefaultPollInterval = 10 * time.Second

	// DefaultExpiryWindow is how long an unanswered or stale envelope
	// survives before it is purged.
	DefaultExpiryWindow = queue.DefaultWindow

	// maxWriteAttempts bounds refetch-and-redo within one cycle. After
	// this many conflicts the cycle is surrendered to the next poll;
	// cached responses carry over, so nothing is lost and no handler
	// runs again.
	maxWriteAttempts = 3
)

// Options configures a Listener. Client is required; everything else has
// a working default.
type Options struct {
	// Client performs the store round trips.
	Client Client

	// Cache stores handler results between write attempts. Defaults to
	// an in-memory cache; pass the SQLite journal for durability across
	// restarts.
	Cache ResponseCache

	// Clock supplies "now" for expiry decisions. Defaults to the system
	// clock.
	Clock Clock

	// Logger receives cycle-level structured logs. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// PollInterval overrides the sleep between cycles.
	PollInterval time.Duration

	// ExpiryWindow overrides the envelope expiration window.
	ExpiryWindow time.Duration

	// FileName mints side-file names for binary responses. Defaults to
	// UUIDv7 strings, which are collision-free and time-sortable.
	FileName func() string
}

// CycleStats summarizes one completed poll cycle.
type CycleStats struct {
	Fetched   int  // envelopes in the fetched collection
	Expired   int  // envelopes dropped by the expiry filter
	Pending   int  // pending envelopes after filtering
	Answered  int  // responses merged as Done this cycle
	Uploaded  int  // side files uploaded this cycle
	Wrote     bool // whether a conditional write was issued
	Conflicts int  // write conflicts absorbed by refetch-and-redo
}

// Listener drives the poll loop. Create one with NewListener, register
// handlers, then call Run.
type Listener struct {
	client     Client
	dispatcher *Dispatcher
	cache      ResponseCache
	clock      Clock
	log        *slog.Logger
	interval   time.Duration
	window     time.Duration
	fileName   func() string
}

// NewListener validates options and builds a listener.
func NewListener(opts Options) (*Listener, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("relay: Options.Client is required")
	}
	l := &Listener{
		client:     opts.Client,
		dispatcher: NewDispatcher(),
		cache:      opts.Cache,
		clock:      opts.Clock,
		log:        opts.Logger,
		interval:   opts.PollInterval,
		window:     opts.ExpiryWindow,
		fileName:   opts.FileName,
	}
	if l.cache == nil {
		l.cache = NewMemoryCache()
	}
	if l.clock == nil {
		l.clock = SystemClock{}
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	if l.interval <= 0 {
		l.interval = DefaultPollInterval
	}
	if l.window <= 0 {
		l.window = DefaultExpiryWindow
	}
	if l.fileName == nil {
		l.fileName = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	return l, nil
}

// Register binds a handler to a route. Last registration for a route wins.
func (l *Listener) Register(route string, h Handler) {
	l.dispatcher.Register(route, h)
}

// Run polls the mailbox until the context is cancelled or a fatal error
// surfaces. Transient failures (network, undecodable content, exhausted
// conflict retries) are logged and retried at the next scheduled cycle;
// auth and not-found errors stop the loop so the operator notices.
func (l *Listener) Run(ctx context.Context) error {
	l.log.Info("listener started",
		"routes", l.dispatcher.Routes(),
		"poll_interval", l.interval,
		"expiry_window", l.window,
	)

	for {
		stats, err := l.RunOnce(ctx)
		switch {
		case err == nil:
			l.log.Debug("cycle complete",
				"fetched", stats.Fetched,
				"expired", stats.Expired,
				"pending", stats.Pending,
				"answered", stats.Answered,
				"uploaded", stats.Uploaded,
				"wrote", stats.Wrote,
				"conflicts", stats.Conflicts,
			)
		case ctx.Err() != nil:
			return ctx.Err()
		case IsFatal(err):
			l.log.Error("fatal transport error, stopping", "error", err)
			return err
		default:
			l.log.Warn("cycle failed, retrying next poll", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// RunOnce executes a single poll cycle, absorbing up to maxWriteAttempts
// write conflicts by refetching and redoing the cycle. Handler results are
// cached by envelope id before the first write attempt, so a redo reuses
// them instead of re-invoking handlers.
func (l *Listener) RunOnce(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err := l.cycle(ctx, &stats)
		if err != nil && IsConflict(err) {
			stats.Conflicts++
			l.log.Debug("write conflict, refetching", "attempt", attempt)
			continue
		}
		return stats, err
	}
	return stats, NewConflictError("", 0)
}

// answered pairs a pending envelope with its cached handler result while
// the cycle decides whether the pair may merge as Done.
type answered struct {
	env   envelope.Envelope
	entry CachedResponse
}

// cycle runs one fetch→write pass. Counters accumulate into stats across
// conflict redos; Answered/Uploaded and the like are reset per pass so the
// final pass's numbers are the ones reported.
func (l *Listener) cycle(ctx context.Context, stats *CycleStats) error {
	fetched, version, err := l.client.Fetch(ctx)
	if err != nil {
		return err
	}

	now := l.clock.Now()
	live := queue.FilterExpired(fetched, now, l.window)
	grouped := queue.PartitionByState(live)

	stats.Fetched = len(fetched)
	stats.Expired = len(fetched) - len(live)
	stats.Pending = len(grouped.Pending)
	stats.Answered = 0
	stats.Uploaded = 0

	// Dispatch phase: resolve each pending envelope to a cached result,
	// invoking the handler only on a cache miss. Unmatched routes
	// produce nothing and the envelope stays Pending.
	pairs := make([]answered, 0, len(grouped.Pending))
	for _, env := range grouped.Pending {
		entry, ok, err := l.cache.Get(env.Head.ID)
		if err != nil {
			l.log.Warn("response cache read failed", "id", env.Head.ID, "error", err)
			ok = false
		}
		if !ok {
			handler, match := l.dispatcher.Lookup(env.Body)
			if !match {
				l.log.Debug("no route for request", "id", env.Head.ID, "route", env.Body)
				continue
			}
			resp := handler()
			entry = CachedResponse{
				ID:        env.Head.ID,
				Kind:      resp.Kind,
				CreatedAt: env.Head.Timestamp,
			}
			switch resp.Kind {
			case ResponseFile:
				entry.FileName = l.fileName()
				entry.Data = resp.Data
			default:
				entry.Text = resp.Text
			}
			if err := l.cache.Put(entry); err != nil {
				l.log.Warn("response cache write failed", "id", env.Head.ID, "error", err)
			}
		}
		pairs = append(pairs, answered{env: env, entry: entry})
	}

	// Upload phase: every binary response must land in the store before
	// its envelope may merge as Done. A failed upload leaves that one
	// envelope Pending without aborting the rest of the cycle;
	// ALREADY_EXISTS means a prior attempt landed, since the name is
	// ours alone.
	responses := make([]envelope.Envelope, 0, len(pairs))
	merged := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.entry.Kind == ResponseFile && !p.entry.Uploaded {
			err := l.client.Upload(ctx, p.entry.FileName, p.entry.Data)
			if err != nil && !IsAlreadyExists(err) {
				l.log.Warn("side-file upload failed, envelope stays pending",
					"id", p.env.Head.ID, "file", p.entry.FileName, "error", err)
				continue
			}
			if err == nil {
				stats.Uploaded++
			}
			p.entry.Uploaded = true
			p.entry.Data = nil
			if err := l.cache.Put(p.entry); err != nil {
				l.log.Warn("response cache write failed", "id", p.env.Head.ID, "error", err)
			}
		}

		var done envelope.Envelope
		if p.entry.Kind == ResponseFile {
			done = envelope.Done(p.env, envelope.ContentTypeFile, p.entry.FileName)
		} else {
			done = envelope.Done(p.env, envelope.ContentTypeString, p.entry.Text)
		}
		responses = append(responses, done)
		merged = append(merged, p.env.Head.ID)
	}
	stats.Answered = len(responses)

	out, err := queue.Merge(live, responses)
	if err != nil {
		return fmt.Errorf("merge responses: %w", err)
	}

	// A cycle that changed nothing skips the write entirely: re-running
	// it leaves the mailbox byte-identical, and idle cycles don't pile
	// commits onto the store.
	unchanged, err := collectionsEqual(fetched, out)
	if err != nil {
		return err
	}
	if unchanged {
		stats.Wrote = false
		return l.cleanup(now, nil)
	}

	if err := l.client.Write(ctx, out, version); err != nil {
		return err
	}
	stats.Wrote = true
	return l.cleanup(now, merged)
}

// cleanup drops cache entries for envelopes just written as Done and
// purges entries whose envelopes have expired.
func (l *Listener) cleanup(now time.Time, mergedIDs []string) error {
	for _, id := range mergedIDs {
		if err := l.cache.Delete(id); err != nil {
			l.log.Warn("response cache delete failed", "id", id, "error", err)
		}
	}
	cutoff := now.Add(-l.window).UnixMilli()
	if err := l.cache.PurgeBefore(cutoff); err != nil {
		l.log.Warn("response cache purge failed", "error", err)
	}
	return nil
}

// collectionsEqual compares two collections by their canonical encoding.
func collectionsEqual(a, b envelope.Collection) (bool, error) {
	ea, err := envelope.Encode(a)
	if err != nil {
		return false, err
	}
	eb, err := envelope.Encode(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ea, eb), nil
}
