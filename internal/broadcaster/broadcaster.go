package broadcaster

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nugget/pulse/internal/broadcastevent"
	"github.com/nugget/pulse/internal/notify"
	"github.com/nugget/pulse/internal/outbox"
	"github.com/nugget/pulse/internal/pclock"
)

// DefaultTick is the production drain interval.
const DefaultTick = 500 * time.Millisecond

// Broadcaster is the single driver mutating BroadcasterState
// (rules, last_alerted). It owns that state exclusively; nothing else
// in the process reads or writes it.
type Broadcaster struct {
	outbox     *outbox.Outbox
	emailer    notify.Emailer
	recipients []string
	rules      map[broadcastevent.Type]AlertRule
	clock      pclock.Clock
	tick       time.Duration
	logger     *slog.Logger

	mu          sync.Mutex // guards lastAlerted; driver-only in production, needed so tests can inspect it
	lastAlerted map[broadcastevent.Key]time.Time
}

// New constructs a Broadcaster. rules maps each alertable event type
// to the rule governing it; event types absent from rules are
// suppressed entirely.
func New(ob *outbox.Outbox, emailer notify.Emailer, recipients []string, rules map[broadcastevent.Type]AlertRule, clock pclock.Clock, tick time.Duration, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Broadcaster{
		outbox:      ob,
		emailer:     emailer,
		recipients:  recipients,
		rules:       rules,
		clock:       clock,
		tick:        tick,
		logger:      logger,
		lastAlerted: make(map[broadcastevent.Key]time.Time),
	}
}

// Run drains the Outbox every tick until ctx is cancelled. It blocks;
// callers spawn it in its own goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.drain(ctx)
		}
	}
}

// drain pops every currently queued event and processes each in turn.
// Drain continues until Pop reports the queue empty, not just once.
func (b *Broadcaster) drain(ctx context.Context) {
	for {
		event, ok := b.outbox.Pop()
		if !ok {
			return
		}
		b.handle(ctx, event)
	}
}

func (b *Broadcaster) handle(ctx context.Context, event broadcastevent.Event) {
	typ := event.EventType()
	key := event.EventKey()

	rule, hasRule := b.rules[typ]
	if !hasRule {
		return
	}

	now := b.clock.Now()

	b.mu.Lock()
	last, hasLast := b.lastAlerted[key]
	b.mu.Unlock()

	sendNow := false
	switch {
	case rule.AlertInterval == nil:
		sendNow = true
	case !hasLast:
		sendNow = true
	case now.Sub(last) > *rule.AlertInterval:
		sendNow = true
	}
	if !sendNow {
		return
	}

	prefix := "[PULSE]"
	if hasLast && rule.AlertType == AlertAlarm {
		prefix = "[PULSE] Retriggered:"
	}

	subject, body := event.SubjectAndBody()
	for _, medium := range rule.Mediums {
		switch medium {
		case MediumEmail:
			// No per-message deadline here: transport timeouts belong
			// to the Emailer implementation, not the dispatch loop.
			msg := notify.Message{
				Subject: prefix + " " + subject,
				Body:    body,
				HTML:    typ == broadcastevent.TypeNewscast,
			}
			if err := b.emailer.Send(ctx, b.recipients, msg); err != nil {
				b.logger.Error("broadcaster: email send failed", "event_type", typ, "event_key", key, "error", err)
			}
		default:
			b.logger.Warn("broadcaster: unknown medium in alert rule", "medium", medium, "event_type", typ)
		}
	}

	// Updated after dispatch, even if every send above failed: the
	// source this is grounded on swallows send errors and still
	// throttles the next identical event, a preserved open question
	// rather than a bug — retry semantics would need this moved
	// behind a success check.
	b.mu.Lock()
	b.lastAlerted[key] = now
	b.mu.Unlock()
}

// LastAlertedAt reports the last send instant recorded for key, for
// test assertions. Not part of the production dispatch path.
func (b *Broadcaster) LastAlertedAt(key broadcastevent.Key) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.lastAlerted[key]
	return t, ok
}
