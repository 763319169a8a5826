package broadcaster

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nugget/pulse/internal/broadcastevent"
	"github.com/nugget/pulse/internal/diskstat"
	"github.com/nugget/pulse/internal/notify"
	"github.com/nugget/pulse/internal/outbox"
	"github.com/nugget/pulse/internal/pclock"
	"github.com/nugget/pulse/internal/pulsedb"
	"github.com/nugget/pulse/internal/pulsemodel"
	"github.com/nugget/pulse/internal/sysmonitor"
)

func interval(d time.Duration) *time.Duration { return &d }

// Property 3: one AlertRule for HighDiskUsage with a 100ms interval;
// pushing one event and waiting one tick (550ms) sends exactly once
// with a subject beginning "[PULSE] ".
func TestBroadcasterSingleShot(t *testing.T) {
	ob := outbox.New()
	emailer := notify.NewFake()
	rules := map[broadcastevent.Type]AlertRule{
		broadcastevent.TypeHighDiskUsage: {
			EventType:     broadcastevent.TypeHighDiskUsage,
			Mediums:       []Medium{MediumEmail},
			AlertInterval: interval(100 * time.Millisecond),
			AlertType:     AlertAlarm,
		},
	}
	b := New(ob, emailer, []string{"ops@example.com"}, rules, pclock.System{}, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	if err := ob.Push(broadcastevent.HighDiskUsage{Mount: "/", CurrentPct: 95, MaxPct: 90}); err != nil {
		t.Fatalf("push: %v", err)
	}

	time.Sleep(550 * time.Millisecond)

	if got := emailer.Count(); got != 1 {
		t.Fatalf("got %d sends, want 1", got)
	}
	sent, _ := emailer.Last()
	if !strings.HasPrefix(sent.Message.Subject, "[PULSE] ") {
		t.Errorf("subject %q does not start with %q", sent.Message.Subject, "[PULSE] ")
	}
}

// Property 4: two HighDiskUsage events with different mounts send
// twice.
func TestBroadcasterMultiKeyFanOut(t *testing.T) {
	ob := outbox.New()
	emailer := notify.NewFake()
	rules := map[broadcastevent.Type]AlertRule{
		broadcastevent.TypeHighDiskUsage: {
			EventType: broadcastevent.TypeHighDiskUsage,
			Mediums:   []Medium{MediumEmail},
			AlertType: AlertDigest,
		},
	}
	b := New(ob, emailer, []string{"ops@example.com"}, rules, pclock.System{}, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	_ = ob.Push(broadcastevent.HighDiskUsage{Mount: "/", CurrentPct: 95, MaxPct: 90})
	_ = ob.Push(broadcastevent.HighDiskUsage{Mount: "/mnt/test", CurrentPct: 95, MaxPct: 90})

	time.Sleep(550 * time.Millisecond)

	if got := emailer.Count(); got != 2 {
		t.Fatalf("got %d sends, want 2", got)
	}
}

// Property 5: ten identical events pushed at once send exactly once
// in the first tick (throttled by key); a further event after the
// interval elapses sends again, with the "Retriggered:" prefix
// because the rule's AlertType is Alarm.
func TestBroadcasterThrottling(t *testing.T) {
	ob := outbox.New()
	emailer := notify.NewFake()
	rules := map[broadcastevent.Type]AlertRule{
		broadcastevent.TypeHighDiskUsage: {
			EventType:     broadcastevent.TypeHighDiskUsage,
			Mediums:       []Medium{MediumEmail},
			AlertInterval: interval(100 * time.Millisecond),
			AlertType:     AlertAlarm,
		},
	}
	b := New(ob, emailer, []string{"ops@example.com"}, rules, pclock.System{}, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	for i := 0; i < 10; i++ {
		_ = ob.Push(broadcastevent.HighDiskUsage{Mount: "/", CurrentPct: 95, MaxPct: 90})
	}

	time.Sleep(120 * time.Millisecond)
	if got := emailer.Count(); got != 1 {
		t.Fatalf("after first tick: got %d sends, want 1", got)
	}

	time.Sleep(430 * time.Millisecond) // total elapsed ~550ms from start
	_ = ob.Push(broadcastevent.HighDiskUsage{Mount: "/", CurrentPct: 95, MaxPct: 90})

	time.Sleep(120 * time.Millisecond)
	if got := emailer.Count(); got != 2 {
		t.Fatalf("after interval elapsed: got %d sends, want 2", got)
	}

	sent, _ := emailer.Last()
	if !strings.HasPrefix(sent.Message.Subject, "[PULSE] Retriggered: ") {
		t.Errorf("subject %q does not start with %q", sent.Message.Subject, "[PULSE] Retriggered: ")
	}
}

// A SystemMonitor ticking over an always-over-threshold filesystem
// feeds the Broadcaster through a shared Outbox; an Alarm rule with a
// 1s interval produces at least two sends over 2.5s, every one after
// the first marked "Retriggered:".
func TestDiskAlertPipelineRetriggersEndToEnd(t *testing.T) {
	ob := outbox.New()
	emailer := notify.NewFake()
	rules := map[broadcastevent.Type]AlertRule{
		broadcastevent.TypeHighDiskUsage: {
			EventType:     broadcastevent.TypeHighDiskUsage,
			Mediums:       []Medium{MediumEmail},
			AlertInterval: interval(time.Second),
			AlertType:     AlertAlarm,
		},
	}
	b := New(ob, emailer, []string{"ops@example.com"}, rules, pclock.System{}, 100*time.Millisecond, nil)

	mon := sysmonitor.New(
		[]sysmonitor.Filesystem{{Mount: "/", AvailableSpaceAlertAbove: 0.0}},
		50*time.Millisecond, diskstat.NewFake(1000, 100), pulsedb.NewFake(), ob, pclock.System{}, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)
	go b.Run(ctx)

	time.Sleep(2500 * time.Millisecond)
	cancel()

	sent := emailer.Snapshot()
	if len(sent) < 2 {
		t.Fatalf("got %d sends over 2.5s, want >= 2", len(sent))
	}
	if !strings.HasPrefix(sent[0].Message.Subject, "[PULSE] ") || strings.Contains(sent[0].Message.Subject, "Retriggered") {
		t.Errorf("first subject = %q, want a plain [PULSE] prefix", sent[0].Message.Subject)
	}
	for i, s := range sent[1:] {
		if !strings.HasPrefix(s.Message.Subject, "[PULSE] Retriggered: ") {
			t.Errorf("send %d subject = %q, want the Retriggered prefix", i+1, s.Message.Subject)
		}
	}
}

// A Newscast under a Digest rule keeps the plain "[PULSE]" prefix on
// every firing and delivers the HTML body with each section title.
func TestNewscastDigestNeverRetriggers(t *testing.T) {
	ob := outbox.New()
	emailer := notify.NewFake()
	rules := map[broadcastevent.Type]AlertRule{
		broadcastevent.TypeNewscast: {
			EventType: broadcastevent.TypeNewscast,
			Mediums:   []Medium{MediumEmail},
			AlertType: AlertDigest,
		},
	}
	b := New(ob, emailer, []string{"ops@example.com"}, rules, pclock.System{}, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	newscast := broadcastevent.Newscast{Sections: []pulsemodel.ArticleSection{
		{Title: "Most Viewed"}, {Title: "Most Emailed"},
	}}
	_ = ob.Push(newscast)
	time.Sleep(120 * time.Millisecond)
	_ = ob.Push(newscast)
	time.Sleep(120 * time.Millisecond)

	sent := emailer.Snapshot()
	if len(sent) != 2 {
		t.Fatalf("got %d sends, want 2 (digest is unthrottled)", len(sent))
	}
	for i, s := range sent {
		if s.Message.Subject != "[PULSE] News" {
			t.Errorf("send %d subject = %q, want exactly %q", i, s.Message.Subject, "[PULSE] News")
		}
		if !s.Message.HTML {
			t.Errorf("send %d should be HTML", i)
		}
		for _, title := range []string{"Most Viewed", "Most Emailed"} {
			if !strings.Contains(s.Message.Body, title) {
				t.Errorf("send %d body missing section %q", i, title)
			}
		}
	}
}

// Throttle boundaries checked against a controlled clock: an event
// inside the interval is suppressed, one strictly past it sends.
func TestBroadcasterHandleThrottleBoundary(t *testing.T) {
	ob := outbox.New()
	emailer := notify.NewFake()
	clock := pclock.NewFake(time.Date(2026, time.July, 31, 12, 0, 0, 0, time.UTC))
	rules := map[broadcastevent.Type]AlertRule{
		broadcastevent.TypeHighDiskUsage: {
			EventType:     broadcastevent.TypeHighDiskUsage,
			Mediums:       []Medium{MediumEmail},
			AlertInterval: interval(time.Minute),
			AlertType:     AlertAlarm,
		},
	}
	b := New(ob, emailer, []string{"ops@example.com"}, rules, clock, DefaultTick, nil)

	event := broadcastevent.HighDiskUsage{Mount: "/", CurrentPct: 95, MaxPct: 90}
	ctx := context.Background()

	b.handle(ctx, event)
	if got := emailer.Count(); got != 1 {
		t.Fatalf("first event: got %d sends, want 1", got)
	}

	clock.Advance(time.Minute) // exactly the interval: not strictly past it
	b.handle(ctx, event)
	if got := emailer.Count(); got != 1 {
		t.Fatalf("at the interval boundary: got %d sends, want still 1", got)
	}

	clock.Advance(time.Millisecond)
	b.handle(ctx, event)
	if got := emailer.Count(); got != 2 {
		t.Fatalf("past the interval: got %d sends, want 2", got)
	}
	sent, _ := emailer.Last()
	if !strings.HasPrefix(sent.Message.Subject, "[PULSE] Retriggered: ") {
		t.Errorf("subject = %q, want the Retriggered prefix", sent.Message.Subject)
	}
}

// An event type with no configured rule is suppressed entirely.
func TestBroadcasterNoRuleSuppressesEvent(t *testing.T) {
	ob := outbox.New()
	emailer := notify.NewFake()
	b := New(ob, emailer, []string{"ops@example.com"}, nil, pclock.System{}, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	_ = ob.Push(broadcastevent.HighDiskUsage{Mount: "/", CurrentPct: 95, MaxPct: 90})
	time.Sleep(150 * time.Millisecond)

	if got := emailer.Count(); got != 0 {
		t.Fatalf("got %d sends, want 0 (no rule configured)", got)
	}
}
