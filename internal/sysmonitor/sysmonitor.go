// Package sysmonitor samples configured filesystems on a fixed tick
// and fans out each observation to dynamically-registered
// subscribers, enqueuing a HighDiskUsage event to the Outbox whenever
// a mount crosses its configured threshold. Subscribe and Unsubscribe
// are delivered as messages to the monitor's own driver goroutine
// rather than touching the subscriber set directly, per the
// single-owner-per-driver concurrency model.
package sysmonitor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/nugget/pulse/internal/broadcastevent"
	"github.com/nugget/pulse/internal/diskstat"
	"github.com/nugget/pulse/internal/pclock"
	"github.com/nugget/pulse/internal/pulsedb"
	"github.com/nugget/pulse/internal/pulseerr"
	"github.com/nugget/pulse/internal/pulsemodel"
)

// StreamMessage names a continuous sampling stream kind, the
// fixed-tick counterpart of a one-shot scheduler.TaskMessage. The
// streams list in configuration declares which sampling loops run.
type StreamMessage string

// StreamCheckDiskUsage is the filesystem sampling stream this monitor
// drives. A system_monitor block with no matching stream declared
// still services subscriptions but samples nothing.
const StreamCheckDiskUsage StreamMessage = "check-disk-usage"

// SubscriberID identifies a live subscription, unique within one
// Monitor instance.
type SubscriberID string

// Subscriber is an opaque sink that accepts each persisted
// DiskUsageRecord as it is produced, plus a close signal when the
// monitor shuts down.
type Subscriber interface {
	Deliver(ctx context.Context, rec pulsemodel.DiskUsageRecord) error
	Close(ctx context.Context) error
}

// Outbox is the narrow push surface the monitor needs; satisfied by
// *outbox.Outbox. Kept as an interface here so tests can supply a
// fake that observes Full behavior without a capacity-sized fixture.
type Outbox interface {
	Push(event broadcastevent.Event) error
}

// Filesystem is one mount to sample, alongside the threshold above
// which a HighDiskUsage event is enqueued.
type Filesystem struct {
	Mount                    string
	AvailableSpaceAlertAbove float64
}

// Monitor is the SystemMonitor driver.
type Monitor struct {
	filesystems []Filesystem
	tick        time.Duration
	probe       diskstat.Probe
	store       pulsedb.Storage
	outbox      Outbox
	clock       pclock.Clock
	logger      *slog.Logger

	subscribeCh   chan subscribeReq
	unsubscribeCh chan unsubscribeReq

	subs map[SubscriberID]Subscriber
}

type subscribeReq struct {
	sink  Subscriber
	reply chan SubscriberID
}

type unsubscribeReq struct {
	id    SubscriberID
	reply chan struct{}
}

// New constructs a Monitor. tick is the sampling interval
// (config's tick_ms).
func New(filesystems []Filesystem, tick time.Duration, probe diskstat.Probe, store pulsedb.Storage, ob Outbox, clock pclock.Clock, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		filesystems:   filesystems,
		tick:          tick,
		probe:         probe,
		store:         store,
		outbox:        ob,
		clock:         clock,
		logger:        logger,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan unsubscribeReq),
		subs:          make(map[SubscriberID]Subscriber),
	}
}

// Run is the monitor's driver loop: it samples every tick and
// services Subscribe/Unsubscribe requests between ticks. It blocks
// until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeSubscribers()
			return
		case req := <-m.subscribeCh:
			id := m.addSubscriber(req.sink)
			req.reply <- id
		case req := <-m.unsubscribeCh:
			delete(m.subs, req.id)
			close(req.reply)
		case <-ticker.C:
			m.sampleAll(ctx)
		}
	}
}

func (m *Monitor) closeSubscribers() {
	for id, sink := range m.subs {
		if err := sink.Close(context.Background()); err != nil {
			m.logger.Debug("sysmonitor: subscriber close failed", "subscriber", id, "error", err)
		}
		delete(m.subs, id)
	}
}

// Subscribe registers sink and returns its id. It is a synchronous
// request-response call delivered to the driver as a message, per the
// design notes' "no direct mutation of driver-owned state" rule.
func (m *Monitor) Subscribe(ctx context.Context, sink Subscriber) (SubscriberID, error) {
	reply := make(chan SubscriberID, 1)
	select {
	case m.subscribeCh <- subscribeReq{sink: sink, reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case id := <-reply:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Unsubscribe removes id. No-op (but still synchronizes) if the id is
// already absent.
func (m *Monitor) Unsubscribe(ctx context.Context, id SubscriberID) error {
	reply := make(chan struct{})
	select {
	case m.unsubscribeCh <- unsubscribeReq{id: id, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addSubscriber draws a random id, re-drawing until it collides with
// no live entry.
func (m *Monitor) addSubscriber(sink Subscriber) SubscriberID {
	var id SubscriberID
	for {
		id = newSubscriberID()
		if _, exists := m.subs[id]; !exists {
			break
		}
	}
	m.subs[id] = sink
	return id
}

func newSubscriberID() SubscriberID {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// broken; there is nothing a caller could do differently.
		panic("sysmonitor: crypto/rand unavailable: " + err.Error())
	}
	return SubscriberID(hex.EncodeToString(b[:]))
}

// sampleAll probes every configured filesystem in order, sequentially
// — observations within one mount are strictly increasing in
// recorded_at as a result, though no ordering across mounts is
// promised.
func (m *Monitor) sampleAll(ctx context.Context) {
	for _, fs := range m.filesystems {
		m.sampleOne(ctx, fs)
	}
}

func (m *Monitor) sampleOne(ctx context.Context, fs Filesystem) {
	if !utf8.ValidString(fs.Mount) {
		m.logger.Error("sysmonitor: mount path is not valid unicode", "error", pulseerr.New(pulseerr.InvalidUnicodePath, fs.Mount))
		return
	}

	usage, err := m.probe.Stat(fs.Mount)
	if err != nil {
		m.logger.Error("sysmonitor: probe failed", "mount", fs.Mount, "error", err)
		return
	}

	var pct float64
	if usage.TotalBytes != 0 {
		pct = float64(usage.TotalBytes-usage.AvailBytes) / float64(usage.TotalBytes) * 100
	}

	rec, err := m.store.InsertDiskUsage(ctx, pulsedb.NewDiskUsage{Mount: fs.Mount, PercentDiskUsed: pct})
	if err != nil {
		m.logger.Error("sysmonitor: failed to persist disk usage", "mount", fs.Mount, "error", err)
		rec = pulsemodel.DiskUsageRecord{Mount: fs.Mount, PercentDiskUsed: pct, RecordedAt: m.clock.Now()}
	}

	m.deliverToSubscribers(ctx, rec)

	if pct > fs.AvailableSpaceAlertAbove {
		event := broadcastevent.HighDiskUsage{Mount: fs.Mount, CurrentPct: pct, MaxPct: fs.AvailableSpaceAlertAbove}
		if err := m.outbox.Push(event); err != nil {
			m.logger.Error("sysmonitor: dropping event, outbox full", "mount", fs.Mount, "error", err)
		}
	}
}

// deliverToSubscribers fans out rec synchronously within this tick.
// A slow subscriber only delays delivery to the subscribers visited
// after it in this tick's (unspecified) map iteration order — it never
// delays the next tick, since
// the loop does not queue missed ticks.
func (m *Monitor) deliverToSubscribers(ctx context.Context, rec pulsemodel.DiskUsageRecord) {
	for id, sink := range m.subs {
		if err := sink.Deliver(ctx, rec); err != nil {
			m.logger.Error("sysmonitor: subscriber delivery failed", "subscriber", id, "error", err)
		}
	}
}
