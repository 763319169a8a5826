package pulsedb

import (
	"context"
	"strconv"
	"sync"

	"github.com/nugget/pulse/internal/pclock"
	"github.com/nugget/pulse/internal/pulsemodel"
)

// Fake is an in-memory Storage test double. Every insert is recorded
// so a test can assert on call counts and contents without downcasting
// a live adapter.
type Fake struct {
	mu sync.Mutex

	// Clock stamps each record; defaults to pclock.System so
	// RecordedAt/SentAt/TweetedAt still advance across calls when a
	// test doesn't care about controlling time itself.
	Clock pclock.Clock

	Tasks      []pulsemodel.TaskRecord
	DiskUsages []pulsemodel.DiskUsageRecord
	Tweets     []pulsemodel.TweetRecord

	// InsertTaskErr, when set, is returned by InsertTask instead of
	// recording the insert.
	InsertTaskErr error
}

// NewFake builds an empty Fake store.
func NewFake() *Fake { return &Fake{Clock: pclock.System{}} }

func (f *Fake) clock() pclock.Clock {
	if f.Clock == nil {
		return pclock.System{}
	}
	return f.Clock
}

func (f *Fake) InsertTask(_ context.Context, t NewTask) (pulsemodel.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertTaskErr != nil {
		return pulsemodel.TaskRecord{}, f.InsertTaskErr
	}
	rec := pulsemodel.TaskRecord{ID: nextFakeID(), Task: t.Task, SentAt: f.clock().Now()}
	f.Tasks = append(f.Tasks, rec)
	return rec, nil
}

func (f *Fake) InsertDiskUsage(_ context.Context, d NewDiskUsage) (pulsemodel.DiskUsageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := pulsemodel.DiskUsageRecord{ID: nextFakeID(), Mount: d.Mount, PercentDiskUsed: d.PercentDiskUsed, RecordedAt: f.clock().Now()}
	f.DiskUsages = append(f.DiskUsages, rec)
	return rec, nil
}

func (f *Fake) InsertTweet(_ context.Context, t NewTweet) (pulsemodel.TweetRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := pulsemodel.TweetRecord{
		ID: nextFakeID(), TwitterID: t.TwitterID, GroupNames: t.GroupNames,
		Lat: t.Lat, Lon: t.Lon, Favorites: t.Favorites, Retweets: t.Retweets,
		User: t.User, Lang: t.Lang, Text: t.Text, TweetedAt: t.TweetedAt,
	}
	if rec.TweetedAt.IsZero() {
		rec.TweetedAt = f.clock().Now()
	}
	f.Tweets = append(f.Tweets, rec)
	return rec, nil
}

func (f *Fake) Close() error { return nil }

// TaskCount returns the number of InsertTask calls recorded so far.
func (f *Fake) TaskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Tasks)
}

// DiskUsageCount returns the number of InsertDiskUsage calls recorded
// so far.
func (f *Fake) DiskUsageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.DiskUsages)
}

var fakeIDMu sync.Mutex
var fakeIDSeq int

// nextFakeID hands out a deterministic, collision-free ID for fake
// records without pulling the uuid package into test fixtures.
func nextFakeID() string {
	fakeIDMu.Lock()
	defer fakeIDMu.Unlock()
	fakeIDSeq++
	return "fake-" + strconv.Itoa(fakeIDSeq)
}
