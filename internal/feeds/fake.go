package feeds

import (
	"context"
	"io"
	"sync"

	"github.com/nugget/pulse/internal/pulsemodel"
)

// FakeTweetStream is a TweetStream test double fed from a fixed queue.
// Next returns io.EOF once the queue is drained, matching the
// contract a real closed connection produces.
type FakeTweetStream struct {
	mu     sync.Mutex
	queue  []pulsemodel.TweetRecord
	closed bool
}

// NewFakeTweetStream builds a stream that yields tweets in order.
func NewFakeTweetStream(tweets ...pulsemodel.TweetRecord) *FakeTweetStream {
	return &FakeTweetStream{queue: append([]pulsemodel.TweetRecord(nil), tweets...)}
}

func (f *FakeTweetStream) Next(ctx context.Context) (pulsemodel.TweetRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || len(f.queue) == 0 {
		return pulsemodel.TweetRecord{}, io.EOF
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, nil
}

func (f *FakeTweetStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// FakeNewsFetcher is a NewsFetcher test double returning canned
// sections or a configured error per call.
type FakeNewsFetcher struct {
	Viewed, Emailed, Shared          pulsemodel.ArticleSection
	ViewedErr, EmailedErr, SharedErr error
}

func (f *FakeNewsFetcher) MostPopularViewed(ctx context.Context, period Period) (pulsemodel.ArticleSection, error) {
	return f.Viewed, f.ViewedErr
}

func (f *FakeNewsFetcher) MostPopularEmailed(ctx context.Context, period Period) (pulsemodel.ArticleSection, error) {
	return f.Emailed, f.EmailedErr
}

func (f *FakeNewsFetcher) MostPopularShared(ctx context.Context, period Period, shareTypes []string) (pulsemodel.ArticleSection, error) {
	return f.Shared, f.SharedErr
}
