// Package twitterservice consumes a single tracked tweet stream,
// matches each tweet against configured term groups, and maintains a
// per-group batch buffer that raises a TwitterAlert once it fills and
// is then emptied; no single tweet is evicted to make room. It
// owns no external goroutine lifecycle beyond the one loop draining
// its TweetStream, the same single-driver-per-component shape
// SystemMonitor and Scheduler use elsewhere in this codebase.
package twitterservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/nugget/pulse/internal/broadcastevent"
	"github.com/nugget/pulse/internal/feeds"
	"github.com/nugget/pulse/internal/pulsedb"
	"github.com/nugget/pulse/internal/pulsemodel"
)

// MaxTweetsToSend caps each group's buffer. It doubles as the alert
// threshold: a TwitterAlert fires the moment a group's buffer fills,
// and the buffer restarts empty for the next batch.
const MaxTweetsToSend = 100

// Outbox is the narrow push surface the service needs.
type Outbox interface {
	Push(event broadcastevent.Event) error
}

// Group is one configured term group: any tweet whose text contains
// one of Terms (case-insensitive) is attributed to Name.
type Group struct {
	Name  string
	Terms []string
}

// Service is the TwitterService driver.
type Service struct {
	groups []Group
	store  pulsedb.Storage
	outbox Outbox
	logger *slog.Logger

	mu      sync.Mutex
	buffers map[string][]pulsemodel.TweetRecord
}

// New constructs a Service tracking groups.
func New(groups []Group, store pulsedb.Storage, ob Outbox, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	buffers := make(map[string][]pulsemodel.TweetRecord, len(groups))
	for _, g := range groups {
		buffers[g.Name] = nil
	}
	return &Service{groups: groups, store: store, outbox: ob, logger: logger, buffers: buffers}
}

// Terms returns the union of every group's tracked terms, the track
// list a live feeds.TweetStream is opened with.
func (s *Service) Terms() []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, g := range s.groups {
		for _, t := range g.Terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			terms = append(terms, t)
		}
	}
	return terms
}

// Consume drains stream until it ends (io.EOF) or ctx is cancelled,
// processing each tweet in turn. An unmatched tweet never stops the
// loop; stream exhaustion, cancellation, or any other error returned by
// stream.Next (logged, then returned) does.
func (s *Service) Consume(ctx context.Context, stream feeds.TweetStream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tweet, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Error("twitterservice: stream read failed", "error", err)
			return err
		}

		s.handleTweet(ctx, tweet)
	}
}

// matchGroups returns every group whose terms appear in text.
func (s *Service) matchGroups(text string) []string {
	lower := strings.ToLower(text)
	var names []string
	for _, g := range s.groups {
		for _, term := range g.Terms {
			if strings.Contains(lower, strings.ToLower(term)) {
				names = append(names, g.Name)
				break
			}
		}
	}
	return names
}

func (s *Service) handleTweet(ctx context.Context, tweet pulsemodel.TweetRecord) {
	groupNames := s.matchGroups(tweet.Text)
	if len(groupNames) == 0 {
		return
	}
	tweet.GroupNames = groupNames

	rec, err := s.store.InsertTweet(ctx, pulsedb.NewTweet{
		TwitterID: tweet.TwitterID, GroupNames: groupNames,
		Lat: tweet.Lat, Lon: tweet.Lon, Favorites: tweet.Favorites,
		Retweets: tweet.Retweets, User: tweet.User, Lang: tweet.Lang,
		Text: tweet.Text, TweetedAt: tweet.TweetedAt,
	})
	if err != nil {
		s.logger.Error("twitterservice: failed to persist tweet", "error", err)
		rec = tweet
	}

	for _, name := range groupNames {
		s.appendToGroup(name, rec)
	}
}

func (s *Service) appendToGroup(name string, rec pulsemodel.TweetRecord) {
	s.mu.Lock()
	buf := append(s.buffers[name], rec)
	full := len(buf) >= MaxTweetsToSend
	var snapshot []pulsemodel.TweetRecord
	if full {
		snapshot = buf
		buf = nil
	}
	s.buffers[name] = buf
	s.mu.Unlock()

	if !full {
		return
	}

	event := broadcastevent.TwitterAlert{
		Group:        name,
		CurrentCount: int64(len(snapshot)),
		MaxCount:     MaxTweetsToSend,
		Tweets:       snapshot,
	}
	if err := s.outbox.Push(event); err != nil {
		s.logger.Error("twitterservice: dropping alert, outbox full", "group", name, "error", err)
	}
}

// BufferLen reports a group's current buffer length; exported
// for tests.
func (s *Service) BufferLen(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers[name])
}
