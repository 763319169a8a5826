// Package newsservice assembles a Newscast from configured
// most-popular sections and pushes it to the Outbox whenever a
// fetch-news TaskMessage fires. It is the NewsService component of the
// system overview, the same shape a scheduler.TaskRunner takes for
// every other driven-by-the-clock producer in this codebase.
package newsservice

import (
	"context"
	"log/slog"

	"github.com/nugget/pulse/internal/broadcastevent"
	"github.com/nugget/pulse/internal/feeds"
	"github.com/nugget/pulse/internal/pulsemodel"
	"github.com/nugget/pulse/internal/scheduler"
)

// Outbox is the narrow push surface the service needs.
type Outbox interface {
	Push(event broadcastevent.Event) error
}

// SharedConfig configures the optional most-shared section. A nil
// *SharedConfig or an empty Period means the section is skipped
// entirely.
type SharedConfig struct {
	Period     feeds.Period
	ShareTypes []string
}

// Config selects which sections to fetch each run. ViewedPeriod is
// required; EmailedPeriod and Shared are optional (zero-value period
// means "skip").
type Config struct {
	ViewedPeriod  feeds.Period
	EmailedPeriod feeds.Period
	Shared        *SharedConfig
}

// Service is the NewsService driver. It holds no goroutine of its own
// — it runs synchronously inside Scheduler.fire, per TaskRunner's
// contract.
type Service struct {
	fetcher feeds.NewsFetcher
	outbox  Outbox
	cfg     Config
	logger  *slog.Logger
}

// New constructs a Service.
func New(fetcher feeds.NewsFetcher, ob Outbox, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: fetcher, outbox: ob, cfg: cfg, logger: logger}
}

// Run implements scheduler.TaskRunner. It ignores every message except
// TaskFetchNews.
func (s *Service) Run(ctx context.Context, msg scheduler.TaskMessage) error {
	if msg != scheduler.TaskFetchNews {
		return nil
	}
	return s.FetchNews(ctx)
}

// FetchNews fetches every configured section and pushes one Newscast
// event. A fetcher error aborts this invocation only — FetchNews
// returns the error for logging, but the Scheduler treats it as
// non-fatal and will call Run again at the next firing.
func (s *Service) FetchNews(ctx context.Context) error {
	var sections []pulsemodel.ArticleSection

	viewed, err := s.fetcher.MostPopularViewed(ctx, s.cfg.ViewedPeriod)
	if err != nil {
		return err
	}
	sections = append(sections, viewed)

	if s.cfg.EmailedPeriod != "" {
		emailed, err := s.fetcher.MostPopularEmailed(ctx, s.cfg.EmailedPeriod)
		if err != nil {
			return err
		}
		sections = append(sections, emailed)
	}

	if s.cfg.Shared != nil && s.cfg.Shared.Period != "" {
		shared, err := s.fetcher.MostPopularShared(ctx, s.cfg.Shared.Period, s.cfg.Shared.ShareTypes)
		if err != nil {
			return err
		}
		sections = append(sections, shared)
	}

	event := broadcastevent.Newscast{Sections: sections}
	if err := s.outbox.Push(event); err != nil {
		s.logger.Error("newsservice: dropping newscast, outbox full", "error", err)
	}
	return nil
}
