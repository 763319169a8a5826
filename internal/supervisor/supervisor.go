// Package supervisor constructs every port and driver and wires them
// together before handing off to a signal-driven shutdown. It is the
// single place that knows about every concrete adapter; everything
// downstream of it depends only on interfaces.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nugget/pulse/internal/broadcaster"
	"github.com/nugget/pulse/internal/diskstat"
	"github.com/nugget/pulse/internal/feeds/nyt"
	"github.com/nugget/pulse/internal/feeds/twitterstream"
	"github.com/nugget/pulse/internal/newsservice"
	"github.com/nugget/pulse/internal/notify"
	"github.com/nugget/pulse/internal/notify/smtp"
	"github.com/nugget/pulse/internal/outbox"
	"github.com/nugget/pulse/internal/pclock"
	"github.com/nugget/pulse/internal/pulseconfig"
	"github.com/nugget/pulse/internal/pulsedb"
	"github.com/nugget/pulse/internal/pulsedb/sqlite"
	"github.com/nugget/pulse/internal/pulseerr"
	"github.com/nugget/pulse/internal/scheduler"
	"github.com/nugget/pulse/internal/sysmonitor"
	"github.com/nugget/pulse/internal/twitterservice"
	"github.com/nugget/pulse/internal/wsapi"
)

// Addr is the bind address for the WebSocket telemetry endpoint.
const Addr = ":8090"

// Supervisor owns every driver's lifecycle.
type Supervisor struct {
	logger *slog.Logger

	store   pulsedb.Storage
	outbox  *outbox.Outbox
	sched   *scheduler.Scheduler
	monitor *sysmonitor.Monitor
	bcast   *broadcaster.Broadcaster

	twitter      *twitterservice.Service
	twitterTerms []string
	twitterCreds twitterstream.Credentials

	httpServer *http.Server
}

// New constructs every component from cfg. It returns
// pulseerr.DbConnectError if storage cannot be opened and
// pulseerr.UnconfiguredEmail if alert rules reference the email medium
// without a usable SMTP configuration. Both are fatal at startup.
func New(cfg *pulseconfig.Config, logger *slog.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := sqlite.Open(cfg.Database.Database)
	if err != nil {
		return nil, pulseerr.Wrap(pulseerr.DbConnectError, "open storage", err)
	}

	ob := outbox.New()
	clock := pclock.System{}

	s := &Supervisor{logger: logger, store: store, outbox: ob}

	if err := s.buildBroadcaster(cfg, clock); err != nil {
		store.Close()
		return nil, err
	}

	s.buildScheduler(cfg, store, clock)
	s.buildSystemMonitor(cfg, store, ob, clock)
	s.buildNewsService(cfg)
	s.buildTwitterService(cfg, store, ob)

	for _, st := range cfg.Streams {
		if sysmonitor.StreamMessage(st.Message) != sysmonitor.StreamCheckDiskUsage {
			logger.Warn("supervisor: ignoring unknown stream message", "message", st.Message)
		}
	}

	hub := wsapi.New(s.monitor, logger)
	s.httpServer = &http.Server{Addr: Addr, Handler: hub}

	return s, nil
}

func (s *Supervisor) buildBroadcaster(cfg *pulseconfig.Config, clock pclock.Clock) error {
	rules := pulseconfig.BuildAlertRules(cfg.Broadcast.Alerts)

	usesEmail := false
	for _, r := range rules {
		for _, m := range r.Mediums {
			if m == broadcaster.MediumEmail {
				usesEmail = true
			}
		}
	}

	var emailer notify.Emailer
	var recipients []string
	if cfg.Broadcast.Email != nil {
		recipients = cfg.Broadcast.Email.Recipients
		e, err := smtp.New(smtp.Config{
			Host:     cfg.Broadcast.Email.SMTPHost,
			Port:     cfg.Broadcast.Email.SMTPPort,
			Username: cfg.Broadcast.Email.Username,
			Password: cfg.Broadcast.Email.Password,
			From:     cfg.Broadcast.Email.From,
			StartTLS: cfg.Broadcast.Email.StartTLS,
		})
		if err != nil {
			if usesEmail {
				return err
			}
			s.logger.Warn("supervisor: email configured but unusable and no rule needs it", "error", err)
		} else {
			emailer = e
		}
	} else if usesEmail {
		return pulseerr.New(pulseerr.UnconfiguredEmail, "an alert rule targets email but broadcast.email is not configured")
	}

	s.bcast = broadcaster.New(s.outbox, emailer, recipients, rules, clock, broadcaster.DefaultTick, s.logger)
	return nil
}

func (s *Supervisor) buildScheduler(cfg *pulseconfig.Config, store pulsedb.Storage, clock pclock.Clock) {
	tasks := pulseconfig.BuildScheduledTasks(cfg.Tasks, func(cron string, err error) {
		s.logger.Error("supervisor: dropping unparsable scheduled task", "cron", cron, "error", err)
	})
	s.sched = scheduler.New(store, clock, s.logger, tasks)
}

func (s *Supervisor) buildSystemMonitor(cfg *pulseconfig.Config, store pulsedb.Storage, ob *outbox.Outbox, clock pclock.Clock) {
	if cfg.SystemMonitor == nil {
		s.monitor = sysmonitor.New(nil, time.Second, diskstat.UnixProbe{}, store, ob, clock, s.logger)
		return
	}

	// The streams list declares which sampling loops run; a
	// system_monitor block alone describes the mounts and tick, it
	// does not start the stream. The monitor driver still runs either
	// way so WebSocket subscriptions are always serviced.
	var filesystems []sysmonitor.Filesystem
	if streamDeclared(cfg.Streams, sysmonitor.StreamCheckDiskUsage) {
		for _, fs := range cfg.SystemMonitor.Filesystems {
			filesystems = append(filesystems, sysmonitor.Filesystem{
				Mount:                    fs.Mount,
				AvailableSpaceAlertAbove: fs.AvailableSpaceAlertAbove,
			})
		}
	} else {
		s.logger.Warn("supervisor: system_monitor configured but streams does not declare check-disk-usage, sampling disabled")
	}
	tick := time.Duration(cfg.SystemMonitor.TickMs) * time.Millisecond
	if tick <= 0 {
		tick = time.Second
	}
	s.monitor = sysmonitor.New(filesystems, tick, diskstat.UnixProbe{}, store, ob, clock, s.logger)
}

// streamDeclared reports whether the configured streams list names msg.
func streamDeclared(streams []pulseconfig.StreamConfig, msg sysmonitor.StreamMessage) bool {
	for _, st := range streams {
		if sysmonitor.StreamMessage(st.Message) == msg {
			return true
		}
	}
	return false
}

func (s *Supervisor) buildNewsService(cfg *pulseconfig.Config) {
	if cfg.News == nil || cfg.News.NewYorkTimes == nil {
		return
	}
	nc := cfg.News.NewYorkTimes
	fetcher := nyt.New(nc.APIKey)
	svcCfg := newsservice.Config{
		ViewedPeriod:  pulseconfig.Period(nc.MostPopularViewedPeriod),
		EmailedPeriod: pulseconfig.Period(nc.MostPopularEmailedPeriod),
	}
	if nc.MostPopularSharedPeriod != "" {
		svcCfg.Shared = &newsservice.SharedConfig{
			Period:     pulseconfig.Period(nc.MostPopularSharedPeriod),
			ShareTypes: nc.MostPopularSharedMediums,
		}
	}
	svc := newsservice.New(fetcher, s.outbox, svcCfg, s.logger)
	s.sched.Register(svc)
}

func (s *Supervisor) buildTwitterService(cfg *pulseconfig.Config, store pulsedb.Storage, ob *outbox.Outbox) {
	if cfg.Twitter == nil || len(cfg.Twitter.Terms) == 0 {
		return
	}
	groups := pulseconfig.BuildTwitterGroups(cfg.Twitter)
	s.twitter = twitterservice.New(groups, store, ob, s.logger)
	s.twitterTerms = s.twitter.Terms()
	s.twitterCreds = twitterstream.Credentials{
		ConsumerKey:    cfg.Twitter.ConsumerKey,
		ConsumerSecret: cfg.Twitter.ConsumerSecret,
		AccessKey:      cfg.Twitter.AccessKey,
		AccessSecret:   cfg.Twitter.AccessSecret,
	}
}

// Run starts every driver and blocks until ctx is cancelled. It
// returns the first fatal error encountered starting the HTTP
// listener, if any; a clean shutdown returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	go s.monitor.Run(ctx)
	go s.bcast.Run(ctx)
	s.sched.Start(ctx)

	if s.twitter != nil {
		go s.runTwitterService(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("wsapi listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
		s.store.Close()
		return nil
	case err := <-errCh:
		s.sched.Stop()
		s.store.Close()
		return err
	}
}

// runTwitterService opens the live stream and reconnects after a
// transient disconnect, until ctx is cancelled. Each reconnect attempt
// is logged, never fatal.
func (s *Supervisor) runTwitterService(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stream, err := twitterstream.Open(ctx, s.twitterCreds, s.twitterTerms, s.logger)
		if err != nil {
			s.logger.Error("supervisor: opening twitter stream failed, retrying", "error", err)
			if !sleepCtx(ctx, 30*time.Second) {
				return
			}
			continue
		}

		err = s.twitter.Consume(ctx, stream)
		stream.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("supervisor: twitter stream ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 5*time.Second) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
