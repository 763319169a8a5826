// Package pulseconfig loads Pulse's YAML configuration: a fixed
// search-path list, environment-variable expansion before parse, and
// Build helpers that turn config records into domain values.
package pulseconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nugget/pulse/internal/broadcaster"
	"github.com/nugget/pulse/internal/broadcastevent"
	"github.com/nugget/pulse/internal/feeds"
	"github.com/nugget/pulse/internal/pclock"
	"github.com/nugget/pulse/internal/scheduler"
	"github.com/nugget/pulse/internal/twitterservice"
)

// DefaultSearchPaths returns the config file search order: an explicit
// path (handled separately by FindConfig) is checked first by the
// caller; absent that, ./pulse.yaml, ~/.config/pulse/pulse.yaml,
// /etc/pulse/pulse.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"pulse.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pulse", "pulse.yaml"))
	}
	paths = append(paths, "/etc/pulse/pulse.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise it searches DefaultSearchPaths and returns the
// first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// FilesystemConfig is one mount to sample.
type FilesystemConfig struct {
	Mount                    string  `yaml:"mount"`
	AvailableSpaceAlertAbove float64 `yaml:"available_space_alert_above"`
}

// SystemMonitorConfig configures SystemMonitor. A nil receiver (the
// "system_monitor?" block absent) means no filesystems are sampled; the
// monitor still runs so WebSocket subscriptions are serviced.
type SystemMonitorConfig struct {
	Filesystems []FilesystemConfig `yaml:"filesystems"`
	TickMs      int64              `yaml:"tick_ms"`
}

// NYTConfig configures the New York Times NewsFetcher adapter.
type NYTConfig struct {
	APIKey                   string   `yaml:"api_key"`
	MostPopularViewedPeriod  string   `yaml:"most_popular_viewed_period"`
	MostPopularEmailedPeriod string   `yaml:"most_popular_emailed_period"`
	MostPopularSharedPeriod  string   `yaml:"most_popular_shared_period"`
	MostPopularSharedMediums []string `yaml:"most_popular_shared_mediums"`
}

// NewsConfig configures NewsService.
type NewsConfig struct {
	NewYorkTimes *NYTConfig `yaml:"new_york_times"`
}

// TermGroupConfig is one Twitter tracking group.
type TermGroupConfig struct {
	GroupName string   `yaml:"group_name"`
	Terms     []string `yaml:"terms"`
}

// TwitterConfig configures TwitterService and its live stream adapter.
type TwitterConfig struct {
	ConsumerKey    string            `yaml:"consumer_key"`
	ConsumerSecret string            `yaml:"consumer_secret"`
	AccessKey      string            `yaml:"access_key"`
	AccessSecret   string            `yaml:"access_secret"`
	Terms          []TermGroupConfig `yaml:"terms"`
}

// TaskConfig is one cron-driven TaskMessage.
type TaskConfig struct {
	Cron    string `yaml:"cron"`
	Message string `yaml:"message"`
}

// StreamConfig declares one continuous sampling stream (a fixed-tick
// loop, as opposed to a one-shot cron task). The Supervisor enables a
// component's sampling loop only when its stream message is declared
// here; see sysmonitor.StreamCheckDiskUsage.
type StreamConfig struct {
	Message string `yaml:"message"`
}

// EmailConfig configures the SMTP Emailer adapter.
type EmailConfig struct {
	SMTPHost   string   `yaml:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	StartTLS   bool     `yaml:"starttls"`
	Recipients []string `yaml:"recipients"`
}

// AlertRuleConfig is one BroadcastEvent type's alerting policy.
type AlertRuleConfig struct {
	EventType       string   `yaml:"event_type"`
	Mediums         []string `yaml:"mediums"`
	AlertIntervalMs *int64   `yaml:"alert_interval_ms"`
	AlertType       string   `yaml:"alert_type"`
}

// BroadcastConfig configures the Broadcaster.
type BroadcastConfig struct {
	Email  *EmailConfig      `yaml:"email"`
	Alerts []AlertRuleConfig `yaml:"alerts"`
}

// DatabaseConfig configures the SQLite Storage adapter. Host and Port
// are accepted for compatibility with server-backed deployments; the
// shipped adapter is file-based and consults only Database, as a
// filesystem path.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the root configuration record.
type Config struct {
	SystemMonitor *SystemMonitorConfig `yaml:"system_monitor"`
	News          *NewsConfig          `yaml:"news"`
	Twitter       *TwitterConfig       `yaml:"twitter"`
	Tasks         []TaskConfig         `yaml:"tasks"`
	Streams       []StreamConfig       `yaml:"streams"`
	Broadcast     BroadcastConfig      `yaml:"broadcast"`
	Database      DatabaseConfig       `yaml:"database"`
	LogLevel      string               `yaml:"log_level"`
}

// Load reads, expands environment variables in, and parses path. It
// does not apply defaults beyond what yaml.Unmarshal leaves
// zero-valued; callers consult nil pointers to detect absent blocks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BuildScheduledTasks parses every configured task's cron expression.
// A task whose expression fails to parse is dropped and reported
// through logFn, never fatal; a config document that fails to decode
// at all is the fatal case, handled in Load.
func BuildScheduledTasks(tasks []TaskConfig, logFn func(cron string, err error)) []scheduler.ScheduledTask {
	var out []scheduler.ScheduledTask
	for _, t := range tasks {
		expr, err := pclock.ParseCronExpr(t.Cron)
		if err != nil {
			if logFn != nil {
				logFn(t.Cron, err)
			}
			continue
		}
		out = append(out, scheduler.ScheduledTask{Cron: expr, Message: scheduler.TaskMessage(t.Message)})
	}
	return out
}

// BuildAlertRules converts the configured alert rules into the map
// Broadcaster keys by BroadcastEvent type.
func BuildAlertRules(alerts []AlertRuleConfig) map[broadcastevent.Type]broadcaster.AlertRule {
	rules := make(map[broadcastevent.Type]broadcaster.AlertRule, len(alerts))
	for _, a := range alerts {
		rule := broadcaster.AlertRule{
			EventType: broadcastevent.Type(a.EventType),
			AlertType: broadcaster.AlertType(a.AlertType),
		}
		for _, m := range a.Mediums {
			rule.Mediums = append(rule.Mediums, broadcaster.Medium(m))
		}
		if a.AlertIntervalMs != nil {
			d := time.Duration(*a.AlertIntervalMs) * time.Millisecond
			rule.AlertInterval = &d
		}
		rules[rule.EventType] = rule
	}
	return rules
}

// BuildTwitterGroups converts the configured term groups into
// twitterservice.Group values.
func BuildTwitterGroups(c *TwitterConfig) []twitterservice.Group {
	if c == nil {
		return nil
	}
	groups := make([]twitterservice.Group, 0, len(c.Terms))
	for _, g := range c.Terms {
		groups = append(groups, twitterservice.Group{Name: g.GroupName, Terms: g.Terms})
	}
	return groups
}

// Period converts a configured period string to a feeds.Period,
// returning "" (meaning "skip this section") when unset.
func Period(s string) feeds.Period {
	return feeds.Period(s)
}
