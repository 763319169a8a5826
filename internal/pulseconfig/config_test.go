package pulseconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nugget/pulse/internal/broadcaster"
	"github.com/nugget/pulse/internal/broadcastevent"
)

const sampleYAML = `
system_monitor:
  tick_ms: 1000
  filesystems:
    - mount: "/"
      available_space_alert_above: 80.0
news:
  new_york_times:
    api_key: "abc123"
    most_popular_viewed_period: "7"
twitter:
  consumer_key: "ck"
  terms:
    - group_name: golang
      terms: [golang, gopher]
tasks:
  - cron: "0 */5 * * * * *"
    message: "fetch-news"
streams:
  - message: "check-disk-usage"
broadcast:
  email:
    smtp_host: "smtp.example.com"
    recipients: ["ops@example.com"]
  alerts:
    - event_type: "high-disk-usage"
      mediums: ["email"]
      alert_interval_ms: 1000
      alert_type: "alarm"
database:
  database: "pulse.db"
`

func TestLoadParsesFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SystemMonitor == nil || cfg.SystemMonitor.TickMs != 1000 {
		t.Fatalf("system_monitor not parsed correctly: %+v", cfg.SystemMonitor)
	}
	if len(cfg.Twitter.Terms) != 1 || cfg.Twitter.Terms[0].GroupName != "golang" {
		t.Fatalf("twitter terms not parsed correctly: %+v", cfg.Twitter)
	}
	if len(cfg.Tasks) != 1 || cfg.Tasks[0].Cron != "0 */5 * * * * *" {
		t.Fatalf("tasks not parsed correctly: %+v", cfg.Tasks)
	}
	if len(cfg.Streams) != 1 || cfg.Streams[0].Message != "check-disk-usage" {
		t.Fatalf("streams not parsed correctly: %+v", cfg.Streams)
	}
}

func TestBuildScheduledTasksDropsUnparsableCronLogging(t *testing.T) {
	var loggedCron string
	tasks := []TaskConfig{
		{Cron: "not a cron", Message: "fetch-news"},
		{Cron: "0 */5 * * * * *", Message: "fetch-news"},
	}
	scheduled := BuildScheduledTasks(tasks, func(cron string, err error) { loggedCron = cron })

	if len(scheduled) != 1 {
		t.Fatalf("got %d scheduled tasks, want 1 (bad one dropped)", len(scheduled))
	}
	if loggedCron != "not a cron" {
		t.Errorf("expected the bad cron to be logged, got %q", loggedCron)
	}
}

func TestBuildAlertRulesConvertsEveryField(t *testing.T) {
	ms := int64(1500)
	rules := BuildAlertRules([]AlertRuleConfig{
		{EventType: "high-disk-usage", Mediums: []string{"email"}, AlertIntervalMs: &ms, AlertType: "alarm"},
	})
	rule, ok := rules[broadcastevent.TypeHighDiskUsage]
	if !ok {
		t.Fatal("expected a rule for high-disk-usage")
	}
	if rule.AlertType != broadcaster.AlertAlarm {
		t.Errorf("got AlertType %q, want alarm", rule.AlertType)
	}
	if rule.AlertInterval == nil || *rule.AlertInterval != 1500_000_000 {
		t.Errorf("got AlertInterval %v, want 1.5s", rule.AlertInterval)
	}
	if len(rule.Mediums) != 1 || rule.Mediums[0] != broadcaster.MediumEmail {
		t.Errorf("got Mediums %v, want [email]", rule.Mediums)
	}
}

func TestFindConfigRequiresExplicitPathToExist(t *testing.T) {
	if _, err := FindConfig("/nonexistent/pulse.yaml"); err == nil {
		t.Fatal("expected an error for a nonexistent explicit path")
	}
}
