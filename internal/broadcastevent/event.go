// Package broadcastevent defines the BroadcastEvent variants that flow
// from producers (SystemMonitor, NewsService, TwitterService) through
// the Outbox to the Broadcaster.
package broadcastevent

import (
	"fmt"
	"html"
	"strings"

	"github.com/nugget/pulse/internal/pulsemodel"
)

// Type is the kebab-case-labeled event type used to look up an
// AlertRule.
type Type string

const (
	TypeHighDiskUsage Type = "high-disk-usage"
	TypeNewscast      Type = "newscast"
	TypeTwitterAlert  Type = "twitter-alert"
)

// Key is the opaque throttling identity: two events collapse to the
// same Key iff they represent the same underlying real-world
// condition. It is a distinct string type so it can never be
// accidentally compared against an unrelated map's string keys.
type Key string

// Event is satisfied by every BroadcastEvent variant.
type Event interface {
	EventType() Type
	EventKey() Key
	SubjectAndBody() (subject, body string)
}

// HighDiskUsage reports a filesystem over its configured threshold.
type HighDiskUsage struct {
	Mount      string
	CurrentPct float64
	MaxPct     float64
}

func (e HighDiskUsage) EventType() Type { return TypeHighDiskUsage }
func (e HighDiskUsage) EventKey() Key   { return Key(fmt.Sprintf("%s|%s", TypeHighDiskUsage, e.Mount)) }
func (e HighDiskUsage) SubjectAndBody() (string, string) {
	subject := "High Disk Usage"
	body := fmt.Sprintf(
		"Filesystem %s is at %.1f%% (threshold %.1f%%).",
		e.Mount, e.CurrentPct, e.MaxPct,
	)
	return subject, body
}

// Newscast carries an assembled set of article sections.
type Newscast struct {
	Sections []pulsemodel.ArticleSection
}

func (e Newscast) EventType() Type { return TypeNewscast }
func (e Newscast) EventKey() Key   { return Key(TypeNewscast) }
func (e Newscast) SubjectAndBody() (string, string) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, section := range e.Sections {
		b.WriteString(fmt.Sprintf("<h2>%s</h2><ul>", html.EscapeString(section.Title)))
		for _, a := range section.Articles {
			b.WriteString(fmt.Sprintf(
				`<li><a href="%s">%s</a>: %s</li>`,
				html.EscapeString(a.URL), html.EscapeString(a.Title), html.EscapeString(a.Abstract),
			))
		}
		b.WriteString("</ul>")
	}
	b.WriteString("</body></html>")
	return "News", b.String()
}

// TwitterAlert reports a group's tracked tweet volume crossing its
// configured threshold.
type TwitterAlert struct {
	Group        string
	CurrentCount int64
	MaxCount     int64
	Tweets       []pulsemodel.TweetRecord
}

func (e TwitterAlert) EventType() Type { return TypeTwitterAlert }
func (e TwitterAlert) EventKey() Key   { return Key(fmt.Sprintf("%s|%s", TypeTwitterAlert, e.Group)) }
func (e TwitterAlert) SubjectAndBody() (string, string) {
	subject := fmt.Sprintf("Twitter Alert: %s", e.Group)
	var b strings.Builder
	fmt.Fprintf(&b, "Group %q has %d tracked tweets (threshold %d).\n\n", e.Group, e.CurrentCount, e.MaxCount)
	for _, t := range e.Tweets {
		fmt.Fprintf(&b, "- %s\n", t.Text)
	}
	return subject, b.String()
}
