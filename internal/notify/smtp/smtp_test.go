package smtp

import (
	"strings"
	"testing"

	"github.com/nugget/pulse/internal/notify"
	"github.com/nugget/pulse/internal/pulseerr"
)

func TestNewRejectsBlankHost(t *testing.T) {
	_, err := New(Config{From: "pulse@example.com"})
	if !pulseerr.Is(err, pulseerr.UnconfiguredEmail) {
		t.Fatalf("got %v, want UnconfiguredEmail", err)
	}
}

func TestNewRejectsBlankFrom(t *testing.T) {
	_, err := New(Config{Host: "smtp.example.com"})
	if !pulseerr.Is(err, pulseerr.UnconfiguredEmail) {
		t.Fatalf("got %v, want UnconfiguredEmail", err)
	}
}

func TestComposePlainText(t *testing.T) {
	raw, err := compose("pulse@example.com", []string{"ops@example.com"}, notify.Message{
		Subject: "[PULSE] High Disk Usage",
		Body:    "Filesystem / is at 95.0%.",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	msg := string(raw)
	if !strings.Contains(msg, "Subject: [PULSE] High Disk Usage") {
		t.Errorf("missing subject header:\n%s", msg)
	}
	if !strings.Contains(msg, "To: <ops@example.com>") && !strings.Contains(msg, "To: ops@example.com") {
		t.Errorf("missing recipient header:\n%s", msg)
	}
	if !strings.Contains(msg, "text/plain") {
		t.Errorf("missing text/plain part:\n%s", msg)
	}
	if strings.Contains(msg, "text/html") {
		t.Errorf("plain message should not carry an html part:\n%s", msg)
	}
}

func TestComposeHTMLCarriesPlainAlternative(t *testing.T) {
	raw, err := compose("pulse@example.com", []string{"ops@example.com"}, notify.Message{
		Subject: "[PULSE] News",
		Body:    "<html><body><h2>Most Viewed</h2></body></html>",
		HTML:    true,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	msg := string(raw)
	if !strings.Contains(msg, "text/html") {
		t.Errorf("missing html part:\n%s", msg)
	}
	if !strings.Contains(msg, "text/plain") {
		t.Errorf("missing plaintext alternative:\n%s", msg)
	}
	if !strings.Contains(msg, "Most Viewed") {
		t.Errorf("body content lost:\n%s", msg)
	}
}

func TestComposeRejectsMalformedRecipient(t *testing.T) {
	_, err := compose("pulse@example.com", []string{"not an address"}, notify.Message{Subject: "s", Body: "b"})
	if err == nil {
		t.Fatal("expected an error for a malformed recipient")
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain text", "plain text"},
		{"<h2>Title</h2>", "Title"},
		{`<a href="x">link</a> tail`, "link tail"},
		{"<ul><li>a</li><li>b</li></ul>", "ab"},
	}
	for _, tt := range tests {
		if got := stripTags(tt.in); got != tt.want {
			t.Errorf("stripTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
