package pulseerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(DbConnectError, "open storage", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if !Is(err, DbConnectError) {
		t.Error("kind not detected on the wrapping error")
	}
	if Is(err, DbQueryError) {
		t.Error("wrong kind matched")
	}
}

func TestIsSeesKindThroughFurtherWrapping(t *testing.T) {
	inner := New(OutboxFullError, "outbox at capacity")
	outer := fmt.Errorf("push failed: %w", inner)
	if !Is(outer, OutboxFullError) {
		t.Error("kind not detected through fmt.Errorf wrapping")
	}
}

func TestIsOnForeignError(t *testing.T) {
	if Is(errors.New("plain"), IoError) {
		t.Error("plain error should carry no kind")
	}
	if Is(nil, IoError) {
		t.Error("nil error should carry no kind")
	}
}

func TestErrorMessageIncludesKindAndCause(t *testing.T) {
	err := Wrap(EmailError, "send message", errors.New("550 rejected"))
	msg := err.Error()
	for _, want := range []string{"email_error", "send message", "550 rejected"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestFatalClassification(t *testing.T) {
	fatal := []Kind{ConfigParseError, DbConnectError, UnconfiguredEmail}
	for _, k := range fatal {
		if !Fatal(k) {
			t.Errorf("%s should be fatal at startup", k)
		}
	}
	swallowed := []Kind{OutboxFullError, EmailError, DbQueryError, NewsError, TwitterError, InvalidUnicodePath, MailboxSendError}
	for _, k := range swallowed {
		if Fatal(k) {
			t.Errorf("%s should not be fatal", k)
		}
	}
}
