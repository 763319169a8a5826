// Package pulseerr defines the unified error type used across every
// Pulse component so the Supervisor can classify a failure by kind
// without string-matching messages.
package pulseerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for propagation-policy decisions: fatal at
// startup, logged and swallowed inside a driver, or propagated to a
// synchronous caller.
type Kind string

const (
	InvalidUnicodePath Kind = "invalid_unicode_path"
	UnconfiguredEmail  Kind = "unconfigured_email"
	EmailError         Kind = "email_error"
	NoHomeDirectory    Kind = "no_home_directory"
	CronError          Kind = "cron_error"
	ConfigParseError   Kind = "config_parse_error"
	SerdeError         Kind = "serde_error"
	NewsError          Kind = "news_error"
	TwitterError       Kind = "twitter_error"
	MailboxSendError   Kind = "mailbox_send_error"
	OutboxFullError    Kind = "outbox_full_error"
	IoError            Kind = "io_error"
	DbConnectError     Kind = "db_connect_error"
	DbQueryError       Kind = "db_query_error"
	ChronoParseError   Kind = "chrono_parse_error"
)

// Error wraps a cause with a Kind so callers can branch on
// errors.As(err, &pe) (pe a *pulseerr.Error) without parsing messages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or any error it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Fatal reports whether a kind is in the fatal-at-startup category.
// UnconfiguredEmail is only fatal when alerts are configured to use
// email, which callers determine themselves; Fatal treats it as fatal
// here since this helper is only invoked from startup wiring paths
// that already know email is in use.
func Fatal(kind Kind) bool {
	switch kind {
	case ConfigParseError, DbConnectError, UnconfiguredEmail:
		return true
	default:
		return false
	}
}
