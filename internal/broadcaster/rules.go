// Package broadcaster drains the Outbox on a fixed tick, applies
// per-event-key throttling, and dispatches to pluggable delivery
// media. It is the single owner of BroadcasterState: no other
// component ever reads or writes last_alerted.
package broadcaster

import (
	"time"

	"github.com/nugget/pulse/internal/broadcastevent"
)

// Medium identifies a delivery channel an AlertRule may target.
type Medium string

// MediumEmail is the only medium implemented today; adding another
// means adding a sibling port and a case in dispatch, not touching
// AlertRule.
const MediumEmail Medium = "email"

// AlertType controls the subject prefix on repeated firings for the
// same key.
type AlertType string

const (
	// AlertDigest alerts always carry the neutral "[PULSE]" prefix,
	// even on repeated firings.
	AlertDigest AlertType = "digest"
	// AlertAlarm alerts carry "[PULSE] Retriggered:" on every firing
	// after the first for a given key.
	AlertAlarm AlertType = "alarm"
)

// AlertRule governs how events of one type are throttled and where
// they are delivered. A nil AlertInterval means unthrottled: every
// matching event fires unconditionally.
type AlertRule struct {
	EventType     broadcastevent.Type
	Mediums       []Medium
	AlertInterval *time.Duration
	AlertType     AlertType
}
