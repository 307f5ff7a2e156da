package payment

import (
	"fmt"
	"strings"
	"time"
)

// Status enumerates the payment request lifecycle states.
type Status int

const (
	StatusDraft Status = iota
	StatusPending
	StatusCompleted
	StatusFailed
	StatusExpired
	StatusCancelled
	StatusVerified
)

var statusNames = [...]string{
	StatusDraft:     "Draft",
	StatusPending:   "Pending",
	StatusCompleted: "Completed",
	StatusFailed:    "Failed",
	StatusExpired:   "Expired",
	StatusCancelled: "Cancelled",
	StatusVerified:  "Verified",
}

// String returns the canonical status name.
func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

// ParseStatus resolves a status from its stored name.
func ParseStatus(name string) (Status, error) {
	needle := strings.TrimSpace(name)
	for i, n := range statusNames {
		if n == needle {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("payment: unknown status %q", name)
}

// Indicator returns the dashboard color for the status.
func (s Status) Indicator() string {
	switch s {
	case StatusDraft:
		return "grey"
	case StatusPending:
		return "orange"
	case StatusCompleted:
		return "green"
	case StatusFailed, StatusExpired, StatusCancelled:
		return "red"
	case StatusVerified:
		return "blue"
	default:
		return "grey"
	}
}

// Terminal reports whether no further transition is allowed from the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusFailed, StatusExpired, StatusCancelled, StatusVerified:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusPending
	case StatusPending:
		switch next {
		case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
			return true
		}
		return false
	case StatusCompleted:
		return next == StatusVerified
	default:
		return false
	}
}

// ExpiryState classifies a pending request relative to its expiry date.
type ExpiryState int

const (
	ExpiryNormal ExpiryState = iota
	ExpiringSoon
	Expired
)

// ExpiringSoonWindow is the horizon within which a pending request is
// flagged as expiring soon.
const ExpiringSoonWindow = 2 * time.Hour

// ClassifyExpiry buckets the remaining lifetime of a request. A request whose
// expiry is in the past is Expired; one with strictly less than the warning
// window remaining is ExpiringSoon; exactly at the window it is still Normal.
func ClassifyExpiry(expiry, now time.Time) ExpiryState {
	if expiry.Before(now) {
		return Expired
	}
	if expiry.Sub(now) < ExpiringSoonWindow {
		return ExpiringSoon
	}
	return ExpiryNormal
}

func (e ExpiryState) String() string {
	switch e {
	case ExpiringSoon:
		return "expiring_soon"
	case Expired:
		return "expired"
	default:
		return "normal"
	}
}
