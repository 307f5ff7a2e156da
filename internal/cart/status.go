package cart

import (
	"fmt"
	"strings"
)

// Status enumerates the cart lifecycle states.
type Status int

const (
	StatusActive Status = iota
	StatusAbandoned
	StatusExpired
	StatusCheckedOut
	StatusProcessing
	StatusCompleted
)

var statusNames = [...]string{
	StatusActive:     "Active",
	StatusAbandoned:  "Abandoned",
	StatusExpired:    "Expired",
	StatusCheckedOut: "Checked Out",
	StatusProcessing: "Processing",
	StatusCompleted:  "Completed",
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
	return 0, fmt.Errorf("cart: unknown status %q", name)
}

// Indicator returns the dashboard color for the status.
func (s Status) Indicator() string {
	switch s {
	case StatusActive:
		return "green"
	case StatusAbandoned, StatusProcessing:
		return "orange"
	case StatusExpired:
		return "red"
	case StatusCheckedOut:
		return "blue"
	case StatusCompleted:
		return "green"
	default:
		return "grey"
	}
}

// Mutable reports whether cart contents may still change.
func (s Status) Mutable() bool {
	return s == StatusActive
}
