package session

import (
	"fmt"
	"time"
)

// EligibilityStatus is the outcome of checking the exam window against a
// wall-clock instant.
type EligibilityStatus string

const (
	// EligibilityNotYetOpen means now precedes the window start.
	EligibilityNotYetOpen EligibilityStatus = "NOT_YET_OPEN"
	// EligibilityOpen means now is within [start, end].
	EligibilityOpen EligibilityStatus = "OPEN"
	// EligibilityClosed means now is past the window end.
	EligibilityClosed EligibilityStatus = "CLOSED"
)

// Eligibility describes whether an exam may be entered at a given instant,
// with a human-readable explanation computed from the window bounds. Being
// outside the window is a designed outcome, not a fault.
type Eligibility struct {
	Status  EligibilityStatus
	OpensAt time.Time
	EndsAt  time.Time
	Message string
}

const clockStamp = "15:04 on 2 January 2006"

func evaluateWindow(now, start, end time.Time) Eligibility {
	e := Eligibility{OpensAt: start, EndsAt: end}
	switch {
	case now.Before(start):
		e.Status = EligibilityNotYetOpen
		e.Message = fmt.Sprintf("This exam becomes available at %s.", start.Format(clockStamp))
	case now.After(end):
		e.Status = EligibilityClosed
		e.Message = fmt.Sprintf("The exam window closed at %s.", end.Format(clockStamp))
	default:
		e.Status = EligibilityOpen
		e.Message = fmt.Sprintf("The exam is open until %s.", end.Format(clockStamp))
	}
	return e
}
