package offline

import "time"

const (
	// planned offline24 invoices must reach KSeF the next working day
	plannedGrace = 24 * time.Hour
	// deadline after a maintenance window ends
	windowGrace = 24 * time.Hour
	// conservative fallback when the window end is not yet known
	unknownWindowGrace = 7 * 24 * time.Hour
)

// MaintenanceWindow is an externally tracked interval of known KSeF
// unavailability. A zero End means the end is not yet announced.
type MaintenanceWindow struct {
	ID    string
	Start time.Time
	End   time.Time
}

// CalculateDeadline computes the submission deadline for an offline invoice.
// ModePlanned24h is always generatedAt+24h, regardless of any maintenance
// window. The unplanned modes get windowEnd+24h when the end is known, and
// generatedAt+7d otherwise.
func CalculateDeadline(mode Mode, generatedAt time.Time, window *MaintenanceWindow) time.Time {
	if mode == ModePlanned24h {
		return generatedAt.Add(plannedGrace)
	}
	if window != nil && !window.End.IsZero() {
		return window.End.Add(windowGrace)
	}
	return generatedAt.Add(unknownWindowGrace)
}

// ExtendDeadline returns the deadline adjusted for updated maintenance
// window data. Deadlines only ever move later, never earlier; an unknown
// window end leaves the current deadline untouched.
func ExtendDeadline(current time.Time, window MaintenanceWindow) time.Time {
	if window.End.IsZero() {
		return current
	}
	candidate := window.End.Add(windowGrace)
	if candidate.After(current) {
		return candidate
	}
	return current
}

// IsExpired reports whether the deadline has passed. A deadline exactly
// equal to now is NOT expired; this boundary is part of the contract.
func IsExpired(deadline, now time.Time) bool {
	return deadline.Before(now)
}
