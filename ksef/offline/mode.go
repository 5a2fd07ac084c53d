// Package offline tracks invoices issued while KSeF is unreachable: record
// lifecycle, submission deadlines and batch reconciliation once the service
// is back.
package offline

import (
	"fmt"
	"strings"
)

// Mode classifies why the invoice was issued without KSeF confirmation.
type Mode int

const (
	// ModePlanned24h is the planned offline24 issuance window.
	ModePlanned24h Mode = iota + 1
	// ModeSystemUnavailable covers announced KSeF unavailability.
	ModeSystemUnavailable
	// ModeEmergency is the emergency mode announced by the ministry.
	ModeEmergency
	// ModeTotalFailure is a declared total failure of KSeF.
	ModeTotalFailure
)

func (m Mode) String() string {
	switch m {
	case ModePlanned24h:
		return "offline24"
	case ModeSystemUnavailable:
		return "system-unavailable"
	case ModeEmergency:
		return "emergency"
	case ModeTotalFailure:
		return "total-failure"
	}
	return "Unknown"
}

func (m Mode) Valid() bool {
	return m >= ModePlanned24h && m <= ModeTotalFailure
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offline24":
		return ModePlanned24h, nil
	case "system-unavailable":
		return ModeSystemUnavailable, nil
	case "emergency":
		return ModeEmergency, nil
	case "total-failure":
		return ModeTotalFailure, nil
	}
	return 0, fmt.Errorf("invalid offline mode: %q", s)
}

// DefaultReason maps a mode to its default issuance reason, used when the
// caller supplies no explicit one.
func DefaultReason(m Mode) string {
	switch m {
	case ModePlanned24h:
		return "planned offline issuance (offline24)"
	case ModeSystemUnavailable:
		return "KSeF system unavailable"
	case ModeEmergency:
		return "emergency mode announced by the ministry"
	case ModeTotalFailure:
		return "total KSeF failure"
	}
	return ""
}
