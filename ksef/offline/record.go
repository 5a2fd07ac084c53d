package offline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alapierre/go-ksef-offline/ksef/qr"
)

// Status is the lifecycle state of an offline invoice record.
type Status int

const (
	StatusGenerated Status = iota + 1
	StatusQueued
	StatusSubmitted
	StatusAccepted
	StatusRejected
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusGenerated:
		return "GENERATED"
	case StatusQueued:
		return "QUEUED"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusRejected:
		return "REJECTED"
	case StatusExpired:
		return "EXPIRED"
	}
	return "Unknown"
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GENERATED":
		return StatusGenerated, nil
	case "QUEUED":
		return StatusQueued, nil
	case "SUBMITTED":
		return StatusSubmitted, nil
	case "ACCEPTED":
		return StatusAccepted, nil
	case "REJECTED":
		return StatusRejected, nil
	case "EXPIRED":
		return StatusExpired, nil
	}
	return 0, fmt.Errorf("invalid record status: %q", s)
}

// Terminal reports whether the engine makes no further transitions from s.
// A caller may still resubmit manually; the engine never does.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusExpired
}

// REJECTED is reachable from QUEUED when the submission call itself fails,
// and from SUBMITTED when KSeF refuses the invoice.
var transitions = map[Status][]Status{
	StatusGenerated: {StatusQueued, StatusExpired},
	StatusQueued:    {StatusSubmitted, StatusRejected, StatusExpired},
	StatusSubmitted: {StatusAccepted, StatusRejected},
}

var ErrInvalidTransition = errors.New("invalid status transition")

// ErrorInfo captures a remote submission failure on the record.
type ErrorInfo struct {
	Code    string
	Message string
}

// Record is the unit of offline invoice lifecycle tracking. It owns the full
// invoice XML and both verification codes; it is created at generation time
// and mutated only by the reconciliation coordinator and the explicit
// deadline-extension call. The engine never deletes records, even expired
// ones - removal is always an explicit caller decision.
type Record struct {
	ID string

	Mode   Mode
	Reason string

	InvoiceNumber string
	InvoiceXML    []byte
	SellerNip     string
	BuyerNip      string

	Codes qr.Codes

	GeneratedAt         time.Time
	SubmitBy            time.Time
	MaintenanceWindowID string

	Status          Status
	ReferenceNumber string
	SubmittedAt     *time.Time
	Error           *ErrorInfo
}

// CanTransition reports whether moving to the given status is legal.
// Transitions never skip a state and terminal states allow none.
func (r *Record) CanTransition(to Status) bool {
	for _, s := range transitions[r.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the record to the given status or fails with
// ErrInvalidTransition.
func (r *Record) Transition(to Status) error {
	if !r.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	return nil
}

// Clone returns a deep copy, so store implementations can hand out records
// without sharing mutable state.
func (r *Record) Clone() *Record {
	c := *r

	if r.InvoiceXML != nil {
		c.InvoiceXML = append([]byte(nil), r.InvoiceXML...)
	}
	if r.Codes.KodII != nil {
		kod2 := *r.Codes.KodII
		c.Codes.KodII = &kod2
	}
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		c.SubmittedAt = &t
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return &c
}
