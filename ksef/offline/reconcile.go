package offline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alapierre/go-ksef-offline/ksef/mutex"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// SubmitResult is the outcome of one remote submission call.
type SubmitResult struct {
	ReferenceNumber string
	Accepted        bool
}

// Submitter is the opaque remote submission capability.
type Submitter interface {
	Submit(ctx context.Context, invoiceXML []byte) (SubmitResult, error)
}

// errorCoder lets submission errors carry a machine readable code without
// this package depending on any transport.
type errorCoder interface {
	SubmissionErrorCode() string
}

// BatchOptions controls record selection and batch behaviour.
type BatchOptions struct {
	// BatchSize chunks outbound calls for pacing. It never changes counts
	// or ordering. Zero means one chunk.
	BatchSize int

	// StatusFilter defaults to {GENERATED, QUEUED}.
	StatusFilter []Status

	// ExpiringWithinHours, when positive, narrows selection to records with
	// submitBy <= now + this many hours.
	ExpiringWithinHours int

	// StopOnError halts the batch at the first failure. Results gathered so
	// far are still returned. The default (false) continues.
	StopOnError bool
}

// Outcome is the per-record result of a batch run. Skipped marks a record
// that was already terminal when selected; it was not touched and counts in
// no live bucket.
type Outcome struct {
	RecordID        string
	InvoiceNumber   string
	Status          Status
	ReferenceNumber string
	Err             *ErrorInfo
	Skipped         bool
}

// failed reports whether the outcome counts as a failure: a rejection or a
// local fault. Expiries, skips and post-submission store faults do not.
func (o Outcome) failed() bool {
	if o.Skipped || o.Err == nil {
		return false
	}
	switch o.Status {
	case StatusExpired, StatusSubmitted, StatusAccepted:
		return false
	}
	return true
}

// BatchResult aggregates a batch run. Submitted counts every record for
// which the submission call was made and did not fail, regardless of
// acceptance. Skipped counts records that were already terminal when
// selected by an explicit status filter.
type BatchResult struct {
	Total     int
	Submitted int
	Accepted  int
	Rejected  int
	Failed    int
	Expired   int
	Skipped   int

	Outcomes []Outcome
}

// Coordinator drives eligible offline records through submission or expiry.
// Records are processed strictly in ascending submitBy order, most urgent
// first, so a cut-off mid-batch leaves only the least critical unprocessed.
type Coordinator struct {
	store     Store
	submitter Submitter
	clock     clockwork.Clock
	locks     mutex.KeyedRWMutex[string]
}

type CoordinatorOption func(*Coordinator)

func WithClock(c clockwork.Clock) CoordinatorOption {
	return func(co *Coordinator) { co.clock = c }
}

func NewCoordinator(store Store, submitter Submitter, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		submitter: submitter,
		clock:     clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SubmitBatch selects eligible records, orders them by deadline and drives
// each one through submission or expiry. Per-record failures are captured in
// the result; only a cancelled context or a store failure aborts the run.
func (c *Coordinator) SubmitBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	statuses := opts.StatusFilter
	if len(statuses) == 0 {
		statuses = []Status{StatusGenerated, StatusQueued}
	}

	filter := Filter{Statuses: statuses}
	if opts.ExpiringWithinHours > 0 {
		now := c.clock.Now().UTC()
		filter.SubmitByBefore = now.Add(time.Duration(opts.ExpiringWithinHours) * time.Hour)
	}

	records, err := c.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SubmitBy.Before(records[j].SubmitBy)
	})

	result := &BatchResult{Total: len(records)}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(records)
	}

	logger.WithFields(logrus.Fields{
		"total":      len(records),
		"batch_size": batchSize,
	}).Info("Starting offline invoice reconciliation")

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}

		for _, record := range records[start:end] {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			default:
			}

			outcome := c.processRecord(ctx, record)
			result.add(outcome)

			if opts.StopOnError && outcome.failed() {
				logger.WithField("record_id", record.ID).Warn("Stopping batch on first failure")
				return result, nil
			}
		}
	}

	return result, nil
}

func (c *Coordinator) processRecord(ctx context.Context, record *Record) Outcome {
	c.locks.Lock(record.ID)
	defer c.locks.Unlock(record.ID)

	outcome := Outcome{RecordID: record.ID, InvoiceNumber: record.InvoiceNumber}

	// rekordy w stanie końcowym pomijamy bez żadnego efektu: nigdy nie są
	// ponawiane ani zaliczane do żywych liczników
	if record.Status.Terminal() {
		outcome.Status = record.Status
		outcome.Skipped = true
		return outcome
	}

	now := c.clock.Now().UTC()

	// expiry is checked at submission-attempt time, not eagerly
	if IsExpired(record.SubmitBy, now) {
		info := &ErrorInfo{Code: "EXPIRED", Message: "submission deadline exceeded"}
		if err := c.step(ctx, record, StatusExpired, Patch{Error: info}); err != nil {
			return c.localFault(record, outcome, err)
		}
		outcome.Status = StatusExpired
		outcome.Err = info
		logger.WithField("record_id", record.ID).Info("Offline invoice expired before submission")
		return outcome
	}

	if record.Status == StatusGenerated {
		if err := c.step(ctx, record, StatusQueued, Patch{}); err != nil {
			return c.localFault(record, outcome, err)
		}
	}

	res, err := c.submitter.Submit(ctx, record.InvoiceXML)
	if err != nil {
		return c.reject(ctx, record, outcome, err)
	}

	outcome.Status = StatusSubmitted
	outcome.ReferenceNumber = res.ReferenceNumber

	submittedAt := c.clock.Now().UTC()
	patch := Patch{
		ReferenceNumber: &res.ReferenceNumber,
		SubmittedAt:     &submittedAt,
	}
	if err := c.step(ctx, record, StatusSubmitted, patch); err != nil {
		// faktura jest już w KSeF; lokalny błąd zapisu nie unieważnia
		// wysyłki, rekord zostaje w ostatnim utrwalonym stanie
		outcome.Err = faultInfo(err)
		logger.WithField("record_id", record.ID).Errorf("Submitted but cannot persist: %v", err)
		return outcome
	}

	if res.Accepted {
		if err := c.step(ctx, record, StatusAccepted, Patch{}); err != nil {
			outcome.Err = faultInfo(err)
			logger.WithField("record_id", record.ID).Errorf("Accepted but cannot persist: %v", err)
			return outcome
		}
		outcome.Status = StatusAccepted
	}

	logger.WithFields(logrus.Fields{
		"record_id": record.ID,
		"reference": res.ReferenceNumber,
		"status":    outcome.Status.String(),
	}).Info("Offline invoice submitted")

	return outcome
}

// step persists the transition first and mutates the record only after the
// write succeeded, so a store failure leaves the record at its last
// persisted status.
func (c *Coordinator) step(ctx context.Context, record *Record, to Status, patch Patch) error {
	if !record.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, to)
	}
	patch.Status = &to
	if err := c.store.Update(ctx, record.ID, patch); err != nil {
		return err
	}
	return record.Transition(to)
}

// reject handles a failed submission call: the record moves to REJECTED
// with the error captured, both on the record and in the outcome.
func (c *Coordinator) reject(ctx context.Context, record *Record, outcome Outcome, err error) Outcome {
	code := "SUBMIT"
	if ec, ok := err.(errorCoder); ok && ec.SubmissionErrorCode() != "" {
		code = ec.SubmissionErrorCode()
	}
	info := &ErrorInfo{Code: code, Message: err.Error()}

	outcome.Status = StatusRejected
	outcome.Err = info

	if stepErr := c.step(ctx, record, StatusRejected, Patch{Error: info}); stepErr != nil {
		logger.WithField("record_id", record.ID).Errorf("Cannot persist rejection: %v", stepErr)
	}

	logger.WithFields(logrus.Fields{
		"record_id": record.ID,
		"code":      code,
	}).Warnf("Offline invoice submission failed: %s", err)

	return outcome
}

// localFault reports a transition or persistence failure before any
// submission happened. The record keeps its last persisted status and will
// be picked up again by a later run; only genuine remote rejections reach
// REJECTED.
func (c *Coordinator) localFault(record *Record, outcome Outcome, err error) Outcome {
	outcome.Status = record.Status
	outcome.Err = faultInfo(err)

	logger.WithFields(logrus.Fields{
		"record_id": record.ID,
		"code":      outcome.Err.Code,
	}).Warnf("Offline invoice processing fault: %v", err)

	return outcome
}

func faultInfo(err error) *ErrorInfo {
	code := "STORE"
	if errors.Is(err, ErrInvalidTransition) {
		code = "TRANSITION"
	}
	return &ErrorInfo{Code: code, Message: err.Error()}
}

func (r *BatchResult) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)

	if o.Skipped {
		r.Skipped++
		return
	}

	switch o.Status {
	case StatusExpired:
		r.Expired++
	case StatusRejected:
		r.Failed++
		r.Rejected++
	case StatusSubmitted:
		r.Submitted++
	case StatusAccepted:
		r.Submitted++
		r.Accepted++
	default:
		// lokalny błąd przed wysyłką; rekord pozostaje w dotychczasowym stanie
		r.Failed++
	}
}

// ExtendDeadlines pushes the submitBy deadline of every non-terminal record
// tied to the given maintenance window, using the updated window end.
// Deadlines only ever move later. Returns how many records were extended.
func (c *Coordinator) ExtendDeadlines(ctx context.Context, window MaintenanceWindow) (int, error) {
	records, err := c.store.List(ctx, Filter{
		Statuses:            []Status{StatusGenerated, StatusQueued},
		MaintenanceWindowID: window.ID,
	})
	if err != nil {
		return 0, err
	}

	extended := 0
	for _, record := range records {
		next := ExtendDeadline(record.SubmitBy, window)
		if !next.After(record.SubmitBy) {
			continue
		}
		if err := c.store.Update(ctx, record.ID, Patch{SubmitBy: &next}); err != nil {
			return extended, err
		}
		extended++

		logger.WithFields(logrus.Fields{
			"record_id": record.ID,
			"submit_by": next,
		}).Debug("Extended submission deadline")
	}

	return extended, nil
}
