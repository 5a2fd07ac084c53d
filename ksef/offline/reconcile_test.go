package offline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter fails for ids listed in failFor and records call order.
type fakeSubmitter struct {
	failFor  map[string]error
	accept   bool
	calls    []string
	byXML    map[string]string // xml -> record id, to track call order
	sequence int
}

func newFakeSubmitter(accept bool) *fakeSubmitter {
	return &fakeSubmitter{
		failFor: map[string]error{},
		accept:  accept,
		byXML:   map[string]string{},
	}
}

func (f *fakeSubmitter) Submit(_ context.Context, invoiceXML []byte) (SubmitResult, error) {
	id := f.byXML[string(invoiceXML)]
	f.calls = append(f.calls, id)

	if err, ok := f.failFor[id]; ok {
		return SubmitResult{}, err
	}

	f.sequence++
	return SubmitResult{
		ReferenceNumber: fmt.Sprintf("REF-%04d", f.sequence),
		Accepted:        f.accept,
	}, nil
}

type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string               { return e.msg }
func (e *codedError) SubmissionErrorCode() string { return e.code }

func seedRecord(t *testing.T, store Store, id string, status Status, submitBy time.Time, sub *fakeSubmitter) {
	t.Helper()

	xml := fmt.Sprintf("<Faktura><id>%s</id></Faktura>", id)
	sub.byXML[xml] = id

	require.NoError(t, store.Save(context.Background(), &Record{
		ID:            id,
		Mode:          ModePlanned24h,
		Reason:        DefaultReason(ModePlanned24h),
		InvoiceNumber: "FV/" + id,
		InvoiceXML:    []byte(xml),
		SellerNip:     "6891152920",
		GeneratedAt:   submitBy.Add(-24 * time.Hour),
		SubmitBy:      submitBy,
		Status:        status,
	}))
}

func TestSubmitBatch_MixedOutcomes(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(true)

	// one past deadline, one whose submission fails, one that succeeds
	seedRecord(t, store, "expired", StatusGenerated, now.Add(-2*time.Hour), sub)
	seedRecord(t, store, "failing", StatusGenerated, now.Add(4*time.Hour), sub)
	seedRecord(t, store, "good", StatusGenerated, now.Add(8*time.Hour), sub)
	sub.failFor["failing"] = &codedError{code: "21104", msg: "weryfikacja negatywna"}

	coord := NewCoordinator(store, sub, WithClock(clock))

	result, err := coord.SubmitBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 1, result.Accepted)

	// conservation: every record in exactly one bucket
	assert.Equal(t, result.Total, result.Submitted+result.Failed+result.Expired)
	assert.Len(t, result.Outcomes, 3)

	// expired record never hit the network
	assert.NotContains(t, sub.calls, "expired")

	expired, err := store.Get(context.Background(), "expired")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, expired.Status)

	failing, err := store.Get(context.Background(), "failing")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, failing.Status)
	require.NotNil(t, failing.Error)
	assert.Equal(t, "21104", failing.Error.Code)
	assert.Equal(t, "weryfikacja negatywna", failing.Error.Message)

	good, err := store.Get(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, good.Status)
	assert.Equal(t, "REF-0001", good.ReferenceNumber)
	require.NotNil(t, good.SubmittedAt)
	assert.Equal(t, now, good.SubmittedAt.UTC())
}

func TestSubmitBatch_DeadlineAscendingOrder(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(true)

	seedRecord(t, store, "late", StatusGenerated, now.Add(72*time.Hour), sub)
	seedRecord(t, store, "urgent", StatusGenerated, now.Add(1*time.Hour), sub)
	seedRecord(t, store, "middle", StatusGenerated, now.Add(24*time.Hour), sub)

	coord := NewCoordinator(store, sub, WithClock(clock))

	_, err := coord.SubmitBatch(context.Background(), BatchOptions{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"urgent", "middle", "late"}, sub.calls)
}

func TestSubmitBatch_StopOnError(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(true)

	seedRecord(t, store, "a", StatusGenerated, now.Add(1*time.Hour), sub)
	seedRecord(t, store, "b", StatusGenerated, now.Add(2*time.Hour), sub)
	seedRecord(t, store, "c", StatusGenerated, now.Add(3*time.Hour), sub)
	sub.failFor["b"] = fmt.Errorf("connection reset")

	coord := NewCoordinator(store, sub, WithClock(clock))

	result, err := coord.SubmitBatch(context.Background(), BatchOptions{StopOnError: true})
	require.NoError(t, err)

	// partial results are returned, later records stay untouched
	assert.Len(t, result.Outcomes, 2)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 1, result.Failed)
	assert.NotContains(t, sub.calls, "c")

	c, err := store.Get(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, c.Status)
}

func TestSubmitBatch_ContinuesPastFailure(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(true)

	seedRecord(t, store, "a", StatusGenerated, now.Add(1*time.Hour), sub)
	seedRecord(t, store, "b", StatusGenerated, now.Add(2*time.Hour), sub)
	sub.failFor["a"] = fmt.Errorf("boom")

	coord := NewCoordinator(store, sub, WithClock(clock))

	result, err := coord.SubmitBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Len(t, result.Outcomes, 2)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Submitted)
	assert.Contains(t, sub.calls, "b")
}

func TestSubmitBatch_QueuedIsIdempotent(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(false)

	seedRecord(t, store, "q", StatusQueued, now.Add(1*time.Hour), sub)

	coord := NewCoordinator(store, sub, WithClock(clock))

	result, err := coord.SubmitBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 0, result.Accepted)

	q, err := store.Get(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, q.Status)
}

func TestSubmitBatch_ExpiredNeverResubmitted(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(true)

	seedRecord(t, store, "dead", StatusExpired, now.Add(10*time.Hour), sub)

	coord := NewCoordinator(store, sub, WithClock(clock))

	// caller explicitly re-enqueues expired records
	result, err := coord.SubmitBatch(context.Background(), BatchOptions{
		StatusFilter: []Status{StatusExpired},
	})
	require.NoError(t, err)

	assert.Empty(t, sub.calls, "expired record must not reach the submitter")
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Expired, "a record expired before this run is skipped, not re-expired")
}

func TestSubmitBatch_TerminalRecordsAreSkipped(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(true)

	// terminal records sort first, the live one last
	seedRecord(t, store, "was-accepted", StatusAccepted, now.Add(1*time.Hour), sub)
	seedRecord(t, store, "was-rejected", StatusRejected, now.Add(2*time.Hour), sub)
	seedRecord(t, store, "live", StatusGenerated, now.Add(3*time.Hour), sub)

	coord := NewCoordinator(store, sub, WithClock(clock))

	result, err := coord.SubmitBatch(context.Background(), BatchOptions{
		StatusFilter: []Status{StatusAccepted, StatusRejected, StatusGenerated},
		StopOnError:  true,
	})
	require.NoError(t, err)

	// stale terminal records stay out of the live buckets and must not
	// trip the stop-on-error cutoff
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Rejected)
	assert.Equal(t, []string{"live"}, sub.calls)

	for _, id := range []string{"was-accepted", "was-rejected"} {
		r, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, r.Status.Terminal(), "record %s must stay untouched", id)
	}
}

// flakyStore fails Update for configured ids when the patch moves them to
// the given status.
type flakyStore struct {
	Store
	failOn map[string]Status
}

func (f *flakyStore) Update(ctx context.Context, id string, patch Patch) error {
	if st, ok := f.failOn[id]; ok && patch.Status != nil && *patch.Status == st {
		return fmt.Errorf("disk full")
	}
	return f.Store.Update(ctx, id, patch)
}

func TestSubmitBatch_StoreFaultAfterSubmitIsNotRejection(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	mem := NewMemoryStore()
	sub := newFakeSubmitter(true)
	seedRecord(t, mem, "r1", StatusQueued, now.Add(2*time.Hour), sub)

	store := &flakyStore{Store: mem, failOn: map[string]Status{"r1": StatusSubmitted}}
	coord := NewCoordinator(store, sub, WithClock(clock))

	result, err := coord.SubmitBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	// the invoice reached KSeF, so it counts as submitted with the fault
	// attached, never as a rejection
	assert.Equal(t, []string{"r1"}, sub.calls)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Rejected)

	require.Len(t, result.Outcomes, 1)
	outcome := result.Outcomes[0]
	assert.Equal(t, StatusSubmitted, outcome.Status)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, "STORE", outcome.Err.Code)

	// the stored record keeps its last persisted status for the next run
	r, err := mem.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, r.Status)
}

func TestSubmitBatch_LocalFaultDoesNotReject(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	mem := NewMemoryStore()
	sub := newFakeSubmitter(true)
	seedRecord(t, mem, "r1", StatusGenerated, now.Add(2*time.Hour), sub)

	store := &flakyStore{Store: mem, failOn: map[string]Status{"r1": StatusQueued}}
	coord := NewCoordinator(store, sub, WithClock(clock))

	result, err := coord.SubmitBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)

	// the queueing write failed, so no submission was attempted
	assert.Empty(t, sub.calls)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Rejected)

	require.Len(t, result.Outcomes, 1)
	outcome := result.Outcomes[0]
	assert.Equal(t, StatusGenerated, outcome.Status)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, "STORE", outcome.Err.Code)

	r, err := mem.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, r.Status)
	assert.Nil(t, r.Error)
}

func TestSubmitBatch_ExpiringWithinHours(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(true)

	seedRecord(t, store, "soon", StatusGenerated, now.Add(2*time.Hour), sub)
	seedRecord(t, store, "later", StatusGenerated, now.Add(48*time.Hour), sub)

	coord := NewCoordinator(store, sub, WithClock(clock))

	result, err := coord.SubmitBatch(context.Background(), BatchOptions{ExpiringWithinHours: 6})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, []string{"soon"}, sub.calls)
}

func TestSubmitBatch_ChunkingDoesNotChangeCounts(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)

	run := func(batchSize int) *BatchResult {
		clock := clockwork.NewFakeClockAt(now)
		store := NewMemoryStore()
		sub := newFakeSubmitter(true)

		for i := 0; i < 7; i++ {
			seedRecord(t, store, fmt.Sprintf("r%d", i), StatusGenerated, now.Add(time.Duration(i+1)*time.Hour), sub)
		}

		coord := NewCoordinator(store, sub, WithClock(clock))
		result, err := coord.SubmitBatch(context.Background(), BatchOptions{BatchSize: batchSize})
		require.NoError(t, err)
		return result
	}

	for _, size := range []int{0, 1, 3, 100} {
		result := run(size)
		assert.Equal(t, 7, result.Total, "batch size %d", size)
		assert.Equal(t, 7, result.Submitted, "batch size %d", size)
		assert.Len(t, result.Outcomes, 7, "batch size %d", size)
	}
}

func TestExtendDeadlines(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	store := NewMemoryStore()
	sub := newFakeSubmitter(true)
	ctx := context.Background()

	mk := func(id string, submitBy time.Time, windowID string, status Status) {
		xml := fmt.Sprintf("<Faktura><id>%s</id></Faktura>", id)
		sub.byXML[xml] = id
		require.NoError(t, store.Save(ctx, &Record{
			ID:                  id,
			Mode:                ModeSystemUnavailable,
			InvoiceXML:          []byte(xml),
			SellerNip:           "6891152920",
			SubmitBy:            submitBy,
			MaintenanceWindowID: windowID,
			Status:              status,
		}))
	}

	mk("in-window", now.Add(2*time.Hour), "mw-1", StatusGenerated)
	mk("other-window", now.Add(2*time.Hour), "mw-2", StatusGenerated)
	mk("already-late-enough", now.Add(96*time.Hour), "mw-1", StatusQueued)
	mk("terminal", now.Add(2*time.Hour), "mw-1", StatusExpired)

	coord := NewCoordinator(store, sub, WithClock(clock))

	window := MaintenanceWindow{ID: "mw-1", End: now.Add(12 * time.Hour)}
	extended, err := coord.ExtendDeadlines(ctx, window)
	require.NoError(t, err)

	assert.Equal(t, 1, extended)

	r, err := store.Get(ctx, "in-window")
	require.NoError(t, err)
	assert.Equal(t, window.End.Add(24*time.Hour), r.SubmitBy)

	// untouched records keep their deadline
	for id, expected := range map[string]time.Time{
		"other-window":        now.Add(2 * time.Hour),
		"already-late-enough": now.Add(96 * time.Hour),
		"terminal":            now.Add(2 * time.Hour),
	} {
		r, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, expected, r.SubmitBy, "record %s", id)
	}
}
