package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go-ems/internal/bootstrap"
	"go-ems/internal/events"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeReader serves queued messages and cancels the context once drained.
type fakeReader struct {
	msgs      []kafkago.Message
	committed []kafkago.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

type openCall struct {
	companyID, employeeID string
	on                    time.Time
}

// fakeLedger fails its first failures calls, or every call when err is set.
type fakeLedger struct {
	calls    []openCall
	err      error
	failures int
}

func (l *fakeLedger) OpenCurrent(_ context.Context, companyID, employeeID string, on time.Time) error {
	l.calls = append(l.calls, openCall{companyID, employeeID, on})
	if len(l.calls) <= l.failures {
		return errors.New("deadlock detected")
	}
	return l.err
}

// cancelingLedger fails and cancels the consumer context on its first call.
type cancelingLedger struct {
	calls  int
	cancel context.CancelFunc
}

func (l *cancelingLedger) OpenCurrent(context.Context, string, string, time.Time) error {
	l.calls++
	l.cancel()
	return errors.New("db down")
}

func withoutRetryDelay(t *testing.T) {
	t.Helper()
	prev := handleRetryDelay
	handleRetryDelay = 0
	t.Cleanup(func() { handleRetryDelay = prev })
}

type fakeRoles struct {
	seeded   []string
	assigned []string
	err      error
}

func (r *fakeRoles) SeedCompany(companyID string) error {
	r.seeded = append(r.seeded, companyID)
	return nil
}

func (r *fakeRoles) AssignRole(companyID, employeeID, role string) error {
	r.assigned = append(r.assigned, companyID+"/"+employeeID+"/"+role)
	return r.err
}

type memAudit struct {
	mu      sync.Mutex
	entries []bootstrap.AuditLog
}

func (a *memAudit) Log(_ context.Context, entry bootstrap.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func message(t *testing.T, v any) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestConsumeEmployeeLifecycle(t *testing.T) {
	withoutRetryDelay(t)
	now := time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("opens ledger and commits", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{
			message(t, events.EmployeeCreatedEvent{
				EventType: events.EmployeeCreatedType, EmployeeID: "e-1", CompanyID: "c-1", HireDate: "2024-01-02",
			}),
		}}
		ledger := &fakeLedger{}

		ConsumeEmployeeLifecycle(ctx, reader, ledger, nil, "", zap.NewNop(), clock)

		require.Len(t, ledger.calls, 1)
		assert.Equal(t, openCall{"c-1", "e-1", now}, ledger.calls[0])
		assert.Len(t, reader.committed, 1)
	})

	t.Run("future hire date opens the hire quarter", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{
			message(t, events.EmployeeCreatedEvent{
				EventType: events.EmployeeCreatedType, EmployeeID: "e-1", CompanyID: "c-1", HireDate: "2025-11-03",
			}),
		}}
		ledger := &fakeLedger{}

		ConsumeEmployeeLifecycle(ctx, reader, ledger, nil, "", zap.NewNop(), clock)

		require.Len(t, ledger.calls, 1)
		assert.Equal(t, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), ledger.calls[0].on)
	})

	t.Run("transient ledger failure is retried before commit", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{
			message(t, events.EmployeeCreatedEvent{EventType: events.EmployeeCreatedType, EmployeeID: "e-1", CompanyID: "c-1"}),
		}}
		ledger := &fakeLedger{failures: 2}

		ConsumeEmployeeLifecycle(ctx, reader, ledger, nil, "", zap.NewNop(), clock)

		assert.Len(t, ledger.calls, 3)
		assert.Len(t, reader.committed, 1)
	})

	t.Run("persistent ledger failure gives up after bounded attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{
			message(t, events.EmployeeCreatedEvent{EventType: events.EmployeeCreatedType, EmployeeID: "e-1", CompanyID: "c-1"}),
			message(t, events.EmployeeCreatedEvent{EventType: events.EmployeeCreatedType, EmployeeID: "e-2", CompanyID: "c-1"}),
		}}
		ledger := &fakeLedger{err: errors.New("db down")}

		ConsumeEmployeeLifecycle(ctx, reader, ledger, nil, "", zap.NewNop(), clock)

		assert.Len(t, ledger.calls, 2*handleAttempts)
		assert.Equal(t, "e-1", ledger.calls[0].employeeID)
		assert.Equal(t, "e-2", ledger.calls[handleAttempts].employeeID)
		assert.Len(t, reader.committed, 2)
	})

	t.Run("cancellation during retry leaves message uncommitted", func(t *testing.T) {
		prev := handleRetryDelay
		handleRetryDelay = time.Hour
		defer func() { handleRetryDelay = prev }()

		ctx, cancel := context.WithCancel(context.Background())
		reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{
			message(t, events.EmployeeCreatedEvent{EventType: events.EmployeeCreatedType, EmployeeID: "e-1", CompanyID: "c-1"}),
		}}
		ledger := &cancelingLedger{cancel: cancel}

		ConsumeEmployeeLifecycle(ctx, reader, ledger, nil, "", zap.NewNop(), clock)

		assert.Equal(t, 1, ledger.calls)
		assert.Empty(t, reader.committed)
	})

	t.Run("skips other event types and bad payloads", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{
			message(t, events.EmployeeCreatedEvent{EventType: events.EmployeeDeletedType, EmployeeID: "e-1"}),
			{Value: []byte("not json")},
		}}
		ledger := &fakeLedger{}

		ConsumeEmployeeLifecycle(ctx, reader, ledger, nil, "", zap.NewNop(), clock)

		assert.Empty(t, ledger.calls)
		assert.Len(t, reader.committed, 2)
	})
}

func TestConsumeEmployeeLifecycle_AssignsDefaultRole(t *testing.T) {
	withoutRetryDelay(t)
	clock := func() time.Time { return time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC) }
	created := events.EmployeeCreatedEvent{EventType: events.EmployeeCreatedType, EmployeeID: "e-1", CompanyID: "c-1"}

	t.Run("seeds and assigns", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{message(t, created)}}
		roles := &fakeRoles{}

		ConsumeEmployeeLifecycle(ctx, reader, &fakeLedger{}, roles, "Employee", zap.NewNop(), clock)

		assert.Equal(t, []string{"c-1"}, roles.seeded)
		assert.Equal(t, []string{"c-1/e-1/Employee"}, roles.assigned)
		assert.Len(t, reader.committed, 1)
	})

	t.Run("assignment failure is retried with the ledger", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{message(t, created)}}
		ledger := &fakeLedger{}
		roles := &fakeRoles{err: errors.New("db down")}

		ConsumeEmployeeLifecycle(ctx, reader, ledger, roles, "Employee", zap.NewNop(), clock)

		assert.Len(t, ledger.calls, handleAttempts)
		assert.Len(t, roles.assigned, handleAttempts)
		assert.Len(t, reader.committed, 1)
	})
}

func TestConsumeLeaveLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{cancel: cancel, msgs: []kafkago.Message{
		message(t, events.LeaveStatusChangedEvent{
			EventType: events.LeaveApprovedType, LeaveID: "l-1", EmployeeID: "e-1", CompanyID: "c-1",
			LeaveType: "Sick", FiscalYear: 2025, Quarter: "Q2", Days: 2,
			FromStatus: "Pending", ToStatus: "Approved", ActorID: "m-1",
		}),
		message(t, events.LeaveCarriedForwardEvent{
			EventType: events.LeaveCarriedForwardType, EmployeeID: "e-1", CompanyID: "c-1",
			FromFiscalYear: 2025, FromQuarter: "Q1", ToFiscalYear: 2025, ToQuarter: "Q2",
			CarriedForward: map[string]int{"Paid": 3},
		}),
		{Value: []byte("{")},
	}}
	audit := &memAudit{}

	ConsumeLeaveLifecycle(ctx, reader, audit, zap.NewNop())

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "LEAVE_STATUS_CHANGED", audit.entries[0].Action)
	assert.Equal(t, events.LeaveApprovedType, audit.entries[0].Message)
	assert.Equal(t, "FY2025-Q2", audit.entries[0].Meta["period"])
	assert.Equal(t, "LEAVE_CARRIED_FORWARD", audit.entries[1].Action)
	assert.Equal(t, "FY2025-Q1", audit.entries[1].Meta["from"])
	assert.Len(t, reader.committed, 3)
}
