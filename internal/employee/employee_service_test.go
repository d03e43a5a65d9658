package employee_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"go-ems/internal/employee"
	employeeerrors "go-ems/internal/employee/errors"
	employeeMock "go-ems/internal/employee/mock"
	"go-ems/internal/events"
	"go-ems/internal/messaging/kafka"
	kafkaMock "go-ems/internal/messaging/kafka/mock"
	"go-ems/internal/shared/contextutil"
	counterMock "go-ems/internal/shared/counter/mock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

type serviceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	service employee.Service
	repo    *employeeMock.MockRepository
	counter *counterMock.MockRepository
	outbox  *kafkaMock.MockOutboxRepository
}

func setupServiceTest(t *testing.T) *serviceDeps {
	t.Helper()
	ctrl := gomock.NewController(t)

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := employeeMock.NewMockRepository(ctrl)
	counterRepo := counterMock.NewMockRepository(ctrl)
	outboxRepo := kafkaMock.NewMockOutboxRepository(ctrl)

	return &serviceDeps{
		db:      db,
		sqlMock: sqlMock,
		service: employee.NewServiceWithOutbox(db, repo, counterRepo, outboxRepo),
		repo:    repo,
		counter: counterRepo,
		outbox:  outboxRepo,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

type outboxMatcher struct {
	rid       string
	eventType string
}

// MatchOutbox checks the event type, topic and propagated request id of an outbox row.
func MatchOutbox(rid, eventType string) gomock.Matcher {
	return outboxMatcher{rid: rid, eventType: eventType}
}

func (m outboxMatcher) Matches(x any) bool {
	event, ok := x.(kafka.OutboxEvent)
	if !ok {
		return false
	}
	var payload events.EmployeeCreatedEvent
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return false
	}
	return event.RequestID == m.rid &&
		event.EventType == m.eventType &&
		event.Topic == events.EmployeeLifecycleTopic &&
		payload.RequestID == m.rid &&
		payload.EventType == m.eventType
}

func (m outboxMatcher) String() string {
	return fmt.Sprintf("outbox event %s with request id %s", m.eventType, m.rid)
}

func TestEmployeeService_Create(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New().String()

	t.Run("success - auto generate employee number", func(t *testing.T) {
		deps := setupServiceTest(t)
		req := employee.CreateEmployeeRequest{
			FullName: " Rina Hartono ",
			Email:    "Rina@Example.com",
			HireDate: "2025-04-01",
		}

		expectTx(t, deps.sqlMock, true)
		deps.repo.EXPECT().WithTx(gomock.Any()).Return(deps.repo)
		deps.counter.EXPECT().WithTx(gomock.Any()).Return(deps.counter)
		deps.counter.EXPECT().
			GetNextValue(ctx, companyID, "employee_number").
			Return(int64(123), nil)
		deps.repo.EXPECT().
			Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, e *employee.Employee) error {
				assert.Equal(t, "Rina Hartono", e.FullName)
				assert.Equal(t, "rina@example.com", e.Email)
				assert.Equal(t, "EMP-000123", e.EmployeeNumber)
				assert.Equal(t, companyID, e.CompanyID.String())
				assert.Equal(t, employee.StatusActive, e.Status)
				return nil
			})
		deps.outbox.EXPECT().WithTx(gomock.Any()).Return(deps.outbox)
		deps.outbox.EXPECT().Create(gomock.Any(), MatchOutbox("", events.EmployeeCreatedType)).Return(nil)

		resp, err := deps.service.Create(ctx, companyID, req)

		assert.NoError(t, err)
		assert.Equal(t, "EMP-000123", resp.EmployeeNumber)
		assert.Equal(t, "2025-04-01", resp.HireDate)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success - propagates request id to outbox", func(t *testing.T) {
		deps := setupServiceTest(t)
		rid := "REQ-123-ABC"
		ctx := contextutil.WithRequestID(context.Background(), rid)

		expectTx(t, deps.sqlMock, true)
		deps.repo.EXPECT().WithTx(gomock.Any()).Return(deps.repo)
		deps.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		deps.outbox.EXPECT().WithTx(gomock.Any()).Return(deps.outbox)
		deps.outbox.EXPECT().Create(gomock.Any(), MatchOutbox(rid, events.EmployeeCreatedType)).Return(nil)

		_, err := deps.service.Create(ctx, companyID, employee.CreateEmployeeRequest{
			FullName:       "John Doe",
			Email:          "john@example.com",
			EmployeeNumber: "EMP-900",
			HireDate:       "2026-01-01",
		})

		assert.NoError(t, err)
	})

	t.Run("invalid hire date", func(t *testing.T) {
		deps := setupServiceTest(t)

		_, err := deps.service.Create(ctx, companyID, employee.CreateEmployeeRequest{
			FullName: "HR", Email: "hr@example.com", HireDate: "01-01-2026",
		})

		assert.ErrorIs(t, err, employeeerrors.ErrInvalidHireDate)
	})

	t.Run("duplicate email -> conflict and rollback", func(t *testing.T) {
		deps := setupServiceTest(t)
		expectTx(t, deps.sqlMock, false)
		deps.repo.EXPECT().WithTx(gomock.Any()).Return(deps.repo)
		deps.repo.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			Return(&pgconn.PgError{Code: "23505", ConstraintName: "uq_employee_email"})

		_, err := deps.service.Create(ctx, companyID, employee.CreateEmployeeRequest{
			FullName: "HR", Email: "hr@example.com", EmployeeNumber: "EMP-101", HireDate: "2026-01-02",
		})

		assert.ErrorIs(t, err, employeeerrors.ErrEmployeeAlreadyExists)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("duplicate number -> conflict", func(t *testing.T) {
		deps := setupServiceTest(t)
		expectTx(t, deps.sqlMock, false)
		deps.repo.EXPECT().WithTx(gomock.Any()).Return(deps.repo)
		deps.repo.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			Return(&pgconn.PgError{Code: "23505", ConstraintName: "uq_employee_number"})

		_, err := deps.service.Create(ctx, companyID, employee.CreateEmployeeRequest{
			FullName: "HR", Email: "hr@example.com", EmployeeNumber: "EMP-101", HireDate: "2026-01-02",
		})

		assert.ErrorIs(t, err, employeeerrors.ErrEmployeeNumberAlreadyExists)
	})

	t.Run("outbox error -> rollback", func(t *testing.T) {
		deps := setupServiceTest(t)
		expectTx(t, deps.sqlMock, false)
		deps.repo.EXPECT().WithTx(gomock.Any()).Return(deps.repo)
		deps.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		deps.outbox.EXPECT().WithTx(gomock.Any()).Return(deps.outbox)
		deps.outbox.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))

		_, err := deps.service.Create(ctx, companyID, employee.CreateEmployeeRequest{
			FullName: "HR", Email: "hr@example.com", EmployeeNumber: "EMP-101", HireDate: "2026-01-02",
		})

		assert.EqualError(t, err, "outbox down")
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})
}

func TestEmployeeService_GetAll(t *testing.T) {
	deps := setupServiceTest(t)
	ctx := context.Background()
	companyID := uuid.New()

	deps.repo.EXPECT().FindAllByCompany(ctx, companyID.String()).Return([]employee.Employee{
		{ID: uuid.New(), CompanyID: companyID, EmployeeNumber: "EMP-000001", FullName: "A", Status: employee.StatusActive},
		{ID: uuid.New(), CompanyID: companyID, EmployeeNumber: "EMP-000002", FullName: "B", Status: employee.StatusInactive},
	}, nil)

	resp, err := deps.service.GetAll(ctx, companyID.String())

	assert.NoError(t, err)
	assert.Len(t, resp, 2)
	assert.Equal(t, "EMP-000002", resp[1].EmployeeNumber)
}

func TestEmployeeService_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		deps := setupServiceTest(t)
		deps.repo.EXPECT().FindByIDAndCompany(ctx, "c", "e").Return(nil, gorm.ErrRecordNotFound)

		_, err := deps.service.GetByID(ctx, "c", "e")

		assert.ErrorIs(t, err, employeeerrors.ErrEmployeeNotFound)
	})

	t.Run("found", func(t *testing.T) {
		deps := setupServiceTest(t)
		id := uuid.New()
		deps.repo.EXPECT().FindByIDAndCompany(ctx, "c", id.String()).Return(&employee.Employee{ID: id, FullName: "Rina"}, nil)

		resp, err := deps.service.GetByID(ctx, "c", id.String())

		assert.NoError(t, err)
		assert.Equal(t, "Rina", resp.FullName)
	})
}

func TestEmployeeService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("success writes employee_deleted", func(t *testing.T) {
		deps := setupServiceTest(t)
		expectTx(t, deps.sqlMock, true)
		deps.repo.EXPECT().WithTx(gomock.Any()).Return(deps.repo)
		deps.repo.EXPECT().Delete(ctx, "c", "e").Return(nil)
		deps.outbox.EXPECT().WithTx(gomock.Any()).Return(deps.outbox)
		deps.outbox.EXPECT().Create(gomock.Any(), MatchOutbox("", events.EmployeeDeletedType)).Return(nil)

		assert.NoError(t, deps.service.Delete(ctx, "c", "e"))
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("not found -> rollback", func(t *testing.T) {
		deps := setupServiceTest(t)
		expectTx(t, deps.sqlMock, false)
		deps.repo.EXPECT().WithTx(gomock.Any()).Return(deps.repo)
		deps.repo.EXPECT().Delete(ctx, "c", "e").Return(gorm.ErrRecordNotFound)

		err := deps.service.Delete(ctx, "c", "e")

		assert.ErrorIs(t, err, employeeerrors.ErrEmployeeNotFound)
	})
}
