package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go-ems/internal/events"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafkago.Reader the consumers need.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// LedgerOpener opens the ledger row covering the given day.
type LedgerOpener interface {
	OpenCurrent(ctx context.Context, companyID, employeeID string, on time.Time) error
}

// Both handlers are idempotent, so a failing message is retried in place before the
// consumer moves past it.
const handleAttempts = 5

var handleRetryDelay = time.Second

// RoleAssigner grants the default role to new employees.
type RoleAssigner interface {
	SeedCompany(companyID string) error
	AssignRole(companyID, employeeID, roleName string) error
}

// ConsumeEmployeeLifecycle opens the current quarter ledger for every newly created employee
// and grants it the default role. A message whose handling still fails after handleAttempts
// tries is logged and committed so the partition keeps moving. Undecodable messages are skipped.
func ConsumeEmployeeLifecycle(
	ctx context.Context,
	reader MessageReader,
	ledger LedgerOpener,
	roles RoleAssigner,
	defaultRole string,
	logger *zap.Logger,
	now func() time.Time,
) {
	if now == nil {
		now = time.Now
	}
	log := logger.Named("kafka.consumer.employee_lifecycle")
	log.Info("employee lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("employee lifecycle consumer stopped")
				return
			}
			log.Error("fetch employee lifecycle message failed", zap.Error(err))
			continue
		}

		var event events.EmployeeCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode employee lifecycle event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if event.EventType != events.EmployeeCreatedType {
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		on := now().UTC()
		if hired, err := time.Parse("2006-01-02", event.HireDate); err == nil && hired.After(on) {
			on = hired
		}

		err = retry(ctx, func() error {
			if err := ledger.OpenCurrent(ctx, event.CompanyID, event.EmployeeID, on); err != nil {
				return err
			}
			if roles == nil {
				return nil
			}
			return assignDefaultRole(roles, event.CompanyID, event.EmployeeID, defaultRole)
		}, func(attempt int, err error) {
			log.Warn("handle employee_created failed",
				zap.String("request_id", event.RequestID),
				zap.String("employee_id", event.EmployeeID),
				zap.String("company_id", event.CompanyID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		})
		if err != nil && ctx.Err() != nil {
			log.Info("employee lifecycle consumer stopped")
			return
		}
		handled := err == nil
		if !handled {
			log.Error("giving up on employee_created event",
				zap.String("request_id", event.RequestID),
				zap.String("employee_id", event.EmployeeID),
				zap.String("company_id", event.CompanyID),
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition),
				zap.Error(err),
			)
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit employee lifecycle message failed", zap.Error(err))
			continue
		}

		if !handled {
			continue
		}
		log.Info("ledger opened from employee_created event",
			zap.String("request_id", event.RequestID),
			zap.String("employee_id", event.EmployeeID),
			zap.String("company_id", event.CompanyID),
		)
	}
}

// retry runs fn up to handleAttempts times, waiting handleRetryDelay between tries.
func retry(ctx context.Context, fn func() error, onFailure func(attempt int, err error)) error {
	var err error
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		onFailure(attempt, err)
		if attempt == handleAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(handleRetryDelay):
		}
	}
	return err
}

func assignDefaultRole(roles RoleAssigner, companyID, employeeID, role string) error {
	if err := roles.SeedCompany(companyID); err != nil {
		return err
	}
	return roles.AssignRole(companyID, employeeID, role)
}
