package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"go-ems/internal/bootstrap"
	"go-ems/internal/events"

	"go.uber.org/zap"
)

// ConsumeLeaveLifecycle mirrors leave and carry-forward events into the audit log.
func ConsumeLeaveLifecycle(
	ctx context.Context,
	reader MessageReader,
	audit bootstrap.AuditLogger,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.leave_audit")
	log.Info("leave audit consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("leave audit consumer stopped")
				return
			}
			log.Error("fetch leave lifecycle message failed", zap.Error(err))
			continue
		}

		entry, err := leaveAuditEntry(msg.Value)
		if err != nil {
			log.Error("decode leave lifecycle event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		audit.Log(ctx, entry)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit leave lifecycle message failed", zap.Error(err))
		}
	}
}

func leaveAuditEntry(value []byte) (bootstrap.AuditLog, error) {
	var head struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return bootstrap.AuditLog{}, err
	}

	if head.EventType == events.LeaveCarriedForwardType {
		var event events.LeaveCarriedForwardEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return bootstrap.AuditLog{}, err
		}
		return bootstrap.AuditLog{
			Action:  "LEAVE_CARRIED_FORWARD",
			Message: "Leave balance carried forward",
			Meta: map[string]any{
				"request_id":      event.RequestID,
				"company_id":      event.CompanyID,
				"employee_id":     event.EmployeeID,
				"from":            periodLabel(event.FromFiscalYear, event.FromQuarter),
				"to":              periodLabel(event.ToFiscalYear, event.ToQuarter),
				"carried_forward": event.CarriedForward,
				"actor_id":        event.ActorID,
			},
		}, nil
	}

	var event events.LeaveStatusChangedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return bootstrap.AuditLog{}, err
	}
	return bootstrap.AuditLog{
		Action:  "LEAVE_STATUS_CHANGED",
		Message: event.EventType,
		Meta: map[string]any{
			"request_id":  event.RequestID,
			"company_id":  event.CompanyID,
			"employee_id": event.EmployeeID,
			"leave_id":    event.LeaveID,
			"leave_type":  event.LeaveType,
			"period":      periodLabel(event.FiscalYear, event.Quarter),
			"days":        event.Days,
			"from_status": event.FromStatus,
			"to_status":   event.ToStatus,
			"actor_id":    event.ActorID,
		},
	}, nil
}

func periodLabel(fiscalYear int, quarter string) string {
	return fmt.Sprintf("FY%d-%s", fiscalYear, quarter)
}
