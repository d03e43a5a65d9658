package events

import "time"

const (
	LeaveLifecycleTopic = "hr.leave.lifecycle.v1"

	LeaveRequestedType      = "leave_requested"
	LeaveUpdatedType        = "leave_updated"
	LeaveApprovedType       = "leave_approved"
	LeaveRejectedType       = "leave_rejected"
	LeaveRevokedType        = "leave_revoked"
	LeaveDeletedType        = "leave_deleted"
	LeaveCarriedForwardType = "leave_carried_forward"
)

// LeaveStatusChangedEvent is emitted for every leave request transition.
// Days is the amount charged to (or released from) the ledger, zero when untouched.
type LeaveStatusChangedEvent struct {
	EventType  string    `json:"event_type"`
	RequestID  string    `json:"request_id,omitempty"`
	LeaveID    string    `json:"leave_id"`
	EmployeeID string    `json:"employee_id"`
	CompanyID  string    `json:"company_id"`
	LeaveType  string    `json:"leave_type"`
	FiscalYear int       `json:"fiscal_year"`
	Quarter    string    `json:"quarter"`
	Days       int       `json:"days"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type LeaveCarriedForwardEvent struct {
	EventType      string         `json:"event_type"`
	RequestID      string         `json:"request_id,omitempty"`
	EmployeeID     string         `json:"employee_id"`
	CompanyID      string         `json:"company_id"`
	FromFiscalYear int            `json:"from_fiscal_year"`
	FromQuarter    string         `json:"from_quarter"`
	ToFiscalYear   int            `json:"to_fiscal_year"`
	ToQuarter      string         `json:"to_quarter"`
	CarriedForward map[string]int `json:"carried_forward"`
	ActorID        string         `json:"actor_id"`
	OccurredAt     time.Time      `json:"occurred_at"`
}
