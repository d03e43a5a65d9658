package leave

import (
	"time"

	"go-ems/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

type Leave struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_company_status"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_employee_dates"`

	LeaveType  ledger.LeaveType `gorm:"type:varchar(10);not null"`
	FromDate   time.Time        `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	ToDate     time.Time        `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	Days       int              `gorm:"type:int;not null"`
	FiscalYear int              `gorm:"not null"`
	Quarter    ledger.Quarter   `gorm:"type:varchar(2);not null"`
	Reason     string           `gorm:"type:text"`

	Status     string     `gorm:"type:varchar(10);not null;default:'Pending';index:idx_leaves_company_status"`
	CreatedBy  uuid.UUID  `gorm:"type:uuid;not null"`
	ApprovedBy *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt *time.Time
	RejectedBy *uuid.UUID `gorm:"type:uuid"`
	RejectedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_leaves_deleted_at"`
}

// Period is the ledger quarter the request is charged against.
func (l Leave) Period() ledger.Period {
	return ledger.Period{FiscalYear: l.FiscalYear, Quarter: l.Quarter}
}

// Dates lists every calendar day from FromDate to ToDate inclusive.
func (l Leave) Dates() []time.Time {
	dates := make([]time.Time, 0, l.Days)
	for d := l.FromDate; !d.After(l.ToDate); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
