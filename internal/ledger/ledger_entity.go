package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Entry is the ledger row of one employee for one fiscal quarter. Rows are opened lazily and
// never deleted.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;index:idx_leave_ledger_company"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_leave_ledger_period"`
	FiscalYear int       `gorm:"not null;uniqueIndex:uq_leave_ledger_period"`
	Quarter    Quarter   `gorm:"type:varchar(2);not null;uniqueIndex:uq_leave_ledger_period"`

	SickAllocated      int `gorm:"not null;default:0"`
	SickUsed           int `gorm:"not null;default:0"`
	SickCarriedForward int `gorm:"not null;default:0"`

	CasualAllocated      int `gorm:"not null;default:0"`
	CasualUsed           int `gorm:"not null;default:0"`
	CasualCarriedForward int `gorm:"not null;default:0"`

	PaidAllocated      int `gorm:"not null;default:0"`
	PaidUsed           int `gorm:"not null;default:0"`
	PaidCarriedForward int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "leave_ledger_entries"
}

func (e Entry) Period() Period {
	return Period{FiscalYear: e.FiscalYear, Quarter: e.Quarter}
}

type TypeBalance struct {
	Allocated      int
	Used           int
	CarriedForward int
}

func (b TypeBalance) Available() int {
	return b.Allocated + b.CarriedForward - b.Used
}

func (e Entry) Balance(t LeaveType) TypeBalance {
	switch t {
	case Sick:
		return TypeBalance{Allocated: e.SickAllocated, Used: e.SickUsed, CarriedForward: e.SickCarriedForward}
	case Casual:
		return TypeBalance{Allocated: e.CasualAllocated, Used: e.CasualUsed, CarriedForward: e.CasualCarriedForward}
	case Paid:
		return TypeBalance{Allocated: e.PaidAllocated, Used: e.PaidUsed, CarriedForward: e.PaidCarriedForward}
	}
	return TypeBalance{}
}

func (e Entry) Available(t LeaveType) int {
	return e.Balance(t).Available()
}

// AllocationPolicy is the number of days granted per type when a period is opened.
type AllocationPolicy struct {
	Sick   int
	Casual int
	Paid   int
}

func DefaultAllocationPolicy() AllocationPolicy {
	return AllocationPolicy{Sick: 3, Casual: 3, Paid: 4}
}

// NewEntry builds an unsaved entry for the period with the policy's allocations.
func (p AllocationPolicy) NewEntry(companyID, employeeID uuid.UUID, period Period) *Entry {
	return &Entry{
		CompanyID:       companyID,
		EmployeeID:      employeeID,
		FiscalYear:      period.FiscalYear,
		Quarter:         period.Quarter,
		SickAllocated:   p.Sick,
		CasualAllocated: p.Casual,
		PaidAllocated:   p.Paid,
	}
}

// columns returns the allocated, used and carried-forward column names of t.
func columns(t LeaveType) (allocated, used, carried string, ok bool) {
	switch t {
	case Sick:
		return "sick_allocated", "sick_used", "sick_carried_forward", true
	case Casual:
		return "casual_allocated", "casual_used", "casual_carried_forward", true
	case Paid:
		return "paid_allocated", "paid_used", "paid_carried_forward", true
	}
	return "", "", "", false
}
