package ledger_test

import (
	"testing"

	"go-ems/internal/ledger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEntry_Available(t *testing.T) {
	e := ledger.Entry{
		SickAllocated: 3, SickUsed: 1, SickCarriedForward: 2,
		CasualAllocated: 3, CasualUsed: 3,
		PaidAllocated: 4, PaidCarriedForward: 1,
	}

	assert.Equal(t, 4, e.Available(ledger.Sick))
	assert.Equal(t, 0, e.Available(ledger.Casual))
	assert.Equal(t, 5, e.Available(ledger.Paid))
	assert.Equal(t, 0, e.Available(ledger.LeaveType("Annual")))
	assert.Equal(t, ledger.TypeBalance{Allocated: 3, Used: 1, CarriedForward: 2}, e.Balance(ledger.Sick))
}

func TestAllocationPolicy_NewEntry(t *testing.T) {
	companyID, employeeID := uuid.New(), uuid.New()
	period := ledger.Period{FiscalYear: 2025, Quarter: ledger.Q2}

	e := ledger.DefaultAllocationPolicy().NewEntry(companyID, employeeID, period)

	assert.Equal(t, companyID, e.CompanyID)
	assert.Equal(t, employeeID, e.EmployeeID)
	assert.Equal(t, period, e.Period())
	assert.Equal(t, 3, e.Available(ledger.Sick))
	assert.Equal(t, 3, e.Available(ledger.Casual))
	assert.Equal(t, 4, e.Available(ledger.Paid))
	assert.Equal(t, "leave_ledger_entries", e.TableName())
}
