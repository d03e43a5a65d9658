// Package ledgertest provides an in-memory ledger repository for service tests.
package ledgertest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go-ems/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type entryKey struct {
	employeeID string
	period     ledger.Period
}

// MemoryRepository mirrors the SQL semantics of ledger.Repository: Open is an upsert,
// Consume only succeeds while the balance covers the request and Release floors at zero.
type MemoryRepository struct {
	mu        sync.Mutex
	entries   map[entryKey]*ledger.Entry
	employees map[string]string

	// Err, when set, is returned by every call.
	Err error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries:   make(map[entryKey]*ledger.Entry),
		employees: make(map[string]string),
	}
}

// AddEmployee registers employeeID under companyID.
func (m *MemoryRepository) AddEmployee(companyID, employeeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[employeeID] = companyID
}

// Put stores a copy of entry, replacing any row of the same period.
func (m *MemoryRepository) Put(entry ledger.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	m.entries[entryKey{entry.EmployeeID.String(), entry.Period()}] = &entry
}

// Get returns a copy of the stored entry.
func (m *MemoryRepository) Get(employeeID string, period ledger.Period) (ledger.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryKey{employeeID, period}]
	if !ok {
		return ledger.Entry{}, false
	}
	return *e, true
}

func (m *MemoryRepository) WithTx(*sql.Tx) ledger.Repository {
	return m
}

func (m *MemoryRepository) Open(_ context.Context, entry *ledger.Entry) (*ledger.Entry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey{entry.EmployeeID.String(), entry.Period()}
	if existing, ok := m.entries[key]; ok {
		cp := *existing
		return &cp, nil
	}
	stored := *entry
	stored.ID = uuid.New()
	m.entries[key] = &stored
	cp := stored
	return &cp, nil
}

func (m *MemoryRepository) Find(_ context.Context, employeeID string, period ledger.Period) (*ledger.Entry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryKey{employeeID, period}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryRepository) Consume(_ context.Context, employeeID string, period ledger.Period, t ledger.LeaveType, days int) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryKey{employeeID, period}]
	if !ok {
		return false, nil
	}
	used, err := usedField(e, t)
	if err != nil {
		return false, err
	}
	if e.Available(t) < days {
		return false, nil
	}
	*used += days
	return true, nil
}

func (m *MemoryRepository) Release(_ context.Context, employeeID string, period ledger.Period, t ledger.LeaveType, days int) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryKey{employeeID, period}]
	if !ok {
		return false, nil
	}
	used, err := usedField(e, t)
	if err != nil {
		return false, err
	}
	*used = max(*used-days, 0)
	return true, nil
}

func (m *MemoryRepository) SetCarriedForward(_ context.Context, employeeID string, period ledger.Period, carried map[ledger.LeaveType]int) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryKey{employeeID, period}]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for t, days := range carried {
		switch t {
		case ledger.Sick:
			e.SickCarriedForward = days
		case ledger.Casual:
			e.CasualCarriedForward = days
		case ledger.Paid:
			e.PaidCarriedForward = days
		default:
			return fmt.Errorf("unknown leave type %q", t)
		}
	}
	return nil
}

func (m *MemoryRepository) EmployeeBelongsToCompany(_ context.Context, companyID, employeeID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.employees[employeeID] == companyID, nil
}

func usedField(e *ledger.Entry, t ledger.LeaveType) (*int, error) {
	switch t {
	case ledger.Sick:
		return &e.SickUsed, nil
	case ledger.Casual:
		return &e.CasualUsed, nil
	case ledger.Paid:
		return &e.PaidUsed, nil
	}
	return nil, fmt.Errorf("unknown leave type %q", t)
}
