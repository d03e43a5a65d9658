package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"go-ems/internal/shared/connection"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=ledger_repo.go -destination=mock/ledger_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	// Open inserts entry unless its (employee, fiscal year, quarter) row already exists and
	// returns the stored row either way.
	Open(ctx context.Context, entry *Entry) (*Entry, error)
	Find(ctx context.Context, employeeID string, period Period) (*Entry, error)
	// Consume adds days to used only while the balance covers them. It reports false when no
	// row matched.
	Consume(ctx context.Context, employeeID string, period Period, t LeaveType, days int) (bool, error)
	Release(ctx context.Context, employeeID string, period Period, t LeaveType, days int) (bool, error)
	SetCarriedForward(ctx context.Context, employeeID string, period Period, carried map[LeaveType]int) error
	EmployeeBelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	return connection.Scoped(ctx, r.db, r.tx)
}

func (r *repository) Open(ctx context.Context, entry *Entry) (*Entry, error) {
	err := r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "fiscal_year"}, {Name: "quarter"}},
			DoNothing: true,
		}).
		Create(entry).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, entry.EmployeeID.String(), entry.Period())
}

func (r *repository) Find(ctx context.Context, employeeID string, period Period) (*Entry, error) {
	var e Entry
	err := r.conn(ctx).
		Where("employee_id = ?", employeeID).
		Where("fiscal_year = ? AND quarter = ?", period.FiscalYear, period.Quarter).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) Consume(ctx context.Context, employeeID string, period Period, t LeaveType, days int) (bool, error) {
	allocated, used, carried, ok := columns(t)
	if !ok {
		return false, fmt.Errorf("unknown leave type %q", t)
	}

	res := r.conn(ctx).
		Model(&Entry{}).
		Where("employee_id = ?", employeeID).
		Where("fiscal_year = ? AND quarter = ?", period.FiscalYear, period.Quarter).
		Where(fmt.Sprintf("%s + %s - %s >= ?", allocated, carried, used), days).
		Updates(map[string]any{
			used:         gorm.Expr(used+" + ?", days),
			"updated_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) Release(ctx context.Context, employeeID string, period Period, t LeaveType, days int) (bool, error) {
	_, used, _, ok := columns(t)
	if !ok {
		return false, fmt.Errorf("unknown leave type %q", t)
	}

	res := r.conn(ctx).
		Model(&Entry{}).
		Where("employee_id = ?", employeeID).
		Where("fiscal_year = ? AND quarter = ?", period.FiscalYear, period.Quarter).
		Updates(map[string]any{
			used:         gorm.Expr(fmt.Sprintf("GREATEST(%s - ?, 0)", used), days),
			"updated_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) SetCarriedForward(ctx context.Context, employeeID string, period Period, carried map[LeaveType]int) error {
	updates := map[string]any{"updated_at": gorm.Expr("NOW()")}
	for t, days := range carried {
		_, _, column, ok := columns(t)
		if !ok {
			return fmt.Errorf("unknown leave type %q", t)
		}
		updates[column] = days
	}

	res := r.conn(ctx).
		Model(&Entry{}).
		Where("employee_id = ?", employeeID).
		Where("fiscal_year = ? AND quarter = ?", period.FiscalYear, period.Quarter).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) EmployeeBelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error) {
	var count int64
	err := r.conn(ctx).
		Table("employees").
		Where("id = ?", employeeID).
		Where("company_id = ?", companyID).
		Where("deleted_at IS NULL").
		Count(&count).Error
	return count > 0, err
}
