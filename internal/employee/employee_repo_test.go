package employee_test

import (
	"context"
	"testing"

	"go-ems/internal/employee"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupEmployeeRepo(t *testing.T) (employee.Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{SkipDefaultTransaction: true})
	assert.NoError(t, err)

	return employee.NewRepository(gdb), mock
}

func TestEmployeeRepository_FindAllByCompany(t *testing.T) {
	repo, mock := setupEmployeeRepo(t)
	companyID := uuid.NewString()

	rows := sqlmock.NewRows([]string{"id", "company_id", "employee_number", "full_name"}).
		AddRow(uuid.NewString(), companyID, "EMP-000001", "Rina").
		AddRow(uuid.NewString(), companyID, "EMP-000002", "Budi")
	mock.ExpectQuery(`SELECT \* FROM "employees" WHERE company_id = \$1 AND "employees"."deleted_at" IS NULL ORDER BY employee_number ASC`).
		WithArgs(companyID).
		WillReturnRows(rows)

	got, err := repo.FindAllByCompany(context.Background(), companyID)

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "EMP-000001", got[0].EmployeeNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepository_FindByIDAndCompany_NotFound(t *testing.T) {
	repo, mock := setupEmployeeRepo(t)
	companyID, id := uuid.NewString(), uuid.NewString()

	mock.ExpectQuery(`SELECT \* FROM "employees" WHERE company_id = \$1 AND id = \$2`).
		WithArgs(companyID, id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.FindByIDAndCompany(context.Background(), companyID, id)

	assert.Nil(t, got)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEmployeeRepository_Delete(t *testing.T) {
	companyID, id := uuid.NewString(), uuid.NewString()

	t.Run("soft deletes within company", func(t *testing.T) {
		repo, mock := setupEmployeeRepo(t)
		mock.ExpectExec(`UPDATE "employees" SET "deleted_at"=\$1 WHERE company_id = \$2 AND id = \$3`).
			WithArgs(sqlmock.AnyArg(), companyID, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(context.Background(), companyID, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows is not found", func(t *testing.T) {
		repo, mock := setupEmployeeRepo(t)
		mock.ExpectExec(`UPDATE "employees" SET "deleted_at"=\$1`).
			WithArgs(sqlmock.AnyArg(), companyID, id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), companyID, id)

		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}
