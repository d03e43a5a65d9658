package app

import (
	"go-ems/internal/attendance"
	"go-ems/internal/employee"
	"go-ems/internal/leave"
	"go-ems/internal/ledger"
	"go-ems/internal/messaging/kafka"
	"go-ems/internal/rbac"
	"go-ems/internal/shared/counter"

	"gorm.io/gorm"
)

func entities() []any {
	return []any{
		&employee.Employee{},
		&counter.Counter{},
		&ledger.Entry{},
		&leave.Leave{},
		&attendance.Attendance{},
		&kafka.OutboxRecord{},
		&rbac.Role{},
		&rbac.Permission{},
		&rbac.EmployeeRole{},
		&rbac.RolePermission{},
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(entities()...)
}
