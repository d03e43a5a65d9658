package rbac

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=rbac_repo.go -destination=mock/rbac_repo_mock.go -package=mock
type Repository interface {
	GetEmployeeRoles(companyID string) ([]EmployeeRoleRow, error)
	GetRolePermissions(companyID string) ([]RolePermissionRow, error)

	// Management
	ListRoles(companyID string) ([]Role, error)
	GetRoleByName(companyID, name string) (*Role, error)
	ListPermissions() ([]Permission, error)
	EnsurePermissions(perms []Permission) error
	EnsureRole(role *Role, permissionKeys []string) error
	AssignRole(employeeID, roleID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetEmployeeRoles(companyID string) ([]EmployeeRoleRow, error) {
	var result []EmployeeRoleRow

	err := r.db.
		Table("employee_roles").
		Select("employee_roles.employee_id, employee_roles.role_id").
		Joins("JOIN roles ON roles.id = employee_roles.role_id").
		Where("roles.company_id = ?", companyID).
		Scan(&result).Error

	return result, err
}

func (r *repository) GetRolePermissions(companyID string) ([]RolePermissionRow, error) {
	var result []RolePermissionRow

	err := r.db.
		Table("role_permissions").
		Select("role_permissions.role_id, permissions.resource, permissions.action").
		Joins("JOIN roles ON roles.id = role_permissions.role_id").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("roles.company_id = ?", companyID).
		Scan(&result).Error

	return result, err
}

func (r *repository) ListRoles(companyID string) ([]Role, error) {
	var result []Role
	err := r.db.Where("company_id = ?", companyID).Order("name").Find(&result).Error
	return result, err
}

func (r *repository) GetRoleByName(companyID, name string) (*Role, error) {
	var result Role
	err := r.db.Where("company_id = ? AND name = ?", companyID, name).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *repository) ListPermissions() ([]Permission, error) {
	var result []Permission
	err := r.db.Order("category, label").Find(&result).Error
	return result, err
}

func (r *repository) EnsurePermissions(perms []Permission) error {
	if len(perms) == 0 {
		return nil
	}
	rows := make([]Permission, len(perms))
	copy(rows, perms)
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource"}, {Name: "action"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// EnsureRole creates the role when missing and grants the listed permissions.
// A nil permissionKeys grants every known permission.
func (r *repository) EnsureRole(role *Role, permissionKeys []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where(Role{CompanyID: role.CompanyID, Name: role.Name}).
			Attrs(Role{Description: role.Description}).
			FirstOrCreate(role).Error
		if err != nil {
			return err
		}

		var perms []Permission
		if err := tx.Find(&perms).Error; err != nil {
			return err
		}

		wanted := make(map[string]bool, len(permissionKeys))
		for _, k := range permissionKeys {
			wanted[k] = true
		}

		grants := make([]RolePermission, 0, len(perms))
		for _, p := range perms {
			if permissionKeys == nil || wanted[permissionKey(p.Resource, p.Action)] {
				grants = append(grants, RolePermission{RoleID: role.ID, PermissionID: p.ID})
			}
		}
		if len(grants) == 0 {
			return nil
		}

		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grants).Error
	})
}

func (r *repository) AssignRole(employeeID, roleID uuid.UUID) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&EmployeeRole{EmployeeID: employeeID, RoleID: roleID}).Error
}
