package rbac

import (
	"errors"
	"sort"
	"sync"

	"go-ems/internal/domain"

	"github.com/casbin/casbin/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=rbac_service.go -destination=mock/rbac_service_mock.go -package=mock
type Service interface {
	LoadCompanyPolicy(companyID string) error
	Enforce(req domain.EnforceRequest) (bool, error)
	ListRoles(companyID string) ([]RoleResponse, error)
	ListPermissions() ([]PermissionResponse, error)
	SeedCompany(companyID string) error
	AssignRole(companyID, employeeID, roleName string) error
}

type service struct {
	repo     Repository
	enforcer *casbin.Enforcer
	mu       sync.Mutex
	logger   *zap.Logger
}

func NewService(repo Repository, enforcer *casbin.Enforcer, logger ...*zap.Logger) Service {
	l := zap.L().Named("rbac.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("rbac.service")
	}
	return &service{
		repo:     repo,
		enforcer: enforcer,
		logger:   l,
	}
}

func (s *service) LoadCompanyPolicy(companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadCompanyPolicyUnlocked(companyID)
}

func (s *service) loadCompanyPolicyUnlocked(companyID string) error {
	s.enforcer.ClearPolicy()

	employeeRoles, err := s.repo.GetEmployeeRoles(companyID)
	if err != nil {
		return err
	}

	for _, er := range employeeRoles {
		if _, err := s.enforcer.AddGroupingPolicy(er.EmployeeID, er.RoleID, companyID); err != nil {
			return err
		}
	}

	rolePerms, err := s.repo.GetRolePermissions(companyID)
	if err != nil {
		return err
	}

	for _, rp := range rolePerms {
		if _, err := s.enforcer.AddPolicy(rp.RoleID, companyID, rp.Resource, rp.Action); err != nil {
			return err
		}
	}

	s.logger.Debug("rbac policy loaded",
		zap.String("company_id", companyID),
		zap.Int("employee_roles", len(employeeRoles)),
		zap.Int("role_permissions", len(rolePerms)),
	)
	return nil
}

func (s *service) Enforce(req domain.EnforceRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadCompanyPolicyUnlocked(req.CompanyID); err != nil {
		s.logger.Error("rbac load policy failed", zap.String("company_id", req.CompanyID), zap.Error(err))
		return false, err
	}

	allowed, err := s.enforcer.Enforce(req.EmployeeID, req.CompanyID, req.Resource, req.Action)
	if err != nil {
		s.logger.Error("rbac enforce failed",
			zap.String("employee_id", req.EmployeeID),
			zap.String("company_id", req.CompanyID),
			zap.String("resource", req.Resource),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		return false, err
	}

	s.logger.Debug("rbac enforce result",
		zap.String("employee_id", req.EmployeeID),
		zap.String("company_id", req.CompanyID),
		zap.String("resource", req.Resource),
		zap.String("action", req.Action),
		zap.Bool("allowed", allowed),
		zap.Strings("roles", s.enforcer.GetRolesForUserInDomain(req.EmployeeID, req.CompanyID)),
	)

	return allowed, nil
}

func (s *service) ListRoles(companyID string) ([]RoleResponse, error) {
	roles, err := s.repo.ListRoles(companyID)
	if err != nil {
		return nil, err
	}
	res := make([]RoleResponse, len(roles))
	for i, r := range roles {
		res[i] = RoleResponse{ID: r.ID.String(), Name: r.Name, Description: r.Description}
	}
	return res, nil
}

func (s *service) ListPermissions() ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions()
	if err != nil {
		return nil, err
	}
	res := make([]PermissionResponse, len(perms))
	for i, p := range perms {
		res[i] = PermissionResponse{Resource: p.Resource, Action: p.Action, Label: p.Label, Category: p.Category}
	}
	return res, nil
}

// SeedCompany makes sure the permission catalog and the default roles exist for a company.
func (s *service) SeedCompany(companyID string) error {
	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return ErrInvalidID
	}

	if err := s.repo.EnsurePermissions(Catalog); err != nil {
		s.logger.Error("seed permissions failed", zap.Error(err))
		return err
	}

	names := make([]string, 0, len(DefaultRoles))
	for name := range DefaultRoles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		role := &Role{CompanyID: companyUUID, Name: name, Description: name + " role"}
		if err := s.repo.EnsureRole(role, DefaultRoles[name]); err != nil {
			s.logger.Error("seed role failed", zap.String("company_id", companyID), zap.String("role", name), zap.Error(err))
			return err
		}
	}

	s.logger.Info("rbac company seeded", zap.String("company_id", companyID), zap.Int("roles", len(names)))
	return nil
}

func (s *service) AssignRole(companyID, employeeID, roleName string) error {
	employeeUUID, err := uuid.Parse(employeeID)
	if err != nil {
		return ErrInvalidID
	}

	role, err := s.repo.GetRoleByName(companyID, roleName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		return err
	}

	if err := s.repo.AssignRole(employeeUUID, role.ID); err != nil {
		s.logger.Error("assign role failed", zap.String("employee_id", employeeID), zap.String("role", roleName), zap.Error(err))
		return err
	}

	s.logger.Info("role assigned",
		zap.String("company_id", companyID),
		zap.String("employee_id", employeeID),
		zap.String("role", roleName),
	)
	return nil
}
