package app

import (
	"database/sql"

	"go-ems/internal/attendance"
	"go-ems/internal/config"
	"go-ems/internal/employee"
	"go-ems/internal/leave"
	"go-ems/internal/ledger"
	"go-ems/internal/messaging/kafka"
	"go-ems/internal/middleware"
	"go-ems/internal/rbac"
	"go-ems/internal/rbac/infra"
	"go-ems/internal/shared/counter"
	"go-ems/internal/shared/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Infra is the shared infrastructure every module is built from.
type Infra struct {
	Config  *config.Config
	DB      *sql.DB
	GormDB  *gorm.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type Modules struct {
	RBAC       rbac.Service
	Ledger     ledger.Service
	Leave      leave.Service
	Attendance attendance.Service
	Employee   employee.Service
}

func allocationPolicy(cfg *config.Config) ledger.AllocationPolicy {
	return ledger.AllocationPolicy{
		Sick:   cfg.Leave.SickPerQuarter,
		Casual: cfg.Leave.CasualPerQuarter,
		Paid:   cfg.Leave.PaidPerQuarter,
	}
}

func buildModules(in Infra) (*Modules, error) {
	// --- Repositories ---
	rbacRepo := rbac.NewRepository(in.GormDB)
	attendanceRepo := attendance.NewRepository(in.GormDB)
	counterRepo := counter.NewRepository(in.GormDB)
	employeeRepo := employee.NewRepository(in.GormDB)
	ledgerRepo := ledger.NewRepository(in.GormDB)
	leaveRepo := leave.NewRepository(in.GormDB)
	outboxRepo := kafka.NewOutboxRepository(in.DB)

	// --- RBAC Core ---
	enforcer, err := infra.NewEnforcer(in.Config.RBAC.ModelPath)
	if err != nil {
		return nil, err
	}

	policy := allocationPolicy(in.Config)

	// --- Services ---
	return &Modules{
		RBAC:       rbac.NewService(rbacRepo, enforcer, in.Logger),
		Ledger:     ledger.NewService(in.DB, ledgerRepo, outboxRepo, in.Redis, policy, in.Metrics, in.Logger),
		Attendance: attendance.NewService(in.DB, attendanceRepo, in.Logger),
		Employee:   employee.NewServiceWithOutbox(in.DB, employeeRepo, counterRepo, outboxRepo, in.Logger),
		Leave: leave.NewService(leave.Dependencies{
			DB:         in.DB,
			Repo:       leaveRepo,
			Ledger:     ledgerRepo,
			Attendance: attendanceRepo,
			Outbox:     outboxRepo,
			Redis:      in.Redis,
			Policy:     policy,
			Metrics:    in.Metrics,
		}, in.Logger),
	}, nil
}

func registerModules(router *gin.Engine, in Infra) (*Modules, error) {
	modules, err := buildModules(in)
	if err != nil {
		return nil, err
	}

	// --- Handlers ---
	attendanceHandler := attendance.NewHandler(modules.Attendance, in.Logger)
	employeeHandler := employee.NewHandler(modules.Employee, in.Logger)
	ledgerHandler := ledger.NewHandler(modules.Ledger, in.Logger)
	leaveHandler := leave.NewHandler(modules.Leave, in.Logger)
	rbacHandler := rbac.NewHandler(modules.RBAC, in.Logger)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	api.Use(
		middleware.ContextLogger(in.Logger),
		middleware.Metrics(in.Metrics),
		middleware.RateLimitByIP(rate.Limit(in.Config.HTTP.RateLimit), in.Config.HTTP.RateBurst),
		middleware.AuthMiddleware(in.Config.JWT.Secret),
		middleware.Idempotency(in.Redis, in.Config.HTTP.IdempotencyTTL, in.Logger),
	)
	{
		attendance.RegisterRoutes(api, attendanceHandler, modules.RBAC)
		employee.RegisterRoutes(api, employeeHandler, modules.RBAC)
		ledger.RegisterRoutes(api, ledgerHandler, modules.RBAC)
		leave.RegisterRoutes(api, leaveHandler, modules.RBAC)
		rbac.RegisterRoutes(api, rbacHandler, modules.RBAC)
	}

	return modules, nil
}
