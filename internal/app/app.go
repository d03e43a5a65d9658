package app

import (
	"net/http"

	"go-ems/internal/config"
	"go-ems/internal/shared/connection"
	"go-ems/internal/shared/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func postgresOptions(cfg *config.Config) connection.PostgresOptions {
	return connection.PostgresOptions{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Name:     cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	}
}

// BuildApp connects infrastructure, migrates the schema and registers every route on router.
// The returned func releases the connections.
func BuildApp(cfg *config.Config, router *gin.Engine, logger *zap.Logger) (func(), error) {
	gormDB, err := connection.ConnectGORMWithRetry(postgresOptions(cfg), cfg.DB.MaxRetries)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")

	if err := migrate(gormDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	redisClient, err := connection.ConnectRedisWithRetry(cfg.Redis.Addr, cfg.Redis.MaxRetries)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	logger.Info("redis connection established")

	m := metrics.New()
	router.GET("/healthz", health(gormDB))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	modules, err := registerModules(router, Infra{
		Config:  cfg,
		DB:      sqlDB,
		GormDB:  gormDB,
		Redis:   redisClient,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		redisClient.Close()
		sqlDB.Close()
		return nil, err
	}

	if cfg.RBAC.BootstrapCompany != "" {
		if err := bootstrapAdmin(modules, cfg); err != nil {
			logger.Error("rbac bootstrap failed", zap.Error(err))
		}
	}

	return func() {
		_ = redisClient.Close()
		_ = sqlDB.Close()
	}, nil
}

func bootstrapAdmin(modules *Modules, cfg *config.Config) error {
	if err := modules.RBAC.SeedCompany(cfg.RBAC.BootstrapCompany); err != nil {
		return err
	}
	return modules.RBAC.AssignRole(cfg.RBAC.BootstrapCompany, cfg.RBAC.BootstrapAdmin, "Admin")
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
