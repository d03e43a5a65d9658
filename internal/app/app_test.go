package app

import (
	"testing"

	"go-ems/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestRegisterModules_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	cfg, err := config.Load()
	require.NoError(t, err)

	router := gin.New()
	modules, err := registerModules(router, Infra{
		Config: cfg,
		DB:     db,
		GormDB: gdb,
		Redis:  redis.NewClient(&redis.Options{Addr: "localhost:0"}),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	assert.NotNil(t, modules.Leave)

	registered := map[string]bool{}
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"POST /api/v1/leaves",
		"GET /api/v1/leaves",
		"GET /api/v1/leaves/:id",
		"PUT /api/v1/leaves/:id",
		"DELETE /api/v1/leaves/:id",
		"GET /api/v1/leaves/:id/quarterly-balance",
		"POST /api/v1/leaves/test-carry-forward",
		"POST /api/v1/attendances/clock-in",
		"POST /api/v1/employees",
		"POST /api/v1/rbac/enforce",
	} {
		assert.True(t, registered[want], want)
	}
}

func TestEntitiesCoverEveryTable(t *testing.T) {
	assert.Len(t, entities(), 10)
}

func TestAllocationPolicyFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Leave.SickPerQuarter, cfg.Leave.CasualPerQuarter, cfg.Leave.PaidPerQuarter = 1, 2, 3

	p := allocationPolicy(cfg)

	assert.Equal(t, 1, p.Sick)
	assert.Equal(t, 2, p.Casual)
	assert.Equal(t, 3, p.Paid)
}
