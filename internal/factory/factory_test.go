package factory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid-auth-service/internal/config"
	"hybrid-auth-service/internal/handler"
	"hybrid-auth-service/internal/repository"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Database:    config.DatabaseConfig{Driver: "memory"},
		KMS:         config.KMSConfig{LocalMasterKey: "factory-test-key"},
		Hashing: config.HashingConfig{
			Argon2MemoryCost:  4 * 1024,
			Argon2TimeCost:    1,
			Argon2Parallelism: 1,
			Peppers:           map[int]string{1: "pepper"},
			PepperVersion:     1,
		},
		Bucketing: config.BucketingConfig{EventBuckets: 8},
		Auth: config.AuthConfig{
			AdminSessionTTL:         24 * time.Hour,
			StaffSessionTTL:         8 * time.Hour,
			MaxFailedAttempts:       5,
			LockoutDuration:         15 * time.Minute,
			DefaultMaxStaffSessions: 50,
		},
		Audit:     config.AuditConfig{Retention: 24 * time.Hour, WriteTimeout: time.Second},
		Scheduler: config.SchedulerConfig{Enabled: true, Interval: time.Minute, PurgeInterval: time.Hour},
		Logging:   config.LoggingConfig{Level: "error", Format: "json"},
	}
}

func TestNewFactoryWithConfig_MemoryStore(t *testing.T) {
	f, err := NewFactoryWithConfig(memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.NotNil(t, f.Store())
	assert.NotNil(t, f.Recorder())
	assert.Nil(t, f.TLSManager())

	health := f.HealthCheck(context.Background())
	assert.Contains(t, health, "memory")
	assert.NoError(t, health["memory"])
	assert.True(t, f.IsHealthy(context.Background()))

	assert.NotNil(t, f.MaintenanceWorker())
	assert.Same(t, f.ServiceFactory(), f.ServiceFactory())
}

func TestNewFactoryWithConfig_RejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Hashing.PepperVersion = 9

	_, err := NewFactoryWithConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRouterConfig_ServesAdminSessions(t *testing.T) {
	cfg := memoryConfig()
	cfg.BootstrapAdmin = config.BootstrapAdminConfig{
		BusinessID: uuid.NewString(),
		AdminID:    uuid.NewString(),
		Name:       "Owner",
		PIN:        "731902",
	}
	f, err := NewFactoryWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	routerCfg := f.RouterConfig()
	assert.Nil(t, routerCfg.Limiter, "limiter needs redis")
	router := handler.NewRouter(routerCfg)

	post := func(adminID, businessID, pin string) int {
		body := `{"admin_id":"` + adminID + `","business_id":"` + businessID + `","pin":"` + pin + `","required_for":"shift_management"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, post(uuid.NewString(), uuid.NewString(), "731902"))
	assert.Equal(t, http.StatusUnauthorized, post(cfg.BootstrapAdmin.AdminID, cfg.BootstrapAdmin.BusinessID, "000000"))
	assert.Equal(t, http.StatusCreated, post(cfg.BootstrapAdmin.AdminID, cfg.BootstrapAdmin.BusinessID, "731902"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"memory":"ok"`)
}

func TestNewFactoryWithConfig_NoBootstrapAdmin(t *testing.T) {
	f, err := NewFactoryWithConfig(memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	_, err = f.Store().AdminUsers.GetActive(context.Background(), uuid.NewString(), uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMaintenanceWorker_Disabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Scheduler.Enabled = false
	f, err := NewFactoryWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Nil(t, f.MaintenanceWorker())
}
