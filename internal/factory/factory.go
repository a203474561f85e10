package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hybrid-auth-service/internal/audit"
	"hybrid-auth-service/internal/bucketing"
	"hybrid-auth-service/internal/client"
	"hybrid-auth-service/internal/config"
	"hybrid-auth-service/internal/encryption"
	"hybrid-auth-service/internal/handler"
	"hybrid-auth-service/internal/hashing"
	"hybrid-auth-service/internal/metrics"
	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
	"hybrid-auth-service/internal/repository/memory"
	"hybrid-auth-service/internal/repository/postgres"
	"hybrid-auth-service/internal/repository/redis"
	"hybrid-auth-service/internal/repository/scylla"
	"hybrid-auth-service/internal/scheduler"
	"hybrid-auth-service/internal/service"
	"hybrid-auth-service/internal/tls"
	"hybrid-auth-service/internal/token"
	"hybrid-auth-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	logger     *zap.Logger
	tlsManager *tls.TLSManager

	// Primary store
	db    *gorm.DB
	store *repository.Store

	// Optional clients, nil when disabled
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager
	metrics           *metrics.Metrics

	// Audit
	recorder          *audit.Recorder
	clickhouseSink    *audit.ClickHouseSink
	elasticsearchSink *audit.ElasticsearchSink
	scyllaSink        *audit.ScyllaSink

	shiftLock      *redis.ShiftLock
	rateLimitCache *redis.RateLimitCache

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()
	return NewFactoryWithConfig(cfg)
}

// NewFactoryWithConfig wires the application from an already loaded config.
func NewFactoryWithConfig(cfg *config.Config) (*Factory, error) {
	logger := util.Init(cfg.Environment, util.LogOptions{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	factory := &Factory{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewTLSManager(cfg.Server, cfg.Environment)
	}

	if err := factory.initializeStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := factory.initializeClients(); err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeManagers(); err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	factory.initializeAudit()
	factory.initializeRedisGuards()

	if err := factory.bootstrapAdmin(); err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("store", cfg.Database.Driver),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
		util.Bool("redis_enabled", factory.redisClient != nil),
	)

	return factory, nil
}

func (f *Factory) initializeStore() error {
	if f.config.Database.Driver == "memory" {
		f.store = memory.NewStore()
		util.Warn("Using in-memory store; state is lost on restart")
		return nil
	}

	db, err := postgres.Open(f.config.Database)
	if err != nil {
		return err
	}
	f.db = db
	f.store = postgres.NewStore(db)
	return nil
}

// initializeClients initializes the enabled external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if f.config.Redis.Enabled {
		if c, err := client.NewRedisClient(f.config); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
		} else {
			f.redisClient = c
			if err := f.redisClient.HealthCheck(ctx); err != nil {
				initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
			} else {
				util.Info("Redis client initialized and healthy")
			}
		}
	}

	// ScyllaDB
	if f.config.Scylla.Enabled {
		if c, err := scylla.NewScyllaClient(f.config); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
		} else {
			f.scyllaClient = c
			if err := f.scyllaClient.HealthCheck(ctx); err != nil {
				initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
			} else {
				util.Info("ScyllaDB client initialized and healthy")
			}
		}
	}

	// Kafka
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			util.Info("Kafka producer initialized")
		}
	}

	// Elasticsearch
	if f.config.Elasticsearch.Enabled {
		if c, err := client.NewElasticsearchClient(f.config); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
		} else {
			f.esClient = c
			if err := f.esClient.HealthCheck(ctx); err != nil {
				initErrors = append(initErrors, fmt.Errorf("elasticsearch health check: %w", err))
			} else {
				util.Info("Elasticsearch client initialized and healthy")
			}
		}
	}

	// ClickHouse
	if f.config.Clickhouse.Enabled {
		if c, err := client.NewClickHouseClient(f.config); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
		} else {
			f.clickhouseClient = c
			if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
				initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
			} else {
				util.Info("ClickHouse client initialized and healthy")
			}
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %w", errors.Join(initErrors...))
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes hashing, encryption, and bucketing managers
func (f *Factory) initializeManagers() error {
	hasher, err := hashing.NewHasher(f.config.Hashing)
	if err != nil {
		return fmt.Errorf("hasher: %w", err)
	}
	f.hasher = hasher

	var kmsClient encryption.KMSAPI
	if f.config.KMS.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		kmsClient = kms.NewFromConfig(awsCfg)
	}

	em, err := encryption.NewEncryptionManager(f.config.KMS, kmsClient)
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}
	f.encryptionManager = em
	f.bucketingManager = bucketing.NewBucketingManager(f.config.Bucketing.EventBuckets)

	util.Info("Managers initialized successfully",
		util.Int("pepper_version", f.config.Hashing.PepperVersion),
		util.Bool("kms_enabled", f.config.KMS.Enabled),
		util.Int("event_buckets", f.config.Bucketing.EventBuckets),
	)
	return nil
}

// initializeAudit builds the recorder with one sink per enabled mirror.
// Schema setup failures disable the mirror instead of aborting startup.
func (f *Factory) initializeAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var sinks []audit.Sink

	if f.kafkaProducer != nil {
		sinks = append(sinks, audit.NewKafkaSink(f.kafkaProducer, f.config.Kafka.AuditTopic))
	}

	if f.clickhouseClient != nil {
		sink := audit.NewClickHouseSink(f.clickhouseClient)
		if err := sink.EnsureSchema(ctx, f.config.Audit.Retention); err != nil {
			util.Warn("ClickHouse audit schema unavailable - mirror disabled", util.ErrorField(err))
		} else {
			f.clickhouseSink = sink
			sinks = append(sinks, sink)
		}
	}

	if f.esClient != nil {
		sink := audit.NewElasticsearchSink(f.esClient, f.config.Elasticsearch.AuditIndex)
		if err := sink.EnsureIndex(ctx); err != nil {
			util.Warn("Elasticsearch audit index unavailable - mirror disabled", util.ErrorField(err))
		} else {
			f.elasticsearchSink = sink
			sinks = append(sinks, sink)
		}
	}

	if f.scyllaClient != nil {
		repo := scylla.NewSecurityEventRepository(f.scyllaClient, f.bucketingManager)
		f.scyllaSink = audit.NewScyllaSink(repo)
		sinks = append(sinks, f.scyllaSink)
	}

	f.recorder = audit.NewRecorder(f.store.AuditLogs, f.logger.Named("audit"),
		audit.WithSinks(sinks...),
		audit.WithWriteTimeout(f.config.Audit.WriteTimeout),
	)

	util.Info("Audit recorder initialized", util.Int("sinks", len(sinks)))
}

func (f *Factory) initializeRedisGuards() {
	if f.redisClient == nil {
		return
	}
	f.shiftLock = redis.NewShiftLock(f.redisClient, f.config.Auth.ShiftLockTTL)
	f.rateLimitCache = redis.NewRateLimitCache(f.redisClient,
		f.config.Auth.StaffAuthRateLimit, f.config.Auth.StaffAuthRateWindow)
}

// bootstrapAdmin makes sure the configured owner can sign in, so a fresh
// deployment has someone able to open the first admin session.
func (f *Factory) bootstrapAdmin() error {
	boot := f.config.BootstrapAdmin
	if boot.AdminID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, created, err := f.ServiceFactory().AdminService().EnsureAdmin(ctx, service.CreateAdminRequest{
		ID:         boot.AdminID,
		BusinessID: boot.BusinessID,
		Name:       boot.Name,
		PIN:        boot.PIN,
		Role:       string(models.AdminRoleOwner),
	})
	if err != nil {
		return err
	}
	if created {
		util.Info("Bootstrap admin created",
			util.String("business_id", admin.BusinessID),
			util.String("admin_id", admin.ID))
	}
	return nil
}

// ==============================
// Service Factory
// ==============================
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		opts := []service.ManagerOption{
			service.WithOutcomeObserver(f.metrics),
		}
		if f.shiftLock != nil {
			opts = append(opts, service.WithShiftLocker(f.shiftLock))
		}
		f.serviceFactory = service.NewServiceFactory(
			f.store,
			token.NewGenerator(nil),
			f.hasher,
			f.encryptionManager,
			f.recorder,
			f.config.Auth,
			f.logger.Named("service"),
			opts...,
		)
	}
	return f.serviceFactory
}

// RouterConfig assembles the HTTP layer over the wired services.
func (f *Factory) RouterConfig() handler.RouterConfig {
	services := f.ServiceFactory()
	manager := services.AuthManager()
	logger := f.logger.Named("http")

	var auditOpts []handler.AuditHandlerOption
	if f.clickhouseSink != nil {
		auditOpts = append(auditOpts, handler.WithSeveritySummary(f.clickhouseSink))
	}
	if f.elasticsearchSink != nil {
		auditOpts = append(auditOpts, handler.WithAuditSearch(f.elasticsearchSink))
	}
	if f.scyllaSink != nil {
		auditOpts = append(auditOpts, handler.WithSecurityTimeline(f.scyllaSink))
	}

	cfg := handler.RouterConfig{
		Auth:           handler.NewAuthHandler(manager, services.StaffService(), services.AdminService(), logger),
		Audit:          handler.NewAuditHandler(f.recorder, logger, auditOpts...),
		Manager:        manager,
		Metrics:        f.metrics,
		Health:         f.HealthCheck,
		RequireHTTPS:   f.config.IsProduction() && f.config.Server.EnableTLS,
		AllowedOrigins: f.config.Server.AllowedOrigins,
		Logger:         logger,
	}
	if f.rateLimitCache != nil {
		cfg.Limiter = f.rateLimitCache
	}
	return cfg
}

// MaintenanceWorker returns the background worker, or nil when disabled.
func (f *Factory) MaintenanceWorker() *scheduler.Worker {
	if !f.config.Scheduler.Enabled {
		return nil
	}
	return scheduler.NewWorker(
		f.ServiceFactory().AuthManager(),
		f.recorder,
		f.config,
		f.logger.Named("scheduler"),
		scheduler.WithObserver(f.metrics),
	)
}

// ==============================
// Health Checks
// ==============================

// HealthCheck reports every configured dependency; a nil error means healthy.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error)

	if f.db != nil {
		results["postgres"] = postgres.HealthCheck(ctx, f.db)
	} else if f.store != nil {
		results["memory"] = nil
	}

	if f.redisClient != nil {
		results["redis"] = f.redisClient.HealthCheck(ctx)
	}
	if f.scyllaClient != nil {
		results["scylla"] = f.scyllaClient.HealthCheck(ctx)
	}
	if f.esClient != nil {
		results["elasticsearch"] = f.esClient.HealthCheck(ctx)
	}
	if f.clickhouseClient != nil {
		results["clickhouse"] = f.clickhouseClient.HealthCheck(ctx)
	}
	if f.kafkaProducer != nil {
		results["kafka"] = f.kafkaProducer.HealthCheck(ctx)
	}

	if f.hasher == nil {
		results["hasher"] = errors.New("hasher not initialized")
	}
	if f.encryptionManager == nil {
		results["encryption"] = errors.New("encryption manager not initialized")
	}

	return results
}

// IsHealthy ignores Kafka, whose sink only mirrors the audit log.
func (f *Factory) IsHealthy(ctx context.Context) bool {
	for name, err := range f.HealthCheck(ctx) {
		if name != "kafka" && err != nil {
			return false
		}
	}
	return true
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		if f.db != nil {
			if err := postgres.Close(f.db); err != nil {
				util.Error("Failed to close database", util.ErrorField(err))
			} else {
				util.Info("Database connection closed")
			}
		}

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
			util.Info("Encryption manager cache cleared")
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Logger() *zap.Logger {
	return f.logger
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) Store() *repository.Store {
	return f.store
}

func (f *Factory) Metrics() *metrics.Metrics {
	return f.metrics
}

func (f *Factory) Recorder() *audit.Recorder {
	return f.recorder
}
