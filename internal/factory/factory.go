package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"golang.org/x/sync/errgroup"

	"booking-service/internal/audit"
	"booking-service/internal/bucketing"
	"booking-service/internal/client"
	"booking-service/internal/config"
	"booking-service/internal/encryption"
	"booking-service/internal/events"
	"booking-service/internal/gateway"
	"booking-service/internal/hashing"
	"booking-service/internal/handler"
	"booking-service/internal/models"
	"booking-service/internal/repository"
	"booking-service/internal/repository/memory"
	mongorepo "booking-service/internal/repository/mongo"
	redisrepo "booking-service/internal/repository/redis"
	"booking-service/internal/repository/scylla"
	"booking-service/internal/search"
	"booking-service/internal/seed"
	"booking-service/internal/service"
	"booking-service/internal/tls"
	"booking-service/internal/token"
	"booking-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager
	issuer            *token.Issuer

	store          repository.Store
	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	factory := &Factory{
		config: cfg,
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewTLSManager(cfg)
	}

	if err := factory.initializeClients(); err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeManagers(); err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	factory.serviceFactory = service.NewServiceFactory(factory.dependencies(), cfg, util.Get())
	factory.syncDirectoryIndex()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("memory_store", cfg.UseMemoryStore),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
		util.Bool("gateway_configured", cfg.Razorpay.KeyID != ""),
	)

	return factory, nil
}

// initializeClients connects the document store and the optional
// infrastructure. Outside production a missing optional dependency only
// downgrades to its in-process replacement.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if f.config.UseMemoryStore {
		util.Warn("Using in-memory store - data is lost on restart")
		store := memory.NewStore()
		if f.config.IsDevelopment() {
			if _, err := seed.Directory(ctx, store.Directory(), util.Named("seed")); err != nil {
				return fmt.Errorf("seed memory store: %w", err)
			}
		}
		f.store = store
	} else {
		mc, err := client.NewMongoClient(f.config)
		if err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
		f.store = mongorepo.NewStore(mc)
	}

	var initErrors []error

	// Redis
	if c, err := client.NewRedisClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else if err := c.HealthCheck(ctx); err != nil {
		_ = c.Close()
		initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
	} else {
		f.redisClient = c
		util.Info("Redis client initialized and healthy")
	}

	// ScyllaDB
	if c, err := scylla.NewScyllaClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
	} else if err := c.HealthCheck(ctx); err != nil {
		c.Close()
		initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
	} else {
		f.scyllaClient = c
		util.Info("ScyllaDB client initialized and healthy")
	}

	// Kafka
	if producer, err := client.NewKafkaProducer(f.config); err != nil {
		util.Warn("Kafka producer initialization failed - events go to the log", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	// Elasticsearch
	if c, err := client.NewElasticsearchClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
	} else if err := c.HealthCheck(ctx); err != nil {
		c.Close()
		initErrors = append(initErrors, fmt.Errorf("elasticsearch health check: %w", err))
	} else {
		f.esClient = c
		util.Info("Elasticsearch client initialized and healthy")
	}

	// ClickHouse
	if c, err := client.NewClickHouseClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else if err := c.HealthCheck(ctx); err != nil {
		_ = c.Close()
		initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
	} else {
		f.clickhouseClient = c
		util.Info("ClickHouse client initialized and healthy")
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers builds hashing, encryption, bucketing and token signing.
func (f *Factory) initializeManagers() error {
	hasher, err := hashing.NewHasher(f.config)
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
	f.encryptionManager = encryption.NewEncryptionManager(f.config, kmsClient)
	f.bucketingManager = bucketing.NewBucketingManager(f.config)

	if f.config.JWT.Secret == "" {
		util.Warn("JWT_SECRET not set - using a development secret")
		f.config.JWT.Secret = "development-jwt-secret"
	}
	issuer, err := token.NewIssuer(f.config)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	f.issuer = issuer

	util.Info("Managers initialized successfully",
		util.Int("pepper_count", len(f.config.Hashing.Peppers)),
		util.Int("patient_buckets", f.bucketingManager.PatientBuckets()),
	)
	return nil
}

// dependencies picks the distributed implementation of each collaborator
// when its backend is up and the in-process one otherwise.
func (f *Factory) dependencies() service.Dependencies {
	logger := util.Get()
	deps := service.Dependencies{
		Store:     f.store,
		Hasher:    f.hasher,
		Encryptor: f.encryptionManager,
		Tokens:    f.issuer,
	}

	if f.redisClient != nil {
		locker := redisrepo.NewLocker(f.redisClient)
		deps.Locker = locker
		deps.SlotLocker = locker
		deps.Limiter = redisrepo.NewRateLimitCache(f.redisClient)
	} else {
		striped := bucketing.NewStripedLocker(f.config.Bucketing.LockStripes)
		deps.Locker = striped
		deps.SlotLocker = striped
		deps.Limiter = memory.NewRateCounter()
	}

	if f.scyllaClient != nil {
		deps.Ledger = scylla.NewLedgerRepository(f.scyllaClient, f.bucketingManager)
	} else {
		deps.Ledger = memory.NewLedger()
	}

	if f.kafkaProducer != nil {
		deps.Publisher = events.NewKafkaPublisher(f.kafkaProducer, f.config, util.Named("events"))
	}
	if f.clickhouseClient != nil {
		deps.Recorder = audit.NewClickHouseRecorder(f.clickhouseClient, util.Named("audit"))
	}
	if f.esClient != nil {
		deps.Index = search.NewConsultantIndex(f.esClient, f.config.Elasticsearch.ConsultantsIndex, util.Named("search"))
	}

	if f.config.Razorpay.KeyID != "" && f.config.Razorpay.KeySecret != "" {
		rp, err := gateway.NewRazorpay(f.config, util.Named("razorpay"))
		if err != nil {
			logger.Warn("Razorpay gateway unavailable", util.ErrorField(err))
		} else {
			deps.Gateway = rp
		}
	} else {
		logger.Warn("Razorpay keys not set - payment orders will fail")
	}

	return deps
}

// syncDirectoryIndex mirrors active consultants into the search index.
func (f *Factory) syncDirectoryIndex() {
	if f.esClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	index := search.NewConsultantIndex(f.esClient, f.config.Elasticsearch.ConsultantsIndex, util.Named("search"))
	if err := index.EnsureIndex(ctx); err != nil {
		util.Warn("Failed to ensure consultant index", util.ErrorField(err))
		return
	}
	consultants, err := f.store.Directory().ListConsultants(ctx, models.ConsultantFilter{})
	if err != nil {
		util.Warn("Failed to load consultants for indexing", util.ErrorField(err))
		return
	}
	if err := index.Sync(ctx, consultants); err != nil {
		util.Warn("Failed to sync consultant index", util.ErrorField(err))
		return
	}
	util.Info("Consultant index synced", util.Int("consultants", len(consultants)))
}

// Handlers builds the HTTP handlers over the service factory.
func (f *Factory) Handlers() handler.Handlers {
	sf := f.serviceFactory
	logger := util.Get()
	return handler.Handlers{
		Auth:          handler.NewAuthHandler(sf.AuthService(), sf.ProfileService(), logger.Named("http.auth")),
		Directory:     handler.NewDirectoryHandler(sf.DirectoryService(), sf.BookingService(), logger.Named("http.directory")),
		Appointments:  handler.NewAppointmentHandler(sf.BookingService(), logger.Named("http.appointments")),
		Payments:      handler.NewPaymentHandler(sf.PaymentService(), sf.PaymentMethodService(), logger.Named("http.payments")),
		Goals:         handler.NewGoalHandler(sf.GoalService(), logger.Named("http.goals")),
		Authenticator: sf.AuthService(),
	}
}

// ==============================
// Health Checks
// ==============================

// HealthCheck checks every connected backend concurrently. Backends that
// were never connected are not reported; the service runs without them.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	checks := map[string]func(context.Context) error{
		"store": f.store.HealthCheck,
	}
	if f.redisClient != nil {
		checks["redis"] = f.redisClient.HealthCheck
	}
	if f.scyllaClient != nil {
		checks["scylla"] = f.scyllaClient.HealthCheck
	}
	if f.esClient != nil {
		checks["elasticsearch"] = f.esClient.HealthCheck
	}
	if f.clickhouseClient != nil {
		checks["clickhouse"] = f.clickhouseClient.HealthCheck
	}
	if f.kafkaProducer != nil {
		checks["kafka"] = f.kafkaProducer.HealthCheck
	}

	var mu sync.Mutex
	healthErrors := make(map[string]error)
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			if err := check(gctx); err != nil {
				mu.Lock()
				healthErrors[name] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if f.hasher == nil {
		healthErrors["hasher"] = fmt.Errorf("hasher not initialized")
	}
	if f.encryptionManager == nil {
		healthErrors["encryption"] = fmt.Errorf("encryption manager not initialized")
	}
	return healthErrors
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		// Sinks flush before their clients go away.
		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
			util.Info("Service factory cleaned up")
		}

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

		if f.store != nil {
			if err := f.store.Close(context.Background()); err != nil {
				util.Error("Failed to close store", util.ErrorField(err))
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

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	return f.serviceFactory
}
