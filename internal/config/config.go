package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment    string
	UseMemoryStore bool

	Server        ServerConfig
	Mongo         MongoConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	KMS           KMSConfig
	Hashing       HashingConfig
	Bucketing     BucketingConfig
	OTP           OTPConfig
	JWT           JWTConfig
	Razorpay      RazorpayConfig
	Booking       BookingConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	Email        string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AllowOrigins []string
}

type MongoConfig struct {
	URI             string
	Database        string
	UseTransactions bool
	Timeout         time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers          []string
	OTPTopic         string
	PaymentTopic     string
	AppointmentTopic string
	PublishTimeout   time.Duration
}

type ElasticsearchConfig struct {
	URL              string
	Username         string
	Password         string
	ConsultantsIndex string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

// HashingConfig carries Argon2 costs and the OTP pepper list.
// Peppers are "version:value" pairs; the highest version hashes new codes.
type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
	Peppers           []string
}

type BucketingConfig struct {
	PatientBuckets int
	LockStripes    int
}

type OTPConfig struct {
	TTL              time.Duration
	MaxAttempts      int
	IssueLimit       int
	IssueLimitWindow time.Duration
}

type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
	Issuer    string
}

type RazorpayConfig struct {
	KeyID           string
	KeySecret       string
	Currency        string
	AllowTestBypass bool
}

type BookingConfig struct {
	DefaultFee  float64
	SlotLockTTL time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

var (
	cfg      *Config
	loadOnce sync.Once
)

// LoadConfig reads .env (if present) and the process environment once.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		// Missing .env is normal outside local development.
		_ = godotenv.Load()
		cfg = fromEnv()
	})
	return cfg
}

// Get returns the loaded configuration, loading it on first use.
func Get() *Config {
	if cfg == nil {
		return LoadConfig()
	}
	return cfg
}

func fromEnv() *Config {
	return &Config{
		Environment:    getEnv("NODE_ENV", getEnv("ENVIRONMENT", "development")),
		UseMemoryStore: getEnvBool("USE_MEMORY_STORE", false),
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 4000),
			TLSPort:      getEnvInt("TLS_PORT", 4443),
			EnableTLS:    getEnvBool("ENABLE_TLS", false),
			AutoCert:     getEnvBool("AUTO_CERT", false),
			Domain:       getEnv("DOMAIN", "localhost"),
			Email:        getEnv("ACME_EMAIL", ""),
			CertFile:     getEnv("TLS_CERT_FILE", ""),
			KeyFile:      getEnv("TLS_KEY_FILE", ""),
			AutoCertDir:  getEnv("AUTO_CERT_DIR", "./certs"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Mongo: MongoConfig{
			URI:             getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:        getEnv("MONGODB_DATABASE", "physiocare"),
			UseTransactions: getEnvBool("MONGODB_USE_TRANSACTIONS", false),
			Timeout:         getEnvDuration("MONGODB_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    getEnvSlice("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "booking"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers:          getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			OTPTopic:         getEnv("KAFKA_OTP_TOPIC", "notifications.otp"),
			PaymentTopic:     getEnv("KAFKA_PAYMENT_TOPIC", "payments.events"),
			AppointmentTopic: getEnv("KAFKA_APPOINTMENT_TOPIC", "appointments.events"),
			PublishTimeout:   getEnvDuration("KAFKA_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:              getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:         getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:         getEnv("ELASTICSEARCH_PASSWORD", ""),
			ConsultantsIndex: getEnv("ELASTICSEARCH_CONSULTANTS_INDEX", "consultants"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      getEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Database: getEnv("CLICKHOUSE_DATABASE", "audit"),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("AWS_REGION", "ap-south-1"),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_COST", 64*1024),
			Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 1),
			Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 2),
			Peppers:           getEnvSlice("OTP_PEPPERS", []string{"1:development-pepper"}),
		},
		Bucketing: BucketingConfig{
			PatientBuckets: getEnvInt("PATIENT_BUCKETS", 256),
			LockStripes:    getEnvInt("LOCK_STRIPES", 512),
		},
		OTP: OTPConfig{
			TTL:              time.Duration(getEnvInt("OTP_EXPIRY_MINUTES", 5)) * time.Minute,
			MaxAttempts:      getEnvInt("OTP_MAX_ATTEMPTS", 5),
			IssueLimit:       getEnvInt("OTP_ISSUE_LIMIT", 5),
			IssueLimitWindow: getEnvDuration("OTP_ISSUE_WINDOW", 15*time.Minute),
		},
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", ""),
			ExpiresIn: getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
			Issuer:    getEnv("JWT_ISSUER", "booking-service"),
		},
		Razorpay: RazorpayConfig{
			KeyID:           getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:       getEnv("RAZORPAY_KEY_SECRET", ""),
			Currency:        getEnv("RAZORPAY_CURRENCY", "INR"),
			AllowTestBypass: getEnvBool("RAZORPAY_ALLOW_TEST_BYPASS", false),
		},
		Booking: BookingConfig{
			DefaultFee:  getEnvFloat("DEFAULT_BOOKING_FEE", 100),
			SlotLockTTL: getEnvDuration("SLOT_LOCK_TTL", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// TestBypassEnabled reports whether synthetic pay_test identifiers may skip
// signature verification. Never true in production.
func (c *Config) TestBypassEnabled() bool {
	return c.Razorpay.AllowTestBypass && !c.IsProduction()
}

// Validate rejects settings that are unsafe for the current environment.
func (c *Config) Validate() error {
	var errs []error
	if c.OTP.MaxAttempts <= 0 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be positive"))
	}
	if c.OTP.TTL <= 0 {
		errs = append(errs, errors.New("OTP_EXPIRY_MINUTES must be positive"))
	}
	if len(c.Hashing.Peppers) == 0 {
		errs = append(errs, errors.New("OTP_PEPPERS must not be empty"))
	}
	if c.IsProduction() {
		if c.JWT.Secret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
			errs = append(errs, errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required in production"))
		}
		if c.Razorpay.AllowTestBypass {
			errs = append(errs, errors.New("RAZORPAY_ALLOW_TEST_BYPASS must be off in production"))
		}
		if c.UseMemoryStore {
			errs = append(errs, errors.New("USE_MEMORY_STORE is not allowed in production"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") and the "7d" day suffix.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if strings.HasSuffix(value, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(value, "d")); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
