package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Run modes select which halves of the pipeline a process hosts.
const (
	RunModeAll    = "all"
	RunModeAPI    = "api"
	RunModeWorker = "worker"
)

type Config struct {
	Port            string
	GinMode         string
	RunMode         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Database DatabaseConfig
	Auth     AuthConfig
	Queue    QueueConfig
	Firebase FirebaseConfig

	CORSAllowedOrigins []string

	// UserScoped gates device ownership and notification history as one unit.
	UserScoped  bool
	JobTracking bool
}

type DatabaseConfig struct {
	URL           string
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	RunMigrations bool
}

type AuthConfig struct {
	Enabled     bool
	JWTSecret   string
	TokenExpiry time.Duration
}

type QueueConfig struct {
	ProjectID         string
	CredentialsFile   string
	QueueName         string
	EventsExchange    string
	DeadLetterTopic   string
	Prefetch          int
	PublishRetries    int
	RetryBaseDelay    time.Duration
	BufferedByteLimit int
	AckDeadline       time.Duration
}

type FirebaseConfig struct {
	CredentialsFile string
	ProjectID       string
	SendTimeout     time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "release"),
		RunMode:         strings.ToLower(getEnv("RUN_MODE", RunModeAll)),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Database: DatabaseConfig{
			URL:           getEnv("DB_URL", ""),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", ""),
			Name:          getEnv("DB_NAME", "notification_relay"),
			SSLMode:       getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:  getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			RunMigrations: getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Auth: AuthConfig{
			Enabled:     getEnvAsBool("AUTH_ENABLED", true),
			JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			TokenExpiry: getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
		},
		Queue: QueueConfig{
			ProjectID:         getEnv("GOOGLE_PROJECT_ID", ""),
			CredentialsFile:   getEnv("GOOGLE_CREDENTIALS", ""),
			QueueName:         getEnv("QUEUE_NAME", "notification.fcm"),
			EventsExchange:    getEnv("EVENTS_EXCHANGE", "notification.events"),
			DeadLetterTopic:   getEnv("DEAD_LETTER_TOPIC", ""),
			Prefetch:          getEnvAsInt("QUEUE_PREFETCH", 1),
			PublishRetries:    getEnvAsInt("QUEUE_PUBLISH_RETRIES", 3),
			RetryBaseDelay:    getEnvAsDuration("QUEUE_RETRY_BASE_DELAY", 200*time.Millisecond),
			BufferedByteLimit: getEnvAsInt("QUEUE_PUBLISH_BUFFER_BYTES", 0),
			AckDeadline:       getEnvAsDuration("QUEUE_ACK_DEADLINE", 60*time.Second),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			SendTimeout:     getEnvAsDuration("FCM_SEND_TIMEOUT", 10*time.Second),
		},
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		UserScoped:         getEnvAsBool("USER_SCOPED", true),
		JobTracking:        getEnvAsBool("JOB_TRACKING", true),
	}
}

// Validate reports configuration that would make the process fail later in a less obvious way.
func (c *Config) Validate() error {
	var errs []error

	switch c.RunMode {
	case RunModeAll, RunModeAPI, RunModeWorker:
	default:
		errs = append(errs, fmt.Errorf("unknown RUN_MODE %q", c.RunMode))
	}
	if c.Queue.ProjectID == "" {
		errs = append(errs, errors.New("GOOGLE_PROJECT_ID is required"))
	}
	if c.Queue.QueueName == "" {
		errs = append(errs, errors.New("QUEUE_NAME must not be empty"))
	}
	// The consumer handles one message at a time and Stop waits for exactly that one.
	if c.Queue.Prefetch != 1 {
		errs = append(errs, fmt.Errorf("QUEUE_PREFETCH must be 1, got %d", c.Queue.Prefetch))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when AUTH_ENABLED is set"))
	}
	if c.Firebase.SendTimeout <= 0 {
		errs = append(errs, errors.New("FCM_SEND_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// DSN returns DB_URL when set, otherwise a key/value DSN built from the DB_* parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RunsAPI reports whether the HTTP server should be started.
func (c *Config) RunsAPI() bool {
	return c.RunMode == RunModeAll || c.RunMode == RunModeAPI
}

// RunsWorker reports whether the queue consumer should be started.
func (c *Config) RunsWorker() bool {
	return c.RunMode == RunModeAll || c.RunMode == RunModeWorker
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
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
	return out
}
