package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scoutpulse/scout-engine/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	DatabaseURL    string
	DBMaxOpenConns int

	CORSAllowedOrigins []string
	InternalAPIToken   string
	LogLevel           logging.Level

	UptraceEnabled bool
	UptraceDSN     string

	ProviderBaseURL               string
	ProviderAPIKey                string
	ProviderTimeout               time.Duration
	ProviderMaxRetries            int
	ProviderPaceInterval          time.Duration
	ProviderPaceBurst             int
	ProviderCircuitFailureCount   int
	ProviderCircuitCooldown       time.Duration
	ProviderCircuitHalfOpenProbes int
	ProviderBackoffBase           time.Duration
	ProviderBackoffCap            time.Duration

	CacheTTLPlayer  time.Duration
	CacheTTLStats   time.Duration
	CacheTTLMarket  time.Duration
	CacheTTLDerived time.Duration

	WebhookWorkers      int
	WebhookMaxAttempts  int
	WebhookDisableAfter int
	WebhookTimeout      time.Duration

	SchedulerTick            time.Duration
	JobDailySyncCron         string
	JobCacheWarmCron         string
	JobTransferCheckInterval time.Duration
	JobMarketTrendsInterval  time.Duration
	JobSweepInterval         time.Duration
	DeliveryRetention        time.Duration
	JobRunRetention          time.Duration
	WarmWorkers              int
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := getEnvAsDuration("APP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := getEnvAsDuration("APP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	dbMaxOpenConns, err := getEnvAsInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_MAX_OPEN_CONNS: %w", err)
	}
	if dbMaxOpenConns < 1 {
		return Config{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 1")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	providerBaseURL := strings.TrimSpace(getEnv("PROVIDER_BASE_URL", "https://api.scoutdata.example.com/v2"))
	providerAPIKey := strings.TrimSpace(getEnv("PROVIDER_API_KEY", ""))
	providerTimeout, err := getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	providerMaxRetries, err := getEnvAsInt("PROVIDER_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse PROVIDER_MAX_RETRIES: %w", err)
	}
	if providerMaxRetries < 0 {
		return Config{}, fmt.Errorf("PROVIDER_MAX_RETRIES must be >= 0")
	}
	providerPaceInterval, err := getEnvAsDuration("PROVIDER_PACE_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	providerPaceBurst, err := getEnvAsInt("PROVIDER_PACE_BURST", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse PROVIDER_PACE_BURST: %w", err)
	}
	if providerPaceBurst < 1 {
		return Config{}, fmt.Errorf("PROVIDER_PACE_BURST must be >= 1")
	}
	providerCircuitFailureCount, err := getEnvAsInt("PROVIDER_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse PROVIDER_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if providerCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("PROVIDER_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	providerCircuitCooldown, err := getEnvAsDuration("PROVIDER_CIRCUIT_COOLDOWN", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	providerCircuitHalfOpenProbes, err := getEnvAsInt("PROVIDER_CIRCUIT_HALF_OPEN_PROBES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse PROVIDER_CIRCUIT_HALF_OPEN_PROBES: %w", err)
	}
	if providerCircuitHalfOpenProbes < 1 {
		return Config{}, fmt.Errorf("PROVIDER_CIRCUIT_HALF_OPEN_PROBES must be >= 1")
	}
	providerBackoffBase, err := getEnvAsDuration("PROVIDER_BACKOFF_BASE", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	providerBackoffCap, err := getEnvAsDuration("PROVIDER_BACKOFF_CAP", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	cacheTTLPlayer, err := getEnvAsDuration("CACHE_TTL_PLAYER", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cacheTTLStats, err := getEnvAsDuration("CACHE_TTL_STATS", time.Hour)
	if err != nil {
		return Config{}, err
	}
	cacheTTLMarket, err := getEnvAsDuration("CACHE_TTL_MARKET", 6*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cacheTTLDerived, err := getEnvAsDuration("CACHE_TTL_DERIVED", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}

	webhookWorkers, err := getEnvAsInt("WEBHOOK_WORKERS", 8)
	if err != nil {
		return Config{}, fmt.Errorf("parse WEBHOOK_WORKERS: %w", err)
	}
	if webhookWorkers < 1 {
		return Config{}, fmt.Errorf("WEBHOOK_WORKERS must be >= 1")
	}
	webhookMaxAttempts, err := getEnvAsInt("WEBHOOK_MAX_ATTEMPTS", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse WEBHOOK_MAX_ATTEMPTS: %w", err)
	}
	if webhookMaxAttempts < 1 {
		return Config{}, fmt.Errorf("WEBHOOK_MAX_ATTEMPTS must be >= 1")
	}
	webhookDisableAfter, err := getEnvAsInt("WEBHOOK_DISABLE_AFTER", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse WEBHOOK_DISABLE_AFTER: %w", err)
	}
	if webhookDisableAfter < 1 {
		return Config{}, fmt.Errorf("WEBHOOK_DISABLE_AFTER must be >= 1")
	}
	webhookTimeout, err := getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	schedulerTick, err := getEnvAsDuration("SCHEDULER_TICK", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	jobTransferCheckInterval, err := getEnvAsDuration("JOB_TRANSFER_CHECK_INTERVAL", 4*time.Hour)
	if err != nil {
		return Config{}, err
	}
	jobMarketTrendsInterval, err := getEnvAsDuration("JOB_MARKET_TRENDS_INTERVAL", 6*time.Hour)
	if err != nil {
		return Config{}, err
	}
	jobSweepInterval, err := getEnvAsDuration("JOB_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	deliveryRetention, err := getEnvAsDuration("WEBHOOK_DELIVERY_RETENTION", 7*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	jobRunRetention, err := getEnvAsDuration("JOB_RUN_RETENTION", 14*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	warmWorkers, err := getEnvAsInt("CACHE_WARM_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_WARM_WORKERS: %w", err)
	}
	if warmWorkers < 1 {
		return Config{}, fmt.Errorf("CACHE_WARM_WORKERS must be >= 1")
	}

	return Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("APP_SERVICE_NAME", "scout-engine-api"),
		ServiceVersion: getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:       getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,

		DatabaseURL:    strings.TrimSpace(getEnv("DATABASE_URL", "")),
		DBMaxOpenConns: dbMaxOpenConns,

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		InternalAPIToken:   strings.TrimSpace(getEnv("INTERNAL_API_TOKEN", "")),
		LogLevel:           parseLogLevel(getEnv("LOG_LEVEL", "info")),

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		ProviderBaseURL:               providerBaseURL,
		ProviderAPIKey:                providerAPIKey,
		ProviderTimeout:               providerTimeout,
		ProviderMaxRetries:            providerMaxRetries,
		ProviderPaceInterval:          providerPaceInterval,
		ProviderPaceBurst:             providerPaceBurst,
		ProviderCircuitFailureCount:   providerCircuitFailureCount,
		ProviderCircuitCooldown:       providerCircuitCooldown,
		ProviderCircuitHalfOpenProbes: providerCircuitHalfOpenProbes,
		ProviderBackoffBase:           providerBackoffBase,
		ProviderBackoffCap:            providerBackoffCap,

		CacheTTLPlayer:  cacheTTLPlayer,
		CacheTTLStats:   cacheTTLStats,
		CacheTTLMarket:  cacheTTLMarket,
		CacheTTLDerived: cacheTTLDerived,

		WebhookWorkers:      webhookWorkers,
		WebhookMaxAttempts:  webhookMaxAttempts,
		WebhookDisableAfter: webhookDisableAfter,
		WebhookTimeout:      webhookTimeout,

		SchedulerTick:            schedulerTick,
		JobDailySyncCron:         strings.TrimSpace(getEnv("JOB_DAILY_SYNC_CRON", "0 3 * * *")),
		JobCacheWarmCron:         strings.TrimSpace(getEnv("JOB_CACHE_WARM_CRON", "0 6 * * *")),
		JobTransferCheckInterval: jobTransferCheckInterval,
		JobMarketTrendsInterval:  jobMarketTrendsInterval,
		JobSweepInterval:         jobSweepInterval,
		DeliveryRetention:        deliveryRetention,
		JobRunRetention:          jobRunRetention,
		WarmWorkers:              warmWorkers,
	}, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
