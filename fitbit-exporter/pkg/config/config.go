package config

import (
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/gitbit/gitbit/pkg/config"
)

// Credential backends.
const (
	BackendDotenv = "dotenv"
	BackendRedis  = "redis"
)

// Config holds the runtime configuration for the fitbit-exporter.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	// EnvFile is both the configuration source and, with the dotenv
	// backend, where refreshed tokens are written back.
	EnvFile string

	OutputDir   string
	StartDate   string
	EndDate     string
	Resolution  string
	MaxRetries  int
	HTTPTimeout time.Duration
	APIBaseURL  string

	CredentialBackend string
	RedisAddr         string
	RedisDB           int
	RedisPass         string
	RedisKey          string

	// Optional override of CLIENT_ID/CLIENT_SECRET from AWS Secrets Manager.
	// Secret name: {env}/{profile}/fitbit
	SecretsEnabled bool
	SecretsProfile string
	AWSRegion      string
	CacheTTL       time.Duration

	// Client-side pacing; 0 disables it.
	RateLimitPerHour int
	RateLimitBurst   int

	MetricsFile string
}

// Load loads configuration from environment variables and the env file.
// Variables already set in the environment win over the file.
func Load(envFile string) *Config {
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	return &Config{
		ServiceName:       pkgconfig.GetEnv("SERVICE_NAME", "fitbit-exporter"),
		Env:               pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:          pkgconfig.GetEnv("LOG_LEVEL", "info"),
		EnvFile:           envFile,
		OutputDir:         pkgconfig.GetEnv("OUTPUT_DIR", "data/hr"),
		StartDate:         pkgconfig.GetEnvDate("START_DATE", "2015-07-07"),
		EndDate:           pkgconfig.GetEnvDate("END_DATE", ""),
		Resolution:        pkgconfig.GetEnv("RESOLUTION", "1sec"),
		MaxRetries:        pkgconfig.GetEnvInt("MAX_RETRIES", 5),
		HTTPTimeout:       pkgconfig.GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		APIBaseURL:        pkgconfig.GetEnv("FITBIT_API_URL", "https://api.fitbit.com"),
		CredentialBackend: pkgconfig.GetEnv("CREDENTIAL_BACKEND", BackendDotenv),
		RedisAddr:         pkgconfig.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:           pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:         pkgconfig.GetEnv("REDIS_PASS", ""),
		RedisKey:          pkgconfig.GetEnv("REDIS_KEY", "fitbit-exporter:credentials"),
		SecretsEnabled:    pkgconfig.GetEnvBool("FITBIT_SECRETS_ENABLED", false),
		SecretsProfile:    pkgconfig.GetEnv("FITBIT_SECRETS_PROFILE", "default"),
		AWSRegion:         pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		CacheTTL:          pkgconfig.GetEnvDuration("CACHE_TTL", time.Hour),
		RateLimitPerHour:  pkgconfig.GetEnvInt("RATE_LIMIT_PER_HOUR", 150),
		RateLimitBurst:    pkgconfig.GetEnvInt("RATE_LIMIT_BURST", 150),
		MetricsFile:       pkgconfig.GetEnv("METRICS_FILE", ""),
	}
}
