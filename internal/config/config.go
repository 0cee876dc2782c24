// Package config provides configuration loading for the workflow engine.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the engine process.
type Config struct {
	// Executor
	MaxWorkers int

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"

	// StateStore
	StateStoreBackend string // "memory" or "redis"
	RedisURL          string
	RedisPassword     string
	RedisDB           int
	RedisKeyPrefix    string

	// WorkflowStore (persisted workflow definitions, separate from
	// execution state)
	WorkflowStoreBackend string // "memory" or "redis"

	// API server
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration
	CORSOrigins   []string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCEnabled      bool

	// Tracing
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// CodeNode Kubernetes backend
	K8sNamespace  string
	K8sInCluster  bool
	K8sKubeconfig string

	// Artifact offload
	ArtifactBackend        string // "memory", "s3", "minio"
	ArtifactThresholdBytes int    // node output larger than this is offloaded; 0 disables offload
	ArtifactBucket         string
	ArtifactEndpoint       string
	ArtifactRegion         string
	ArtifactAccessKeyID    string
	ArtifactSecretKey      string
	ArtifactUseSSL         bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		MaxWorkers: getInt("MAX_WORKERS", 4),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StateStoreBackend: getEnv("STATE_STORE_BACKEND", "memory"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getInt("REDIS_DB", 0),
		RedisKeyPrefix:    getEnv("REDIS_KEY_PREFIX", ""),

		WorkflowStoreBackend: getEnv("WORKFLOW_STORE_BACKEND", "memory"),

		Port:          getEnv("PORT", "7070"),
		ReadTimeout:   getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:  getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownGrace: getDuration("SHUTDOWN_GRACE", 10*time.Second),
		CORSOrigins:   getStringSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 100.0),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 200),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCEnabled:      getBool("OIDC_ENABLED", false),

		TracingEnabled:    getBool("TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getFloat("TRACING_SAMPLE_RATE", 1.0),

		K8sNamespace:  getEnv("K8S_NAMESPACE", "dagflow"),
		K8sInCluster:  getBool("K8S_IN_CLUSTER", false),
		K8sKubeconfig: getEnv("KUBECONFIG", ""),

		ArtifactBackend:        getEnv("ARTIFACT_BACKEND", "memory"),
		ArtifactThresholdBytes: getInt("ARTIFACT_THRESHOLD_BYTES", 262144),
		ArtifactBucket:         getEnv("ARTIFACT_BUCKET", ""),
		ArtifactEndpoint:       getEnv("ARTIFACT_ENDPOINT", ""),
		ArtifactRegion:         getEnv("ARTIFACT_REGION", ""),
		ArtifactAccessKeyID:    getEnv("ARTIFACT_ACCESS_KEY_ID", ""),
		ArtifactSecretKey:      getEnv("ARTIFACT_SECRET_KEY", ""),
		ArtifactUseSSL:         getBool("ARTIFACT_USE_SSL", false),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		return strings.Split(val, ",")
	}
	return defaultVal
}
