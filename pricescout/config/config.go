package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration

	// Browser automation backend (browserless-style CDP endpoint)
	BrowserEndpoint   string
	BrowserAPIKey     string
	BrowserConnectRPS float64

	// Site adapter
	SiteID   string
	SitesDir string

	// Pipeline tuning
	ChunkSize       int
	CapMultiplier   float64
	PricePercentage float64
	CandidateLimit  int
	StepTimeout     time.Duration
	SecondsPerBatch time.Duration

	// Run history (optional, enabled when DBHost is set)
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Result cache (optional, enabled when MinIOEndpoint is set)
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOSecure    bool
	CacheTTL       time.Duration

	// Optional bearer auth for the API
	JWTSecret string
}

func LoadConfig() Config {
	// a missing .env is fine, the process env wins anyway
	_ = godotenv.Load()

	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Minute),

		BrowserEndpoint:   getEnv("BROWSER_ENDPOINT", "wss://chrome.browserless.io"),
		BrowserAPIKey:     getEnv("BROWSER_API_KEY", ""),
		BrowserConnectRPS: getEnvFloat("BROWSER_CONNECT_RPS", 0),

		SiteID:   getEnv("SITE_ID", "mercadolibre_ar"),
		SitesDir: getEnv("SITES_DIR", ""),

		ChunkSize:       getEnvInt("CHUNK_SIZE", 10),
		CapMultiplier:   getEnvFloat("CAP_MULTIPLIER", 2.4),
		PricePercentage: getEnvFloat("PRICE_PERCENTAGE", 50),
		CandidateLimit:  getEnvInt("CANDIDATE_LIMIT", 6),
		StepTimeout:     getEnvDuration("STEP_TIMEOUT", 30*time.Second),
		SecondsPerBatch: getEnvDuration("SECONDS_PER_BATCH", 9*time.Second),

		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", ""),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "pricescout"),
		MinIOSecure:    getEnv("MINIO_SECURE", "false") == "true",
		CacheTTL:       getEnvDuration("CACHE_TTL", 6*time.Hour),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}
}

func (c Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

func (c Config) CacheEnabled() bool {
	return c.MinIOEndpoint != "" && c.CacheTTL > 0
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
