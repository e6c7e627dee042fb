package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMongo  = "mongo"
	StoreBolt   = "bolt"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	HTTPRateLimitRPS   int
	HTTPRateLimitBurst int

	TMDBAPIKey     string
	TMDBBaseURL    string
	TMDBLanguage   string
	TMDBRateLimit  int
	CatalogTimeout time.Duration
	CatalogTTL     time.Duration

	StoreBackend   string
	CounterBackend string
	StoreTimeout   time.Duration

	MongoURI                 string
	MongoDatabase            string
	MongoSearchCollection    string
	MongoFavoritesCollection string
	BoltPath                 string
	RedisURL                 string

	DebounceQuiet time.Duration

	OTELEndpoint    string
	OTELSampleRatio float64
}

func LoadConfig() Config {
	storeBackend := normalizeBackend(getEnv("STORE_BACKEND", StoreMongo), StoreMongo)
	counterBackend := storeBackend
	if raw := strings.ToLower(getEnv("COUNTER_BACKEND", "")); raw == StoreRedis {
		counterBackend = StoreRedis
	} else if raw != "" {
		counterBackend = normalizeBackend(raw, storeBackend)
	}

	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8095"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPRateLimitRPS:   getEnvInt("HTTP_RATE_LIMIT_RPS", 50),
		HTTPRateLimitBurst: getEnvInt("HTTP_RATE_LIMIT_BURST", 100),

		TMDBAPIKey:     strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:    getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBLanguage:   getEnv("TMDB_LANGUAGE", "en-US"),
		TMDBRateLimit:  getEnvInt("TMDB_RATE_LIMIT_RPS", 20),
		CatalogTimeout: time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 10)) * time.Second,
		CatalogTTL:     time.Duration(getEnvInt("CATALOG_CACHE_TTL_MINUTES", 10)) * time.Minute,

		StoreBackend:   storeBackend,
		CounterBackend: counterBackend,
		StoreTimeout:   time.Duration(getEnvInt("STORE_TIMEOUT_SECONDS", 5)) * time.Second,

		MongoURI:                 getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:            getEnv("MONGO_DB", "moviefinder"),
		MongoSearchCollection:    getEnv("MONGO_SEARCH_COLLECTION", "search_counts"),
		MongoFavoritesCollection: getEnv("MONGO_FAVORITES_COLLECTION", "favorite_movies"),
		BoltPath:                 getEnv("BOLT_PATH", "data/moviefinder.db"),
		RedisURL:                 getEnv("REDIS_URL", ""),

		DebounceQuiet: time.Duration(getEnvInt("DEBOUNCE_MS", 500)) * time.Millisecond,

		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),
	}
}

// normalizeBackend maps unknown store names to fallback.
func normalizeBackend(raw, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreMongo:
		return StoreMongo
	case StoreBolt:
		return StoreBolt
	case StoreMemory:
		return StoreMemory
	default:
		return fallback
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 || parsed > 1 {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
