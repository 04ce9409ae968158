package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for the S3-compatible backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig holds blob storage and upload policy settings.
// Backend selects the StorageBackend implementation: "filesystem" (default)
// or "minio".
type StorageConfig struct {
	Backend           string
	BasePath          string
	AllowedTypes      []string
	AllowedExtensions []string
	MaxFileSizeBytes  int64
	MaxFilesPerUpload int
	CapacityBytes     int64
}

// ThumbnailConfig holds thumbnail generation settings.
type ThumbnailConfig struct {
	Width   int
	Height  int
	Quality int
}

// CompressionConfig holds in-place original recompression settings.
type CompressionConfig struct {
	Enabled   bool
	Quality   int
	MaxWidth  int
	MaxHeight int
}

// CacheConfig bounds the metadata cache by entry count and TTL.
type CacheConfig struct {
	MaxEntries int
	TTLMinutes int
}

// RetentionConfig controls the periodic expiry sweep.
// Schedule is a cron expression; photos older than DaysToKeep are purged.
type RetentionConfig struct {
	Enabled    bool
	DaysToKeep int
	Schedule   string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost     string
	Port        string
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Storage     StorageConfig
	Thumbnail   ThumbnailConfig
	Compression CompressionConfig
	Cache       CacheConfig
	Retention   RetentionConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Storage: StorageConfig{
			Backend:  getEnv("STORAGE_BACKEND", "filesystem"),
			BasePath: getEnv("STORAGE_BASE_PATH", "./uploads"),
			AllowedTypes: getEnvList("STORAGE_ALLOWED_TYPES",
				"image/jpeg,image/png,image/gif,image/bmp,image/webp"),
			AllowedExtensions: getEnvList("STORAGE_ALLOWED_EXTENSIONS",
				"jpg,jpeg,png,gif,bmp,webp"),
			MaxFileSizeBytes:  getEnvInt64("STORAGE_MAX_FILE_SIZE_BYTES", 10*1024*1024),
			MaxFilesPerUpload: getEnvInt("STORAGE_MAX_FILES_PER_UPLOAD", 10),
			CapacityBytes:     getEnvInt64("STORAGE_CAPACITY_BYTES", 10*1024*1024*1024),
		},
		Thumbnail: ThumbnailConfig{
			Width:   getEnvInt("THUMBNAIL_WIDTH", 200),
			Height:  getEnvInt("THUMBNAIL_HEIGHT", 200),
			Quality: getEnvInt("THUMBNAIL_QUALITY", 80),
		},
		Compression: CompressionConfig{
			Enabled:   getEnvBool("COMPRESSION_ENABLED", true),
			Quality:   getEnvInt("COMPRESSION_QUALITY", 85),
			MaxWidth:  getEnvInt("COMPRESSION_MAX_WIDTH", 1920),
			MaxHeight: getEnvInt("COMPRESSION_MAX_HEIGHT", 1080),
		},
		Cache: CacheConfig{
			MaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 500),
			TTLMinutes: getEnvInt("CACHE_TTL_MINUTES", 30),
		},
		Retention: RetentionConfig{
			Enabled:    getEnvBool("RETENTION_ENABLED", false),
			DaysToKeep: getEnvInt("RETENTION_DAYS_TO_KEEP", 30),
			Schedule:   getEnv("RETENTION_SCHEDULE", "0 2 * * *"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvList(key, def string) []string {
	raw := getEnv(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
