package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Documents DocumentsConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// DocumentsConfig is the document-policy surface: storage namespaces, the
// protection window and preview pipeline knobs.
type DocumentsConfig struct {
	DocumentsDir    string
	PreviewDir      string
	ProtectAfter    time.Duration
	RenderPreview   bool
	PreviewTimeout  time.Duration
	PreviewWorkers  int
	PreviewMaxWidth int
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5020")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "dokstore")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("MINIO_BUCKET", "dokstore")
	viper.SetDefault("DOCUMENTS_DIR", "documents/")
	viper.SetDefault("PREVIEW_DIR", "previews/")
	viper.SetDefault("PROTECT_AFTER_HOURS", 24)
	viper.SetDefault("RENDER_PREVIEW", true)
	viper.SetDefault("PREVIEW_TIMEOUT_SECONDS", 30)
	viper.SetDefault("PREVIEW_WORKERS", 2)
	viper.SetDefault("PREVIEW_MAX_WIDTH", 1024)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		Documents: DocumentsConfig{
			DocumentsDir:    viper.GetString("DOCUMENTS_DIR"),
			PreviewDir:      viper.GetString("PREVIEW_DIR"),
			ProtectAfter:    time.Duration(viper.GetInt("PROTECT_AFTER_HOURS")) * time.Hour,
			RenderPreview:   viper.GetBool("RENDER_PREVIEW"),
			PreviewTimeout:  time.Duration(viper.GetInt("PREVIEW_TIMEOUT_SECONDS")) * time.Second,
			PreviewWorkers:  viper.GetInt("PREVIEW_WORKERS"),
			PreviewMaxWidth: viper.GetInt("PREVIEW_MAX_WIDTH"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}
