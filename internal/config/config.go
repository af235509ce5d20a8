package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Server     ServerConfig
	AWS        AWSConfig
	Data       DataConfig
	Navigation NavigationConfig
	Report     ReportConfig
	LogLevel   string
}

// DatabaseConfig holds database configuration. An empty URL disables persistence.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds the summary cache configuration. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// AWSConfig holds AWS/S3 configuration. An empty bucket disables archiving.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

// DataConfig controls where recordings come from and how mock data is built
type DataConfig struct {
	File                string
	Dir                 string
	MinRecordSeconds    float64
	MockDurationSeconds float64
	MockSeed            uint64
}

// NavigationConfig holds the frame bounds of the viewer
type NavigationConfig struct {
	DefaultFrameSeconds float64
	MinFrameSeconds     float64
	MaxFrameSeconds     float64
}

// ReportConfig holds report export configuration
type ReportConfig struct {
	Dir string
}

// DefaultSource is the recording opened when no source is given
func (d DataConfig) DefaultSource() string {
	if d.File == "" || d.Dir == "" || filepath.IsAbs(d.File) || strings.HasPrefix(d.File, "s3://") {
		return d.File
	}
	return filepath.Join(d.Dir, d.File)
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("DATA_FILE", "DATA0025.TXT")
	viper.SetDefault("DATA_DIR", ".")
	viper.SetDefault("MIN_RECORD_SECONDS", 3600)
	viper.SetDefault("MOCK_DURATION_SECONDS", 28800)
	viper.SetDefault("MOCK_SEED", 42)
	viper.SetDefault("DEFAULT_FRAME_SECONDS", 10)
	viper.SetDefault("MIN_FRAME_SECONDS", 5)
	viper.SetDefault("MAX_FRAME_SECONDS", 1800)
	viper.SetDefault("REPORT_DIR", "")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_TTL", "24h")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "dev")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_ACCESS_KEY_ID", "")
	viper.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	viper.SetDefault("S3_BUCKET", "")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("LOG_LEVEL", "info")

	env := viper.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	// Try to read .env file for the current environment
	viper.SetConfigName(".env." + env)
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Read .env file (ignore error if file doesn't exist)
	_ = viper.ReadInConfig()

	// Environment variables override .env file values
	viper.AutomaticEnv()

	for _, key := range []string{
		"DATA_FILE", "DATA_DIR", "MIN_RECORD_SECONDS", "MOCK_DURATION_SECONDS", "MOCK_SEED",
		"DEFAULT_FRAME_SECONDS", "MIN_FRAME_SECONDS", "MAX_FRAME_SECONDS", "REPORT_DIR",
		"DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL",
		"PORT", "ENVIRONMENT", "AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"S3_BUCKET", "S3_ENDPOINT", "ALLOWED_ORIGINS", "LOG_LEVEL",
	} {
		_ = viper.BindEnv(key)
	}

	var config Config
	config.Database.URL = viper.GetString("DATABASE_URL")
	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")
	config.Redis.TTL = viper.GetDuration("CACHE_TTL")
	config.Server.Port = viper.GetString("PORT")
	config.Server.Env = viper.GetString("ENVIRONMENT")
	config.Server.AllowedOrigins = splitList(viper.GetString("ALLOWED_ORIGINS"))
	config.AWS.Region = viper.GetString("AWS_REGION")
	config.AWS.AccessKeyID = viper.GetString("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = viper.GetString("AWS_SECRET_ACCESS_KEY")
	config.AWS.S3Bucket = viper.GetString("S3_BUCKET")
	config.AWS.S3Endpoint = viper.GetString("S3_ENDPOINT")
	config.Data.File = viper.GetString("DATA_FILE")
	config.Data.Dir = viper.GetString("DATA_DIR")
	config.Data.MinRecordSeconds = viper.GetFloat64("MIN_RECORD_SECONDS")
	config.Data.MockDurationSeconds = viper.GetFloat64("MOCK_DURATION_SECONDS")
	config.Data.MockSeed = viper.GetUint64("MOCK_SEED")
	config.Navigation.DefaultFrameSeconds = viper.GetFloat64("DEFAULT_FRAME_SECONDS")
	config.Navigation.MinFrameSeconds = viper.GetFloat64("MIN_FRAME_SECONDS")
	config.Navigation.MaxFrameSeconds = viper.GetFloat64("MAX_FRAME_SECONDS")
	config.Report.Dir = viper.GetString("REPORT_DIR")
	config.LogLevel = viper.GetString("LOG_LEVEL")

	log.Debug().
		Str("environment", config.Server.Env).
		Bool("database", config.Database.URL != "").
		Bool("redis", config.Redis.Addr != "").
		Bool("s3", config.AWS.S3Bucket != "").
		Msg("Configuration loaded")

	return &config, nil
}

// GetStringOrDefault returns the value from viper if set, otherwise returns the default
func GetStringOrDefault(envVar, def string) string {
	if viper.IsSet(envVar) && viper.GetString(envVar) != "" {
		return viper.GetString(envVar)
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
