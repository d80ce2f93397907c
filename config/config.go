package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort       string `mapstructure:"HTTP_PORT"`
	GRPCPort       string `mapstructure:"GRPC_PORT"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	CookieSecure   bool   `mapstructure:"COOKIE_SECURE"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	RedisAddr  string `mapstructure:"REDIS_ADDR"`

	AccessSecret  string `mapstructure:"ACCESS_SECRET"`
	RefreshSecret string `mapstructure:"REFRESH_SECRET"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPEmail    string `mapstructure:"SMTP_EMAIL"`
	FrontendURL  string `mapstructure:"FRONTEND_URL"`

	S3Endpoint  string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKey string        `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string        `mapstructure:"S3_SECRET_KEY"`
	S3UseSSL    bool          `mapstructure:"S3_USE_SSL"`
	VideoBucket string        `mapstructure:"VIDEO_BUCKET"`
	VideoURLTTL time.Duration `mapstructure:"VIDEO_URL_TTL"`

	DeviceDefaultCap       int  `mapstructure:"DEVICE_DEFAULT_CAP"`
	DeviceEvictionEnabled  bool `mapstructure:"DEVICE_EVICTION_ENABLED"`
	DeviceAdmitMaxAttempts int  `mapstructure:"DEVICE_ADMIT_MAX_ATTEMPTS"`
	DeviceStaleDays        int  `mapstructure:"DEVICE_STALE_DAYS"`
}

var keys = []string{
	"HTTP_PORT", "GRPC_PORT", "ALLOWED_ORIGINS", "LOG_LEVEL", "COOKIE_SECURE",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "REDIS_ADDR",
	"ACCESS_SECRET", "REFRESH_SECRET",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "SMTP_EMAIL", "FRONTEND_URL",
	"S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_USE_SSL", "VIDEO_BUCKET", "VIDEO_URL_TTL",
	"DEVICE_DEFAULT_CAP", "DEVICE_EVICTION_ENABLED", "DEVICE_ADMIT_MAX_ATTEMPTS", "DEVICE_STALE_DAYS",
}

// LoadConfig reads app.env from path if present and overlays the
// environment. A missing file is not an error.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for _, key := range keys {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	v.SetDefault("HTTP_PORT", ":8080")
	v.SetDefault("GRPC_PORT", ":50051")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("VIDEO_URL_TTL", "2h")
	v.SetDefault("DEVICE_DEFAULT_CAP", 2)
	v.SetDefault("DEVICE_EVICTION_ENABLED", false)
	v.SetDefault("DEVICE_ADMIT_MAX_ATTEMPTS", 3)
	v.SetDefault("DEVICE_STALE_DAYS", 90)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	err = config.Validate()
	return
}

func (c Config) Validate() error {
	if c.DeviceDefaultCap < 1 {
		return fmt.Errorf("DEVICE_DEFAULT_CAP must be positive, got %d", c.DeviceDefaultCap)
	}
	if c.DeviceAdmitMaxAttempts < 1 {
		return fmt.Errorf("DEVICE_ADMIT_MAX_ATTEMPTS must be positive, got %d", c.DeviceAdmitMaxAttempts)
	}
	if c.DeviceStaleDays < 0 {
		return fmt.Errorf("DEVICE_STALE_DAYS cannot be negative, got %d", c.DeviceStaleDays)
	}
	return nil
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
