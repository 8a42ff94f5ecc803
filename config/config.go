// ABOUTME: Application configuration loaded from .env files and the environment
// ABOUTME: Binds viper keys into typed sections with defaults under XDG directories
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Log       LogConfig
	Storage   StorageConfig
	Mail      MailConfig
	Signing   SigningConfig
	Reminders ReminderConfig
	Retry     RetryConfig
	Board     BoardConfig
}

type DatabaseConfig struct {
	Path string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port    int
	BaseURL string
	// CronSecret guards the reminder sweep trigger. Empty is allowed at
	// load time; the trigger then refuses every call.
	CronSecret   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level string
}

// Storage drivers.
const (
	StorageDir = "dir"
	StorageS3  = "s3"
)

type StorageConfig struct {
	Driver     string
	Dir        string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

// Mail drivers.
const (
	MailLog   = "log"
	MailGmail = "gmail"
)

type MailConfig struct {
	Driver          string
	From            string
	SenderName      string
	CredentialsPath string
	TokenPath       string
}

// SigningConfig configures the external signing provider. The self-hosted
// provider needs only Server.BaseURL.
type SigningConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	ProviderName string
}

// Configured reports whether enough is set to talk to the external provider.
func (s SigningConfig) Configured() bool {
	return s.BaseURL != "" && s.ClientID != "" && s.RefreshToken != ""
}

type ReminderConfig struct {
	Threshold time.Duration
	Max       int
	Interval  time.Duration
}

// MaxReminders is the most reminders any record may receive.
const MaxReminders = 2

type RetryConfig struct {
	MaxTries       uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Board cache drivers.
const (
	CacheBadger = "badger"
	CacheCharm  = "charm"
	CacheMemory = "memory"
)

// BoardConfig configures the board client used by the TUI and the move command.
type BoardConfig struct {
	APIURL        string
	Token         string
	CacheDriver   string
	CacheDir      string
	CharmHost     string
	CharmAutoSync bool
}

// DataDir is where sponsordesk keeps its database, blobs and caches by default.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "sponsordesk")
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	return load(viper.New())
}

// LoadWithPath loads configuration from a specific env file.
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_PATH", filepath.Join(DataDir(), "sponsordesk.db"))

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("CRON_SECRET", "")
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "60s")

	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORAGE_DRIVER", StorageDir)
	v.SetDefault("STORAGE_DIR", filepath.Join(DataDir(), "assets"))
	v.SetDefault("S3_REGION", "eu-north-1")
	v.SetDefault("S3_PREFIX", "contracts/")

	v.SetDefault("MAIL_DRIVER", MailLog)
	v.SetDefault("MAIL_FROM", "sponsors@example.com")
	v.SetDefault("MAIL_SENDER_NAME", "Sponsor Team")
	v.SetDefault("GMAIL_CREDENTIALS_PATH", filepath.Join(DataDir(), "google-credentials.json"))
	v.SetDefault("GMAIL_TOKEN_PATH", filepath.Join(DataDir(), "gmail-token.json"))

	v.SetDefault("ADOBE_SIGN_TOKEN_URL", "https://api.eu1.adobesign.com/oauth/v2/refresh")
	v.SetDefault("ADOBE_SIGN_PROVIDER_NAME", "Adobe Sign")

	v.SetDefault("REMINDER_THRESHOLD", "120h")
	v.SetDefault("REMINDER_MAX", MaxReminders)
	v.SetDefault("REMINDER_INTERVAL", "0s")

	v.SetDefault("RETRY_MAX_TRIES", 3)
	v.SetDefault("RETRY_INITIAL_BACKOFF", "500ms")
	v.SetDefault("RETRY_MAX_BACKOFF", "10s")

	v.SetDefault("BOARD_API_URL", "http://localhost:8080")
	v.SetDefault("BOARD_CACHE_DRIVER", CacheBadger)
	v.SetDefault("BOARD_CACHE_DIR", filepath.Join(DataDir(), "board-cache"))
	v.SetDefault("CHARM_HOST", "charm.2389.dev")
	v.SetDefault("CHARM_AUTO_SYNC", true)
}

func bindConfig(v *viper.Viper, cfg *Config) {
	cfg.Database.Path = v.GetString("DB_PATH")

	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.BaseURL = strings.TrimRight(v.GetString("BASE_URL"), "/")
	cfg.Server.CronSecret = v.GetString("CRON_SECRET")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")

	cfg.Log.Level = v.GetString("LOG_LEVEL")

	cfg.Storage.Driver = strings.ToLower(v.GetString("STORAGE_DRIVER"))
	cfg.Storage.Dir = v.GetString("STORAGE_DIR")
	cfg.Storage.S3Bucket = v.GetString("S3_BUCKET")
	cfg.Storage.S3Region = v.GetString("S3_REGION")
	cfg.Storage.S3Endpoint = v.GetString("S3_ENDPOINT")
	cfg.Storage.S3Prefix = v.GetString("S3_PREFIX")

	cfg.Mail.Driver = strings.ToLower(v.GetString("MAIL_DRIVER"))
	cfg.Mail.From = v.GetString("MAIL_FROM")
	cfg.Mail.SenderName = v.GetString("MAIL_SENDER_NAME")
	cfg.Mail.CredentialsPath = v.GetString("GMAIL_CREDENTIALS_PATH")
	cfg.Mail.TokenPath = v.GetString("GMAIL_TOKEN_PATH")

	cfg.Signing.BaseURL = strings.TrimRight(v.GetString("ADOBE_SIGN_BASE_URL"), "/")
	cfg.Signing.ClientID = v.GetString("ADOBE_SIGN_CLIENT_ID")
	cfg.Signing.ClientSecret = v.GetString("ADOBE_SIGN_CLIENT_SECRET")
	cfg.Signing.RefreshToken = v.GetString("ADOBE_SIGN_REFRESH_TOKEN")
	cfg.Signing.TokenURL = v.GetString("ADOBE_SIGN_TOKEN_URL")
	cfg.Signing.ProviderName = v.GetString("ADOBE_SIGN_PROVIDER_NAME")

	cfg.Reminders.Threshold = v.GetDuration("REMINDER_THRESHOLD")
	cfg.Reminders.Max = v.GetInt("REMINDER_MAX")
	cfg.Reminders.Interval = v.GetDuration("REMINDER_INTERVAL")

	cfg.Retry.MaxTries = v.GetUint("RETRY_MAX_TRIES")
	cfg.Retry.InitialBackoff = v.GetDuration("RETRY_INITIAL_BACKOFF")
	cfg.Retry.MaxBackoff = v.GetDuration("RETRY_MAX_BACKOFF")

	cfg.Board.APIURL = strings.TrimRight(v.GetString("BOARD_API_URL"), "/")
	cfg.Board.Token = v.GetString("BOARD_API_TOKEN")
	cfg.Board.CacheDriver = strings.ToLower(v.GetString("BOARD_CACHE_DRIVER"))
	cfg.Board.CacheDir = v.GetString("BOARD_CACHE_DIR")
	cfg.Board.CharmHost = v.GetString("CHARM_HOST")
	cfg.Board.CharmAutoSync = v.GetBool("CHARM_AUTO_SYNC")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case StorageDir:
		if c.Storage.Dir == "" {
			return fmt.Errorf("STORAGE_DIR is required for the dir storage driver")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}

	if c.Mail.Driver != MailLog && c.Mail.Driver != MailGmail {
		return fmt.Errorf("unknown mail driver: %s", c.Mail.Driver)
	}

	if c.Reminders.Threshold <= 0 {
		return fmt.Errorf("REMINDER_THRESHOLD must be positive")
	}
	if c.Reminders.Max < 1 || c.Reminders.Max > MaxReminders {
		return fmt.Errorf("REMINDER_MAX must be between 1 and %d", MaxReminders)
	}
	switch c.Board.CacheDriver {
	case CacheBadger, CacheCharm, CacheMemory:
	default:
		return fmt.Errorf("unknown board cache driver: %s", c.Board.CacheDriver)
	}

	if c.Retry.MaxTries < 1 {
		return fmt.Errorf("RETRY_MAX_TRIES must be at least 1")
	}

	return nil
}
