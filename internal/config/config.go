// Package config loads and validates application configuration from an
// optional config.yaml and SOC_ALERT_RELAY_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"soc-alert-relay-go/internal/dedup"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Narrator  NarratorConfig  `mapstructure:"narrator"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DedupConfig holds the anti-spam window parameters and store backend.
type DedupConfig struct {
	Backend         string `mapstructure:"backend"`
	WindowSeconds   int    `mapstructure:"window_seconds"`
	RepeatThreshold int    `mapstructure:"repeat_threshold"`
}

// Window returns the dedup window as a duration.
func (c *DedupConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// RedisConfig holds Redis connection details for the redis dedup backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MailboxConfig holds mail ingestion configuration
type MailboxConfig struct {
	Provider   string `mapstructure:"provider"`
	FromFilter string `mapstructure:"from_filter"`
	MarkSeen   bool   `mapstructure:"mark_seen"`
	FetchLimit int    `mapstructure:"fetch_limit"`

	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPUser     string `mapstructure:"imap_user"`
	IMAPPassword string `mapstructure:"imap_password"`
	IMAPFolder   string `mapstructure:"imap_folder"`

	GmailClientID     string `mapstructure:"gmail_client_id"`
	GmailClientSecret string `mapstructure:"gmail_client_secret"`
	GmailRefreshToken string `mapstructure:"gmail_refresh_token"`
	GmailUserEmail    string `mapstructure:"gmail_user_email"`
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// Interval returns the cycle interval as a duration.
func (c *SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// TelegramConfig holds Telegram dispatch configuration
type TelegramConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	BotToken     string   `mapstructure:"bot_token"`
	AdminChatIDs []string `mapstructure:"admin_chat_ids"`
}

// NarratorConfig holds the optional LLM narration configuration
type NarratorConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the narration request timeout as a duration.
func (c *NarratorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig holds log level and format
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// minSchedulerInterval keeps cycles from degenerating into a busy loop.
const minSchedulerInterval = 5

var configFile string

// SetConfigFile forces a specific config file instead of the default
// search paths.
func SetConfigFile(file string) {
	configFile = file
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigType("yaml")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("dedup.backend", "memory")
	viper.SetDefault("dedup.window_seconds", 600)
	viper.SetDefault("dedup.repeat_threshold", 3)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("mailbox.provider", "imap")
	viper.SetDefault("mailbox.mark_seen", true)
	viper.SetDefault("mailbox.fetch_limit", 50)
	viper.SetDefault("mailbox.imap_host", "imap.gmail.com")
	viper.SetDefault("mailbox.imap_port", 993)
	viper.SetDefault("mailbox.imap_folder", "INBOX")

	viper.SetDefault("scheduler.interval_seconds", 60)

	viper.SetDefault("telegram.enabled", false)

	viper.SetDefault("narrator.enabled", false)
	viper.SetDefault("narrator.model", "claude-3-5-sonnet-20241022")
	viper.SetDefault("narrator.max_tokens", 1024)
	viper.SetDefault("narrator.timeout_seconds", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SOC_ALERT_RELAY_SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SOC_ALERT_RELAY_SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SOC_ALERT_RELAY_SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "SOC_ALERT_RELAY_DATABASE_HOST")
	viper.BindEnv("database.port", "SOC_ALERT_RELAY_DATABASE_PORT")
	viper.BindEnv("database.user", "SOC_ALERT_RELAY_DATABASE_USER")
	viper.BindEnv("database.password", "SOC_ALERT_RELAY_DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "SOC_ALERT_RELAY_DATABASE_DBNAME")

	// Dedup
	viper.BindEnv("dedup.backend", "SOC_ALERT_RELAY_DEDUP_BACKEND")
	viper.BindEnv("dedup.window_seconds", "SOC_ALERT_RELAY_DEDUP_WINDOW_SECONDS")
	viper.BindEnv("dedup.repeat_threshold", "SOC_ALERT_RELAY_DEDUP_REPEAT_THRESHOLD")

	// Redis
	viper.BindEnv("redis.addr", "SOC_ALERT_RELAY_REDIS_ADDR")
	viper.BindEnv("redis.password", "SOC_ALERT_RELAY_REDIS_PASSWORD")
	viper.BindEnv("redis.db", "SOC_ALERT_RELAY_REDIS_DB")

	// Mailbox
	viper.BindEnv("mailbox.provider", "SOC_ALERT_RELAY_MAILBOX_PROVIDER")
	viper.BindEnv("mailbox.from_filter", "SOC_ALERT_RELAY_MAILBOX_FROM_FILTER")
	viper.BindEnv("mailbox.mark_seen", "SOC_ALERT_RELAY_MAILBOX_MARK_SEEN")
	viper.BindEnv("mailbox.fetch_limit", "SOC_ALERT_RELAY_MAILBOX_FETCH_LIMIT")
	viper.BindEnv("mailbox.imap_host", "SOC_ALERT_RELAY_MAILBOX_IMAP_HOST")
	viper.BindEnv("mailbox.imap_port", "SOC_ALERT_RELAY_MAILBOX_IMAP_PORT")
	viper.BindEnv("mailbox.imap_user", "SOC_ALERT_RELAY_MAILBOX_IMAP_USER")
	viper.BindEnv("mailbox.imap_password", "SOC_ALERT_RELAY_MAILBOX_IMAP_PASSWORD")
	viper.BindEnv("mailbox.imap_folder", "SOC_ALERT_RELAY_MAILBOX_IMAP_FOLDER")
	viper.BindEnv("mailbox.gmail_client_id", "SOC_ALERT_RELAY_MAILBOX_GMAIL_CLIENT_ID")
	viper.BindEnv("mailbox.gmail_client_secret", "SOC_ALERT_RELAY_MAILBOX_GMAIL_CLIENT_SECRET")
	viper.BindEnv("mailbox.gmail_refresh_token", "SOC_ALERT_RELAY_MAILBOX_GMAIL_REFRESH_TOKEN")
	viper.BindEnv("mailbox.gmail_user_email", "SOC_ALERT_RELAY_MAILBOX_GMAIL_USER_EMAIL")

	// Scheduler
	viper.BindEnv("scheduler.interval_seconds", "SOC_ALERT_RELAY_SCHEDULER_INTERVAL_SECONDS")

	// Telegram
	viper.BindEnv("telegram.enabled", "SOC_ALERT_RELAY_TELEGRAM_ENABLED")
	viper.BindEnv("telegram.bot_token", "SOC_ALERT_RELAY_TELEGRAM_BOT_TOKEN")
	viper.BindEnv("telegram.admin_chat_ids", "SOC_ALERT_RELAY_TELEGRAM_ADMIN_CHAT_IDS")

	// Narrator
	viper.BindEnv("narrator.enabled", "SOC_ALERT_RELAY_NARRATOR_ENABLED")
	viper.BindEnv("narrator.api_key", "SOC_ALERT_RELAY_NARRATOR_API_KEY")
	viper.BindEnv("narrator.model", "SOC_ALERT_RELAY_NARRATOR_MODEL")
	viper.BindEnv("narrator.max_tokens", "SOC_ALERT_RELAY_NARRATOR_MAX_TOKENS")
	viper.BindEnv("narrator.timeout_seconds", "SOC_ALERT_RELAY_NARRATOR_TIMEOUT_SECONDS")

	// Logging
	viper.BindEnv("logging.level", "SOC_ALERT_RELAY_LOGGING_LEVEL")
	viper.BindEnv("logging.format", "SOC_ALERT_RELAY_LOGGING_FORMAT")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	switch c.Dedup.Backend {
	case "memory", "database":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when dedup backend is redis")
		}
	default:
		return fmt.Errorf("dedup backend must be one of memory, redis, database, got %q", c.Dedup.Backend)
	}

	if c.Dedup.Window() < dedup.MinWindow {
		return fmt.Errorf("dedup window must be at least %v, got %v", dedup.MinWindow, c.Dedup.Window())
	}
	if c.Dedup.RepeatThreshold < dedup.MinThreshold {
		return fmt.Errorf("dedup repeat threshold must be at least %d, got %d", dedup.MinThreshold, c.Dedup.RepeatThreshold)
	}

	switch c.Mailbox.Provider {
	case "imap":
		if c.Mailbox.IMAPUser == "" || c.Mailbox.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required when the mailbox provider is imap")
		}
	case "gmail":
		if c.Mailbox.GmailClientID == "" || c.Mailbox.GmailClientSecret == "" || c.Mailbox.GmailRefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when the mailbox provider is gmail")
		}
	default:
		return fmt.Errorf("mailbox provider must be imap or gmail, got %q", c.Mailbox.Provider)
	}
	if c.Mailbox.FetchLimit <= 0 {
		return fmt.Errorf("mailbox fetch limit must be greater than 0")
	}

	if c.Scheduler.IntervalSeconds < minSchedulerInterval {
		return fmt.Errorf("scheduler interval must be at least %d seconds, got %d", minSchedulerInterval, c.Scheduler.IntervalSeconds)
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required when telegram is enabled")
	}

	if c.Narrator.Enabled {
		if c.Narrator.APIKey == "" {
			return fmt.Errorf("narrator api key is required when the narrator is enabled")
		}
		if c.Narrator.MaxTokens <= 0 || c.Narrator.TimeoutSeconds <= 0 {
			return fmt.Errorf("narrator max tokens and timeout must be greater than 0")
		}
	}

	return nil
}
