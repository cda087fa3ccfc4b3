package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:   "localhost",
			User:   "test",
			DBName: "test",
		},
		Dedup: DedupConfig{
			Backend:         "memory",
			WindowSeconds:   600,
			RepeatThreshold: 3,
		},
		Mailbox: MailboxConfig{
			Provider:     "imap",
			IMAPUser:     "soc@example.com",
			IMAPPassword: "secret",
			FetchLimit:   50,
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds: 60,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.Validate())

	// Missing server port
	invalid := validConfig()
	invalid.Server.Port = ""
	assert.Error(t, invalid.Validate())

	// Missing database coordinates
	invalid = validConfig()
	invalid.Database.User = ""
	assert.Error(t, invalid.Validate())
}

func TestConfigValidationDedupFloors(t *testing.T) {
	// A window shorter than a minute defeats the suppression semantics
	config := validConfig()
	config.Dedup.WindowSeconds = 59
	assert.Error(t, config.Validate())

	config.Dedup.WindowSeconds = 60
	assert.NoError(t, config.Validate())

	config = validConfig()
	config.Dedup.RepeatThreshold = 0
	assert.Error(t, config.Validate())

	config.Dedup.RepeatThreshold = 1
	assert.NoError(t, config.Validate())
}

func TestConfigValidationDedupBackend(t *testing.T) {
	config := validConfig()
	config.Dedup.Backend = "cassandra"
	assert.Error(t, config.Validate())

	config.Dedup.Backend = "redis"
	config.Redis.Addr = ""
	assert.Error(t, config.Validate())

	config.Redis.Addr = "localhost:6379"
	assert.NoError(t, config.Validate())

	config.Dedup.Backend = "database"
	assert.NoError(t, config.Validate())
}

func TestConfigValidationMailbox(t *testing.T) {
	config := validConfig()
	config.Mailbox.IMAPPassword = ""
	assert.Error(t, config.Validate())

	config = validConfig()
	config.Mailbox.Provider = "gmail"
	assert.Error(t, config.Validate())

	config.Mailbox.GmailClientID = "id"
	config.Mailbox.GmailClientSecret = "secret"
	config.Mailbox.GmailRefreshToken = "token"
	assert.NoError(t, config.Validate())

	config = validConfig()
	config.Mailbox.Provider = "carrier-pigeon"
	assert.Error(t, config.Validate())
}

func TestConfigValidationSchedulerInterval(t *testing.T) {
	config := validConfig()
	config.Scheduler.IntervalSeconds = 4
	assert.Error(t, config.Validate())

	config.Scheduler.IntervalSeconds = 5
	assert.NoError(t, config.Validate())
}

func TestConfigValidationOptionalIntegrations(t *testing.T) {
	config := validConfig()
	config.Telegram.Enabled = true
	assert.Error(t, config.Validate())

	config.Telegram.BotToken = "123:abc"
	assert.NoError(t, config.Validate())

	config = validConfig()
	config.Narrator.Enabled = true
	config.Narrator.MaxTokens = 1024
	config.Narrator.TimeoutSeconds = 30
	assert.Error(t, config.Validate())

	config.Narrator.APIKey = "sk-test"
	assert.NoError(t, config.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	dsn := config.GetDSN()
	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, dsn)
}
