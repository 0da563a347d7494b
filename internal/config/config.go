package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DEBATEBET_SERVER_PORT
const EnvPrefix = "DEBATEBET"

// Config represents the complete debatebet configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	// Path is the database file, or ":memory:"
	Path string `mapstructure:"path"`
}

// EngineConfig holds the fixed roles and debate defaults
type EngineConfig struct {
	// Owner may sweep the treasury and act as moderator
	Owner string `mapstructure:"owner"`
	// Moderator creates, resolves and refunds debates
	Moderator string `mapstructure:"moderator"`
	// DefaultFeeBps applies to debates created without an explicit fee (500 = 5%)
	DefaultFeeBps uint32 `mapstructure:"default_fee_bps"`
}

// AuthConfig controls signed caller headers
type AuthConfig struct {
	// Secret is the HMAC key shared with the signing frontend
	Secret string `mapstructure:"secret"`
	// MaxAge bounds how old an auth_date may be
	MaxAge time.Duration `mapstructure:"max_age"`
}

// TelegramConfig controls channel broadcasts and the read-only bot
type TelegramConfig struct {
	Token     string `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
	// WebAppURL is offered as a button on /start when set
	WebAppURL string `mapstructure:"web_app_url"`
}

// WorkerConfig controls the background refund worker
type WorkerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// CacheConfig sizes the response cache for settled debates
type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Path: "/app/data/debates.db",
		},
		Engine: EngineConfig{
			DefaultFeeBps: 500,
		},
		Auth: AuthConfig{
			MaxAge: 24 * time.Hour,
		},
		Worker: WorkerConfig{
			Enabled:  true,
			Interval: time.Minute,
		},
		Cache: CacheConfig{
			Size: 256,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("server.port", defaults.Server.Port)
	viper.SetDefault("database.path", defaults.Database.Path)

	viper.SetDefault("engine.owner", defaults.Engine.Owner)
	viper.SetDefault("engine.moderator", defaults.Engine.Moderator)
	viper.SetDefault("engine.default_fee_bps", defaults.Engine.DefaultFeeBps)

	viper.SetDefault("auth.secret", defaults.Auth.Secret)
	viper.SetDefault("auth.max_age", defaults.Auth.MaxAge)

	viper.SetDefault("telegram.token", defaults.Telegram.Token)
	viper.SetDefault("telegram.channel_id", defaults.Telegram.ChannelID)
	viper.SetDefault("telegram.web_app_url", defaults.Telegram.WebAppURL)

	viper.SetDefault("worker.enabled", defaults.Worker.Enabled)
	viper.SetDefault("worker.interval", defaults.Worker.Interval)

	viper.SetDefault("cache.size", defaults.Cache.Size)
}

// BindEnv enables DEBATEBET_* overrides for every key
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	// DEBATEBET_ENGINE_DEFAULT_FEE_BPS for engine.default_fee_bps
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// OwnerAddress returns the configured owner as an address
func (c *EngineConfig) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// ModeratorAddress returns the configured moderator as an address
func (c *EngineConfig) ModeratorAddress() common.Address {
	return common.HexToAddress(c.Moderator)
}

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Server.Port == "" {
		errs = append(errs, ValidationError{Field: "server.port", Value: c.Server.Port, Message: "must not be empty"})
	}
	if c.Database.Path == "" {
		errs = append(errs, ValidationError{Field: "database.path", Value: c.Database.Path, Message: "must not be empty"})
	}

	roles := []struct{ field, value string }{
		{"engine.owner", c.Engine.Owner},
		{"engine.moderator", c.Engine.Moderator},
	}
	for _, r := range roles {
		if !common.IsHexAddress(r.value) {
			errs = append(errs, ValidationError{Field: r.field, Value: r.value, Message: "must be a hex address"})
		} else if common.HexToAddress(r.value) == (common.Address{}) {
			errs = append(errs, ValidationError{Field: r.field, Value: r.value, Message: "must not be the zero address"})
		}
	}
	if c.Engine.DefaultFeeBps > 10000 {
		errs = append(errs, ValidationError{Field: "engine.default_fee_bps", Value: c.Engine.DefaultFeeBps, Message: "must be between 0 and 10000"})
	}

	if c.Auth.MaxAge <= 0 {
		errs = append(errs, ValidationError{Field: "auth.max_age", Value: c.Auth.MaxAge, Message: "must be positive"})
	}
	if c.Worker.Enabled && c.Worker.Interval < time.Second {
		errs = append(errs, ValidationError{Field: "worker.interval", Value: c.Worker.Interval, Message: "must be at least 1s"})
	}
	if c.Cache.Size < 0 {
		errs = append(errs, ValidationError{Field: "cache.size", Value: c.Cache.Size, Message: "must not be negative"})
	}

	return errs
}
