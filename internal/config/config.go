// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Ladder    LadderConfig    `mapstructure:"ladder"`
	Log       LogConfig       `mapstructure:"log"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token         string        `mapstructure:"token"`
	PollerTimeout time.Duration `mapstructure:"poller_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the optional Redis used for scheduler leases.
// An empty URL keeps leases in process.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AdminConfig holds owner and moderator user ids.
type AdminConfig struct {
	IDs          []int64 `mapstructure:"ids"`
	ModeratorIDs []int64 `mapstructure:"moderator_ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// ChannelsConfig maps announcement channels to chat ids. Zero disables a channel.
type ChannelsConfig struct {
	Announcements int64 `mapstructure:"announcements"`
	Matchups      int64 `mapstructure:"matchups"`
	Drafts        int64 `mapstructure:"drafts"`
	Logging       int64 `mapstructure:"logging"`
	Signups       int64 `mapstructure:"signups"`
}

// LadderConfig holds the timing rules.
type LadderConfig struct {
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	SignupTick         time.Duration `mapstructure:"signup_tick"`
	AutoConfirmAfter   time.Duration `mapstructure:"autoconfirm_after"`
	HostSwitchAfter    time.Duration `mapstructure:"host_switch_after"`
	StaleDeleteAfter   time.Duration `mapstructure:"stale_delete_after"`
	SignupOpenWeekday  int           `mapstructure:"signup_open_weekday"`
	SignupCloseWeekday int           `mapstructure:"signup_close_weekday"`
	LogSearchLimit     int           `mapstructure:"log_search_limit"`
	LeaderboardSize    int           `mapstructure:"leaderboard_size"`
	MatchupSeed        int64         `mapstructure:"matchup_seed"`
}

// OpenWeekday returns the configured signup open day.
func (l *LadderConfig) OpenWeekday() time.Weekday { return time.Weekday(l.SignupOpenWeekday % 7) }

// CloseWeekday returns the configured signup close day.
func (l *LadderConfig) CloseWeekday() time.Weekday { return time.Weekday(l.SignupCloseWeekday % 7) }

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MessagesConfig points at optional message catalog overrides.
type MessagesConfig struct {
	Dir string `mapstructure:"dir"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, LADDER_SWEEP_INTERVAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can provide everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poller_timeout", "10s")

	// Database defaults
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ladder")
	v.SetDefault("database.name", "ladder")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "ladder-bot:")

	// Ladder defaults
	v.SetDefault("ladder.sweep_interval", "30m")
	v.SetDefault("ladder.signup_tick", "5m")
	v.SetDefault("ladder.autoconfirm_after", "24h")
	v.SetDefault("ladder.host_switch_after", "72h")
	v.SetDefault("ladder.stale_delete_after", "144h")
	v.SetDefault("ladder.signup_open_weekday", int(time.Saturday))
	v.SetDefault("ladder.signup_close_weekday", int(time.Monday))
	v.SetDefault("ladder.log_search_limit", 500)
	v.SetDefault("ladder.leaderboard_size", 20)
	v.SetDefault("ladder.matchup_seed", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("messages.dir", "")
}

// Validate rejects settings the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Ladder.SweepInterval <= 0 || c.Ladder.SignupTick <= 0 {
		return fmt.Errorf("ladder intervals must be positive")
	}
	if c.Ladder.HostSwitchAfter >= c.Ladder.StaleDeleteAfter {
		return fmt.Errorf("ladder.host_switch_after (%s) must be shorter than ladder.stale_delete_after (%s)",
			c.Ladder.HostSwitchAfter, c.Ladder.StaleDeleteAfter)
	}
	return nil
}

// IsOwner checks if a user ID is in the owner list.
func (c *Config) IsOwner(userID int64) bool {
	return contains(c.Admin.IDs, userID)
}

// IsModerator reports whether a user may run moderator commands. Owners
// are always moderators.
func (c *Config) IsModerator(userID int64) bool {
	return c.IsOwner(userID) || contains(c.Admin.ModeratorIDs, userID)
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	return contains(c.Whitelist.Chats, chatID)
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
