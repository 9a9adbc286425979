package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/john/commander/internal/dispatch"
	"github.com/john/commander/internal/format"
	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/source"
)

// Config holds the application configuration
type Config struct {
	Twitch   TwitchConfig    `yaml:"twitch"`
	Bot      BotConfig       `yaml:"bot"`
	Sources  []source.Config `yaml:"sources"`
	Health   HealthConfig    `yaml:"health"`
	Archive  ArchiveConfig   `yaml:"archive"`
	S3       S3Config        `yaml:"s3"`
	Uploader UploaderConfig  `yaml:"uploader"`
	Log      logging.Config  `yaml:"log"`
}

// TwitchConfig holds the chat identity and room
type TwitchConfig struct {
	Username string `yaml:"username"`
	OAuth    string `yaml:"oauth"`
	Host     string `yaml:"host"` // IRC address override, e.g. "irc.chat.twitch.tv:6697"
	Room     string `yaml:"room"`
	Nickname string `yaml:"nickname"`
}

// BotConfig holds command and reply settings
type BotConfig struct {
	CommandPrefix   string        `yaml:"command_prefix"`
	MessageInterval time.Duration `yaml:"message_interval"`
	Layout          format.Layout `yaml:"layout"`
	MaxItems        int           `yaml:"max_items"`
	Game            string        `yaml:"game"`
	GameShort       string        `yaml:"game_short"`
	Timezone        string        `yaml:"timezone"`
	TimezoneLabel   string        `yaml:"timezone_label"`
}

// HealthConfig holds the health/metrics server settings
type HealthConfig struct {
	Addr string `yaml:"addr"`
}

// ArchiveConfig holds listing snapshot archive settings
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	OutputDir       string `yaml:"output_dir"`
	RotateMinutes   int    `yaml:"rotate_minutes"`
	RotateMegabytes int    `yaml:"rotate_megabytes"`
	BufferSize      int    `yaml:"buffer_size"`
}

// S3Config holds S3 upload configuration
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	RoleARN         string `yaml:"role_arn"`          // IAM role ARN for OIDC authentication
	TokenSocket     string `yaml:"token_socket"`      // OIDC token socket, platform default if empty
	AccessKeyID     string `yaml:"access_key_id"`     // Legacy: static credentials
	SecretAccessKey string `yaml:"secret_access_key"` // Legacy: static credentials
	Endpoint        string `yaml:"endpoint"`          // For S3-compatible services
}

// UploaderConfig holds uploader configuration
type UploaderConfig struct {
	DeleteAfterUpload bool `yaml:"delete_after_upload"`
	MaxRetries        int  `yaml:"max_retries"`
}

// Location resolves the reference time zone for the now command.
func (b BotConfig) Location() (*time.Location, error) {
	return time.LoadLocation(b.Timezone)
}

// Load loads configuration from a YAML file (optional) and the environment.
// A .env file in the working directory is read first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// environment-only configuration
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"TWITCH_USERNAME", &cfg.Twitch.Username},
		{"TWITCH_OAUTH", &cfg.Twitch.OAuth},
		{"TWITCH_HOST", &cfg.Twitch.Host},
		{"TWITCH_ROOM", &cfg.Twitch.Room},
		{"BOT_NICKNAME", &cfg.Twitch.Nickname},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"HEALTH_ADDR", &cfg.Health.Addr},
		{"AWS_ROLE_ARN", &cfg.S3.RoleARN},
		{"S3_ACCESS_KEY_ID", &cfg.S3.AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", &cfg.S3.SecretAccessKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

func applyDefaults(cfg *Config) {
	// Senders arrive as lowercase logins, so the self filter compares lowercase.
	if cfg.Twitch.Nickname == "" {
		cfg.Twitch.Nickname = cfg.Twitch.Username
	}
	cfg.Twitch.Nickname = strings.ToLower(strings.TrimSpace(cfg.Twitch.Nickname))
	if cfg.Bot.CommandPrefix == "" {
		cfg.Bot.CommandPrefix = dispatch.DefaultPrefix
	}
	if cfg.Bot.MessageInterval == 0 {
		cfg.Bot.MessageInterval = dispatch.MinInterval
	}
	if cfg.Bot.Layout == "" {
		cfg.Bot.Layout = format.LayoutPerItem
	}
	if cfg.Bot.MaxItems == 0 {
		cfg.Bot.MaxItems = format.DefaultMaxItems
	}
	if cfg.Bot.Game == "" {
		cfg.Bot.Game = format.DefaultGame
	}
	if cfg.Bot.GameShort == "" {
		cfg.Bot.GameShort = format.DefaultGameShort
	}
	if cfg.Bot.Timezone == "" {
		cfg.Bot.Timezone = format.DefaultZone
	}
	if cfg.Bot.TimezoneLabel == "" {
		cfg.Bot.TimezoneLabel = format.DefaultZoneLabel
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = source.Defaults()
	}
	for i := range cfg.Sources {
		if cfg.Sources[i].Timeout == 0 {
			cfg.Sources[i].Timeout = source.DefaultTimeout
		}
		if cfg.Sources[i].ChannelField == "" {
			cfg.Sources[i].ChannelField = "channel"
		}
		if cfg.Sources[i].Label == "" {
			cfg.Sources[i].Label = cfg.Sources[i].ID
		}
	}
	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":8080"
	}
	if cfg.Archive.OutputDir == "" {
		cfg.Archive.OutputDir = "./data"
	}
	if cfg.Archive.BufferSize == 0 {
		cfg.Archive.BufferSize = 10
	}
	if cfg.Archive.RotateMinutes == 0 {
		cfg.Archive.RotateMinutes = 60
	}
	if cfg.Archive.RotateMegabytes == 0 {
		cfg.Archive.RotateMegabytes = 100
	}
	if cfg.Uploader.MaxRetries == 0 {
		cfg.Uploader.MaxRetries = 3
	}
}

// Validate checks required fields. A missing identity value is fatal at startup.
func (c *Config) Validate() error {
	if c.Twitch.Username == "" {
		return fmt.Errorf("twitch.username is required (or set TWITCH_USERNAME env var)")
	}
	if c.Twitch.OAuth == "" {
		return fmt.Errorf("twitch.oauth is required (or set TWITCH_OAUTH env var)")
	}
	if c.Twitch.Room == "" {
		return fmt.Errorf("twitch.room is required (or set TWITCH_ROOM env var)")
	}
	if c.Bot.MessageInterval < dispatch.MinInterval {
		return fmt.Errorf("bot.message_interval must be at least %s", dispatch.MinInterval)
	}
	if !c.Bot.Layout.Valid() {
		return fmt.Errorf("bot.layout %q is not one of %q, %q", c.Bot.Layout, format.LayoutPerItem, format.LayoutCombined)
	}
	if c.Bot.MaxItems < 0 {
		return fmt.Errorf("bot.max_items must be positive")
	}
	if _, err := c.Bot.Location(); err != nil {
		return fmt.Errorf("bot.timezone: %w", err)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("sources[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sources[%d].id %q is duplicated", i, s.ID)
		}
		seen[s.ID] = true
		if s.URL == "" {
			return fmt.Errorf("sources[%d].url is required", i)
		}
		if s.ListingField == "" {
			return fmt.Errorf("sources[%d].listing_field is required", i)
		}
	}

	if !c.Archive.Enabled {
		return nil
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when archive is enabled")
	}
	if c.S3.Region == "" {
		return fmt.Errorf("s3.region is required when archive is enabled")
	}
	// Either OIDC role or static credentials required
	if c.S3.RoleARN == "" && c.S3.AccessKeyID == "" {
		return fmt.Errorf("either s3.role_arn (OIDC) or s3.access_key_id (legacy) is required")
	}
	// If using static credentials, both key and secret are required
	if c.S3.AccessKeyID != "" && c.S3.SecretAccessKey == "" {
		return fmt.Errorf("s3.secret_access_key is required when using access_key_id")
	}
	return nil
}
