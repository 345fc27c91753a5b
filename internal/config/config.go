package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/graxinc/errutil"
)

var (
	ErrMissingToken = errors.New("DISCORD_TOKEN is required")
	ErrMissingAppID = errors.New("APP_ID is required")
)

type Config struct {
	Debug bool `env:"DEBUG"`

	Token      string `env:"DISCORD_TOKEN"`
	AppID      string `env:"APP_ID"`
	DevGuildID string `env:"DEV_GUILD_ID"`
	Intents    int    `env:"BOT_INTENTS" envDefault:"33283"`

	Prefix       string `env:"PREFIX" envDefault:"!"`
	SyncCommands bool   `env:"SYNC_COMMANDS" envDefault:"true"`

	DatabaseURL string `env:"DATABASE_URL"`
	CacheURL    string `env:"REDIS_URL"`

	WelcomeChannelID string `env:"WELCOME_CHANNEL_ID"`

	// SupportGuildID is the guild DM support tickets open in. Falls
	// back to DEV_GUILD_ID when unset.
	SupportGuildID string `env:"SUPPORT_GUILD_ID"`
	StaffRoleID    string `env:"STAFF_ROLE_ID"`
}

// SupportGuild resolves the guild support tickets are created in.
func (c *Config) SupportGuild() string {
	if c.SupportGuildID != "" {
		return c.SupportGuildID
	}
	return c.DevGuildID
}

// Load parses the environment into a Config and validates required values.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, errutil.With(err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.AppID == "" {
		return ErrMissingAppID
	}
	return nil
}
