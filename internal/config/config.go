package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// RedisURL enables the cross-process room lock. Empty means the
	// deployment runs a single instance and the in-process locker is used.
	RedisURL string `mapstructure:"REDIS_URL"`

	// Phase durations, in seconds.
	NightSeconds int `mapstructure:"NIGHT_SECONDS"`
	DaySeconds   int `mapstructure:"DAY_SECONDS"`
	VoteSeconds  int `mapstructure:"VOTE_SECONDS"`

	// SweepSeconds is the interval of the missed-deadline sweep.
	SweepSeconds int `mapstructure:"SWEEP_SECONDS"`

	// SheriffSeesDon controls whether a sheriff check reports the DON as
	// mafia. Deployments disagree on this rule, so it is explicit config.
	SheriffSeesDon bool `mapstructure:"SHERIFF_SEES_DON"`

	// BotGraceMs is how long mafia bots wait for the DON to act before
	// voting independently.
	BotGraceMs int `mapstructure:"BOT_GRACE_MS"`
}

var AppConfig *Config

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("NIGHT_SECONDS", 60)
	viper.SetDefault("DAY_SECONDS", 120)
	viper.SetDefault("VOTE_SECONDS", 60)
	viper.SetDefault("SWEEP_SECONDS", 15)
	viper.SetDefault("SHERIFF_SEES_DON", true)
	viper.SetDefault("BOT_GRACE_MS", 3000)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
}

// NightDuration returns the configured night phase length.
func (c *Config) NightDuration() time.Duration {
	return time.Duration(c.NightSeconds) * time.Second
}

// DayDuration returns the configured day phase length.
func (c *Config) DayDuration() time.Duration {
	return time.Duration(c.DaySeconds) * time.Second
}

// VoteDuration returns the configured vote phase length.
func (c *Config) VoteDuration() time.Duration {
	return time.Duration(c.VoteSeconds) * time.Second
}
