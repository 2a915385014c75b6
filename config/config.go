package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load loads the configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Credentials are commonly supplied through the environment
	// (VABA_AUTH_USERNAME, VABA_AUTH_PASSWORD)
	v.SetEnvPrefix("VABA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env-backed keys that are explicitly bound
	v.BindEnv("auth.username")
	v.BindEnv("auth.password")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".vabactl"))
		}

		// Check /etc
		v.AddConfigPath("/etc/vabactl/")
	}

	// Read config file; a missing file is fine when the environment
	// carries the credentials
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Booking defaults
	v.SetDefault("booking.article_id", "2948")
	v.SetDefault("booking.party_size", 1)
	v.SetDefault("booking.timeout", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Auth.Username == "" {
		return fmt.Errorf("auth.username is required (or set VABA_AUTH_USERNAME)")
	}

	if cfg.Auth.Password == "" {
		return fmt.Errorf("auth.password is required (or set VABA_AUTH_PASSWORD)")
	}

	if cfg.Booking.PartySize < 1 {
		return fmt.Errorf("booking.party_size must be at least 1")
	}

	if cfg.Booking.Timeout < 1 {
		return fmt.Errorf("booking.timeout must be at least 1 second")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
