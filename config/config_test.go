package config

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Username: "test_user",
			Password: "test_password",
		},
		Booking: BookingConfig{
			ArticleID: "2948",
			PartySize: 1,
			Timeout:   30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "missing username",
			mutate:  func(cfg *Config) { cfg.Auth.Username = "" },
			wantErr: true,
		},
		{
			name:    "missing password",
			mutate:  func(cfg *Config) { cfg.Auth.Password = "" },
			wantErr: true,
		},
		{
			name:    "zero party size",
			mutate:  func(cfg *Config) { cfg.Booking.PartySize = 0 },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			mutate:  func(cfg *Config) { cfg.Booking.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid logging level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid logging format",
			mutate:  func(cfg *Config) { cfg.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VABA_AUTH_USERNAME", "env_user")
	t.Setenv("VABA_AUTH_PASSWORD", "env_password")

	// Point at a nonexistent explicit directory so no stray config.yaml
	// from the working directory is picked up.
	cfg, err := Load(t.TempDir() + "/missing.yaml")
	if err == nil {
		t.Fatalf("expected error for explicit missing config file")
	}

	// Without an explicit path the missing file is tolerated and the
	// environment supplies the credentials.
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Auth.Username != "env_user" {
		t.Errorf("username = %q, want %q", cfg.Auth.Username, "env_user")
	}
	if cfg.Booking.ArticleID != "2948" {
		t.Errorf("article_id default = %q, want %q", cfg.Booking.ArticleID, "2948")
	}
	if cfg.Booking.Timeout != 30 {
		t.Errorf("timeout default = %d, want 30", cfg.Booking.Timeout)
	}
}
