package config

// Config represents the complete configuration structure
type Config struct {
	Auth    AuthConfig    `mapstructure:"auth"`
	Booking BookingConfig `mapstructure:"booking"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AuthConfig holds the portal credentials
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// BookingConfig holds portal connection details and booking parameters
type BookingConfig struct {
	// URL overrides the portal endpoint; empty means the built-in default.
	URL       string `mapstructure:"url"`
	ArticleID string `mapstructure:"article_id"`
	PartySize int    `mapstructure:"party_size"`
	// Timeout is the HTTP timeout in seconds.
	Timeout int `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
