package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type AuthProviderConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	AnonKey   string `mapstructure:"anon_key"`
	AdminKey  string `mapstructure:"admin_key"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type EmailConfig struct {
	From              string   `mapstructure:"from"`
	SMTPHost          string   `mapstructure:"smtp_host"`
	SMTPPort          int      `mapstructure:"smtp_port"`
	Username          string   `mapstructure:"username"`
	Password          string   `mapstructure:"password"`
	AlertRecipients   []string `mapstructure:"alert_recipients"`
	InviteURLTemplate string   `mapstructure:"invite_url_template"`
}

type Config struct {
	DatabaseURL        string             `mapstructure:"database_url"`
	ServerPort         string             `mapstructure:"server_port"`
	AppBaseURL         string             `mapstructure:"app_base_url"`
	InvitationTTLHours int                `mapstructure:"invitation_ttl_hours"`
	CORSAllowedOrigins []string           `mapstructure:"cors_allowed_origins"`
	AuthProvider       AuthProviderConfig `mapstructure:"auth_provider"`
	Email              EmailConfig        `mapstructure:"email"`
}

// InvitationTTL converts the configured validity window, defaulting to
// seven days.
func (c *Config) InvitationTTL() time.Duration {
	if c.InvitationTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.InvitationTTLHours) * time.Hour
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.AppBaseURL == "" {
		config.AppBaseURL = "http://localhost:3000"
	}
	if len(config.CORSAllowedOrigins) == 0 {
		config.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}

	if config.AuthProvider.BaseURL == "" {
		log.Fatal("auth_provider.base_url must be set in the config file")
	}
	if config.AuthProvider.AnonKey == "" || config.AuthProvider.AdminKey == "" {
		log.Fatal("auth_provider anon and admin keys must be set in the config file")
	}
	if config.AuthProvider.JWTSecret == "" {
		log.Fatal("auth_provider.jwt_secret must be set in the config file")
	}

	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}
	if config.Email.InviteURLTemplate == "" {
		config.Email.InviteURLTemplate = config.AppBaseURL + "/invitations/accept?token=%s"
	}

	return &config
}
