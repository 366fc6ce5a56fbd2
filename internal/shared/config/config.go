package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Payment PaymentConfig `mapstructure:"payment"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// PaymentConfig holds gateway configuration.
type PaymentConfig struct {
	// DefaultProvider selects the gateway used when a request does not name one.
	DefaultProvider string         `mapstructure:"default_provider"`
	Razorpay        RazorpayConfig `mapstructure:"razorpay"`
	Stripe          StripeConfig   `mapstructure:"stripe"`
}

// RazorpayConfig holds Razorpay gateway configuration.
type RazorpayConfig struct {
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
	// Account is the optional sub-account forwarded as the X-Razorpay-Account header.
	Account     string `mapstructure:"account"`
	AutoCapture bool   `mapstructure:"auto_capture"`
	// Expiry periods are in minutes. Values below the gateway minimums
	// (12 automatic, 7200 manual) are clamped at order creation.
	AutomaticExpiryPeriod int    `mapstructure:"automatic_expiry_period"`
	ManualExpiryPeriod    int    `mapstructure:"manual_expiry_period"`
	RefundSpeed           string `mapstructure:"refund_speed"`
	WebhookSecret         string `mapstructure:"webhook_secret"`
}

// Enabled reports whether the Razorpay gateway is configured.
func (c *RazorpayConfig) Enabled() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

// StripeConfig holds Stripe gateway configuration.
type StripeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	AutoCapture   bool   `mapstructure:"auto_capture"`
}

// Enabled reports whether the Stripe gateway is configured.
func (c *StripeConfig) Enabled() bool {
	return c.APIKey != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/velocart-payments")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("PAYMENTS")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if secret := os.Getenv("PAYMENTS_RAZORPAY_KEY_SECRET"); secret != "" {
		cfg.Payment.Razorpay.KeySecret = secret
	}
	if secret := os.Getenv("PAYMENTS_RAZORPAY_WEBHOOK_SECRET"); secret != "" {
		cfg.Payment.Razorpay.WebhookSecret = secret
	}
	if key := os.Getenv("PAYMENTS_STRIPE_API_KEY"); key != "" {
		cfg.Payment.Stripe.APIKey = key
	}
	if secret := os.Getenv("PAYMENTS_STRIPE_WEBHOOK_SECRET"); secret != "" {
		cfg.Payment.Stripe.WebhookSecret = secret
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	// Payment defaults
	v.SetDefault("payment.default_provider", "razorpay")
	v.SetDefault("payment.razorpay.auto_capture", false)
	v.SetDefault("payment.razorpay.automatic_expiry_period", 20)
	v.SetDefault("payment.razorpay.manual_expiry_period", 10)
	v.SetDefault("payment.razorpay.refund_speed", "normal")
	v.SetDefault("payment.stripe.auto_capture", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
