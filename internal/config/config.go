/**
 * @description
 * This package handles the configuration management for the billing-service.
 * It uses the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings for both the HTTP server and the expiry sweeper.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the billing-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	MidtransServerKey          string `mapstructure:"MIDTRANS_SERVER_KEY"`
	MidtransSnapBaseURL        string `mapstructure:"MIDTRANS_SNAP_BASE_URL"`
	MidtransAPIBaseURL         string `mapstructure:"MIDTRANS_API_BASE_URL"`
	CheckoutFinishURL          string `mapstructure:"CHECKOUT_FINISH_URL"`
	PaymentPendingMinutes      int    `mapstructure:"PAYMENT_PENDING_MINUTES"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	CheckoutRateLimitPerMinute int    `mapstructure:"CHECKOUT_RATE_LIMIT_PER_MINUTE"`
	SweepSchedule              string `mapstructure:"SWEEP_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8086")
	viper.SetDefault("MIDTRANS_SNAP_BASE_URL", "https://app.sandbox.midtrans.com")
	viper.SetDefault("MIDTRANS_API_BASE_URL", "https://api.sandbox.midtrans.com")
	viper.SetDefault("PAYMENT_PENDING_MINUTES", 15)
	viper.SetDefault("CHECKOUT_RATE_LIMIT_PER_MINUTE", 5)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("MIDTRANS_SERVER_KEY")
	_ = viper.BindEnv("MIDTRANS_SNAP_BASE_URL")
	_ = viper.BindEnv("MIDTRANS_API_BASE_URL")
	_ = viper.BindEnv("CHECKOUT_FINISH_URL")
	_ = viper.BindEnv("PAYMENT_PENDING_MINUTES")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("CHECKOUT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("SWEEP_SCHEDULE")

	err = viper.Unmarshal(&config)
	return
}
