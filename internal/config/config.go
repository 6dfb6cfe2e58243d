/**
 * @description
 * This package handles configuration management for the sharepod service. It uses
 * the Viper library to read configuration from environment variables (with an
 * optional .env file), providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the sharepod service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	PodEventExchange          string `mapstructure:"POD_EVENT_EXCHANGE"`
	StripeAPIBaseURL          string `mapstructure:"STRIPE_API_BASE_URL"`
	StripeSecretKey           string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret       string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	JWTSecret                 string `mapstructure:"JWT_SECRET"`
	JWTIssuer                 string `mapstructure:"JWT_ISSUER"`
	Currency                  string `mapstructure:"CURRENCY"`
	JoinCodeLength            int    `mapstructure:"JOIN_CODE_LENGTH"`
	JoinCodeMaxAttempts       int    `mapstructure:"JOIN_CODE_MAX_ATTEMPTS"`
	JoinRateLimitPerMinute    int    `mapstructure:"JOIN_RATE_LIMIT_PER_MINUTE"`
	SessionRateLimitPerMinute int    `mapstructure:"SESSION_RATE_LIMIT_PER_MINUTE"`
	WebhookToleranceSeconds   int    `mapstructure:"WEBHOOK_TOLERANCE_SECONDS"`
	ProcessorTimeoutSeconds   int    `mapstructure:"PROCESSOR_TIMEOUT_SECONDS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "sharepod:rate_limit")
	viper.SetDefault("POD_EVENT_EXCHANGE", "sharepod.events")
	viper.SetDefault("STRIPE_API_BASE_URL", "https://api.stripe.com")
	viper.SetDefault("JWT_ISSUER", "sharepod")
	viper.SetDefault("CURRENCY", "GBP")
	viper.SetDefault("JOIN_CODE_LENGTH", 6)
	viper.SetDefault("JOIN_CODE_MAX_ATTEMPTS", 5)
	viper.SetDefault("JOIN_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("SESSION_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("WEBHOOK_TOLERANCE_SECONDS", 300)
	viper.SetDefault("PROCESSOR_TIMEOUT_SECONDS", 15)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("POD_EVENT_EXCHANGE")
	_ = viper.BindEnv("STRIPE_API_BASE_URL")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET", "STRIPE_WEBHOOK_SECRET", "WEBHOOK_SIGNING_SECRET")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("JOIN_CODE_LENGTH")
	_ = viper.BindEnv("JOIN_CODE_MAX_ATTEMPTS")
	_ = viper.BindEnv("JOIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("SESSION_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("WEBHOOK_TOLERANCE_SECONDS")
	_ = viper.BindEnv("PROCESSOR_TIMEOUT_SECONDS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.Currency = strings.ToUpper(strings.TrimSpace(config.Currency))
	if config.Currency == "" {
		config.Currency = "GBP"
	}
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "sharepod:rate_limit"
	}

	if config.JoinCodeLength <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive join code length configured; using default\" length=%d", config.JoinCodeLength)
		config.JoinCodeLength = 6
	}
	if config.JoinCodeMaxAttempts <= 0 {
		config.JoinCodeMaxAttempts = 5
	}
	if config.JoinRateLimitPerMinute < 0 {
		config.JoinRateLimitPerMinute = 0
	}
	if config.SessionRateLimitPerMinute < 0 {
		config.SessionRateLimitPerMinute = 0
	}
	if config.WebhookToleranceSeconds <= 0 {
		config.WebhookToleranceSeconds = 300
	}
	if config.ProcessorTimeoutSeconds <= 0 {
		config.ProcessorTimeoutSeconds = 15
	}

	return
}
