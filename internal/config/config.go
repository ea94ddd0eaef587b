/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
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

// Config holds all the configuration variables for the settlement service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                    string `mapstructure:"SERVER_PORT"`
	DatabaseURL                   string `mapstructure:"DATABASE_URL"`
	RedisURL                      string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix          string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                   string `mapstructure:"RABBITMQ_URL"`
	LedgerAPIBaseURL              string `mapstructure:"LEDGER_API_BASE_URL"`
	LedgerAPIKey                  string `mapstructure:"LEDGER_API_KEY"`
	AuthJWKSURL                   string `mapstructure:"AUTH_JWKS_URL"`
	InternalAPIKey                string `mapstructure:"INTERNAL_API_KEY"`
	ExpireRateLimitPerMinute      int    `mapstructure:"EXPIRE_RATE_LIMIT_PER_MINUTE"`
	MaintenanceIntervalSeconds    int    `mapstructure:"MAINTENANCE_INTERVAL_SECONDS"`
	ArchiveRetentionHours         int    `mapstructure:"ARCHIVE_RETENTION_HOURS"`
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "silkyway:rate_limit")
	viper.SetDefault("EXPIRE_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("MAINTENANCE_INTERVAL_SECONDS", 60)
	viper.SetDefault("ARCHIVE_RETENTION_HOURS", 168) // one week of settled records

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_API_BASE_URL")
	_ = viper.BindEnv("LEDGER_API_KEY")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "SETTLEMENT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("EXPIRE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("MAINTENANCE_INTERVAL_SECONDS")
	_ = viper.BindEnv("ARCHIVE_RETENTION_HOURS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.InternalAPIKey == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("SETTLEMENT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "silkyway:rate_limit"
	}

	if config.ExpireRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative expire rate limit configured; disabling throttle\" value=%d", config.ExpireRateLimitPerMinute)
		config.ExpireRateLimitPerMinute = 0
	}
	if config.MaintenanceIntervalSeconds <= 0 {
		config.MaintenanceIntervalSeconds = 60
	}
	if config.ArchiveRetentionHours < 0 {
		config.ArchiveRetentionHours = 0
	}

	return
}
