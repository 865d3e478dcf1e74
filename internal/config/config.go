package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PixelFly PixelFlyConfig `mapstructure:"pixelfly"`
	Delayed  DelayedConfig  `mapstructure:"delayed"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	AdminToken    string        `mapstructure:"admin_token"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PixelFlyConfig configures the outbound tracking endpoint. An empty APIKey
// leaves the entire server-side path inert: nothing is stored or sent.
type PixelFlyConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	EventLogging bool          `mapstructure:"event_logging"`
}

// DelayedConfig controls the delayed purchase queue: which payment methods
// get enrolled and which order statuses trigger the send.
type DelayedConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	PaymentMethods []string `mapstructure:"payment_methods"`
	FireOnStatuses []string `mapstructure:"fire_on_statuses"`
	BulkLimit      int      `mapstructure:"bulk_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("pixeltrack")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/pixeltrack")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PIXELTRACK")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/pixeltrack.db")

	viper.SetDefault("pixelfly.endpoint", "https://track.pixelfly.io/e")
	viper.SetDefault("pixelfly.timeout", 10*time.Second)
	viper.SetDefault("pixelfly.event_logging", false)

	viper.SetDefault("delayed.enabled", true)
	viper.SetDefault("delayed.payment_methods", []string{"cod"})
	viper.SetDefault("delayed.fire_on_statuses", []string{"processing", "completed"})
	viper.SetDefault("delayed.bulk_limit", 100)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
