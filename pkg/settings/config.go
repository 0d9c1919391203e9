package settings

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server Server `mapstructure:"server" yaml:"server"`
	Logger Logger `mapstructure:"logger" yaml:"logger"`
	Queue  Queue  `mapstructure:"queue" yaml:"queue"`
}

// Server is the configuration for the server
type Server struct {
	Mode            string        `mapstructure:"mode" yaml:"mode" validate:"omitempty,oneof=debug release test"`
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0s"`
}

// Logger is the configuration for the logger
type Logger struct {
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	FileLogName string `mapstructure:"file_log_name" yaml:"file_log_name"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`   // Days
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size" validate:"gte=0"` // Megabytes
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// Queue is the configuration for the expiring queue
type Queue struct {
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0s"`
	ClockResolution time.Duration `mapstructure:"clock_resolution" yaml:"clock_resolution" validate:"gte=0s"` // 0 uses the system clock
	InitialItems    []string      `mapstructure:"initial_items" yaml:"initial_items" validate:"dive,required"`
}

// Default returns the configuration used for keys absent from a config file.
func Default() Config {
	return Config{
		Server: Server{
			Mode:            "release",
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 5 * time.Second,
		},
		Logger: Logger{
			LogLevel:   "info",
			MaxBackups: 3,
			MaxAge:     7,
			MaxSize:    100,
			Compress:   true,
		},
		Queue: Queue{
			TTL: time.Hour,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints declared in struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
