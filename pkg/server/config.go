package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/courierchat/courier/pkg/protocol"
)

// ServerConfig holds the resolved runtime configuration
type ServerConfig struct {
	TCPPort                  int
	HTTPPort                 int // negative disables the WebSocket/metrics listener; 0 picks a random port
	LogFile                  string
	DeliveryInterval         time.Duration
	MaxFrameSize             uint32
	ShutdownOnLastDisconnect bool
}

// DefaultConfig returns default server configuration. The 30 second
// delivery interval and shutdown-on-last-disconnect policy follow the
// original operational behavior; both are configurable.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		TCPPort:                  8888,
		HTTPPort:                 8889,
		LogFile:                  "courier.log",
		DeliveryInterval:         30 * time.Second,
		MaxFrameSize:             protocol.MaxFrameSize,
		ShutdownOnLastDisconnect: true,
	}
}

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server   ServerSection   `toml:"server"`
	Delivery DeliverySection `toml:"delivery"`
	Limits   LimitsSection   `toml:"limits"`
}

type ServerSection struct {
	TCPPort  int    `toml:"tcp_port" validate:"gte=0,lte=65535"`
	HTTPPort int    `toml:"http_port" validate:"gte=-1,lte=65535"`
	LogFile  string `toml:"log_file"`
}

type DeliverySection struct {
	IntervalSeconds          int  `toml:"interval_seconds" validate:"gte=1"`
	ShutdownOnLastDisconnect bool `toml:"shutdown_on_last_disconnect"`
}

type LimitsSection struct {
	MaxFrameSize uint32 `toml:"max_frame_size" validate:"gte=1024"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	defaults := DefaultConfig()
	return TOMLConfig{
		Server: ServerSection{
			TCPPort:  defaults.TCPPort,
			HTTPPort: defaults.HTTPPort,
			LogFile:  defaults.LogFile,
		},
		Delivery: DeliverySection{
			IntervalSeconds:          int(defaults.DeliveryInterval / time.Second),
			ShutdownOnLastDisconnect: defaults.ShutdownOnLastDisconnect,
		},
		Limits: LimitsSection{
			MaxFrameSize: defaults.MaxFrameSize,
		},
	}
}

// envOverrides are applied on top of the config file. Pointer fields
// distinguish "unset" from an explicit zero.
type envOverrides struct {
	TCPPort                  *int    `envconfig:"TCP_PORT"`
	HTTPPort                 *int    `envconfig:"HTTP_PORT"`
	LogFile                  *string `envconfig:"LOG_FILE"`
	DeliveryIntervalSeconds  *int    `envconfig:"DELIVERY_INTERVAL_SECONDS"`
	ShutdownOnLastDisconnect *bool   `envconfig:"SHUTDOWN_ON_LAST_DISCONNECT"`
}

var validate = validator.New()

// LoadConfig loads configuration from a TOML file, creating a default
// file if none exists, then applies COURIER_* environment overrides
// and validates the result.
func LoadConfig(path string) (TOMLConfig, error) {
	config := DefaultTOMLConfig()

	resolved, err := expandPath(path)
	if err != nil {
		return config, err
	}

	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		if err := writeDefaultConfig(resolved, config); err != nil {
			return config, fmt.Errorf("failed to write default config: %w", err)
		}
	} else if _, err := toml.DecodeFile(resolved, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("courier", &env); err != nil {
		return config, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	applyEnvOverrides(&config, env)

	if err := validate.Struct(config); err != nil {
		return config, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *TOMLConfig, env envOverrides) {
	if env.TCPPort != nil {
		config.Server.TCPPort = *env.TCPPort
	}
	if env.HTTPPort != nil {
		config.Server.HTTPPort = *env.HTTPPort
	}
	if env.LogFile != nil {
		config.Server.LogFile = *env.LogFile
	}
	if env.DeliveryIntervalSeconds != nil {
		config.Delivery.IntervalSeconds = *env.DeliveryIntervalSeconds
	}
	if env.ShutdownOnLastDisconnect != nil {
		config.Delivery.ShutdownOnLastDisconnect = *env.ShutdownOnLastDisconnect
	}
}

// ToServerConfig converts the file representation to runtime config
func (c TOMLConfig) ToServerConfig() ServerConfig {
	return ServerConfig{
		TCPPort:                  c.Server.TCPPort,
		HTTPPort:                 c.Server.HTTPPort,
		LogFile:                  c.Server.LogFile,
		DeliveryInterval:         time.Duration(c.Delivery.IntervalSeconds) * time.Second,
		MaxFrameSize:             c.Limits.MaxFrameSize,
		ShutdownOnLastDisconnect: c.Delivery.ShutdownOnLastDisconnect,
	}
}

func writeDefaultConfig(path string, config TOMLConfig) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(config)
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
