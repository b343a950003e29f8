package devicemonitor

import (
	"fmt"
	"io"
	"time"

	yaml "gopkg.in/yaml.v2"
)

const (
	DispatcherSimulated string = "simulated"
	DispatcherMessaging string = "messaging"
)

const DefaultExecutionDelay time.Duration = 2 * time.Second

type CommandsConfig struct {
	Dispatcher     string        `yaml:"dispatcher"`
	ExecutionDelay time.Duration `yaml:"executionDelay"`
}

type Config struct {
	Commands CommandsConfig `yaml:"commands"`
}

func DefaultConfig() *Config {
	return &Config{
		Commands: CommandsConfig{
			Dispatcher:     DispatcherSimulated,
			ExecutionDelay: DefaultExecutionDelay,
		},
	}
}

// LoadConfiguration reads the commands section of a configuration file. Settings missing
// from the file keep their defaults.
func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, err
	}

	switch cfg.Commands.Dispatcher {
	case "":
		cfg.Commands.Dispatcher = DispatcherSimulated
	case DispatcherSimulated, DispatcherMessaging:
	default:
		return nil, fmt.Errorf("unknown command dispatcher %q", cfg.Commands.Dispatcher)
	}

	if cfg.Commands.ExecutionDelay <= 0 {
		cfg.Commands.ExecutionDelay = DefaultExecutionDelay
	}

	return cfg, nil
}
