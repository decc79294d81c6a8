package main

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/vectorway/shmq/logging"
	"github.com/vectorway/shmq/queue"
	"github.com/vectorway/shmq/region"
)

// Config is shmqctl's configuration: the queue it addresses plus logging.
type Config struct {
	// Logging configuration.
	Logging logging.Config `yaml:"logging"`
	// Queue describes the queue this invocation operates on.
	Queue QueueConfig `yaml:"queue"`
}

// QueueConfig mirrors queue.Options, decoded from YAML.
type QueueConfig struct {
	// Name is the bare queue name.
	Name string `yaml:"name"`
	// Dir overrides region.DefaultDir.
	Dir string `yaml:"dir"`
	// BytesCapacity is the total region size.
	BytesCapacity datasize.ByteSize `yaml:"bytes_capacity"`
	// DeleteOnDispose unlinks the region and semaphore on close.
	DeleteOnDispose bool `yaml:"delete_on_dispose"`
}

// DefaultConfig returns the configuration used when a key is absent from
// the YAML file.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Queue: QueueConfig{
			Dir:           region.DefaultDir,
			BytesCapacity: datasize.MB,
		},
	}
}

// LoadConfig loads the configuration from the given path.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}
	if cfg.Queue.Name == "" {
		return nil, fmt.Errorf("queue.name is required")
	}
	return cfg, nil
}

// Options converts the loaded configuration into queue.Options.
func (c *QueueConfig) Options() queue.Options {
	return queue.Options{
		Name:            c.Name,
		Dir:             c.Dir,
		BytesCapacity:   c.BytesCapacity,
		DeleteOnDispose: c.DeleteOnDispose,
	}
}
