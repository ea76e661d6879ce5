package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dispatch modes and device backends accepted in the config file.
const (
	ModeHost        = "host"
	ModeAccelerator = "accelerator"

	BackendAuto    = "auto"
	BackendHostSim = "hostsim"
	BackendNone    = "none"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Dispatch struct {
		Mode string `yaml:"mode"`
		MinM int    `yaml:"minM"`
		MinN int    `yaml:"minN"`
		MinK int    `yaml:"minK"`
	} `yaml:"dispatch"`
	Device struct {
		Backend string `yaml:"backend"`
	} `yaml:"device"`
}

// Default returns the configuration used when no config file is present:
// info logging, host-only dispatch, automatic backend probing.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Logger.Verbosity == "" {
		c.Logger.Verbosity = "info"
	}
	if c.Dispatch.Mode == "" {
		c.Dispatch.Mode = ModeHost
	}
	if c.Device.Backend == "" {
		c.Device.Backend = BackendAuto
	}
}

func (c *Config) validate() error {
	switch c.Dispatch.Mode {
	case ModeHost, ModeAccelerator:
	default:
		return fmt.Errorf("config: unknown dispatch mode %q", c.Dispatch.Mode)
	}
	switch c.Device.Backend {
	case BackendAuto, BackendHostSim, BackendNone:
	default:
		return fmt.Errorf("config: unknown device backend %q", c.Device.Backend)
	}
	if c.Dispatch.MinM < 0 || c.Dispatch.MinN < 0 || c.Dispatch.MinK < 0 {
		return fmt.Errorf("config: negative dispatch thresholds (%d, %d, %d)",
			c.Dispatch.MinM, c.Dispatch.MinN, c.Dispatch.MinK)
	}
	return nil
}
