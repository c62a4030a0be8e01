package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/jfrconv"
)

type Config struct {
	// TopCount is the default size of hot function reports.
	TopCount int `yaml:"top_count"`
	// Channel picks the cost channel reports rank by. Empty means the
	// profile's default sample type.
	Channel string `yaml:"channel"`
	// Event is the JFR event kind extracted from recordings.
	Event string `yaml:"event"`
	// Objdump overrides the disassembler binary, e.g. for cross
	// compiled targets.
	Objdump string `yaml:"objdump"`
	// Sysroot is prepended to source paths found in debug info.
	Sysroot string `yaml:"sysroot"`

	MaxDepth   int     `yaml:"max_depth"`
	MinPercent float64 `yaml:"min_percent"`
}

func (c *Config) fillDefault() {
	if c.TopCount == 0 {
		c.TopCount = 10
	}
	if c.Event == "" {
		c.Event = jfrconv.EventCPU
	}
	if c.Objdump == "" {
		c.Objdump = "objdump"
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 8
	}
	if c.MinPercent == 0 {
		c.MinPercent = 0.5
	}
}

func LoadConfig(configPath string) (*Config, error) {
	var conf Config
	if configPath == "" {
		conf.fillDefault()
		return &conf, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("can't open config file: %s", configPath)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't parse config: %s, with error: %w", configPath, err)
	}

	conf.fillDefault()
	return &conf, nil
}
