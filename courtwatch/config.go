package courtwatch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config configures the courtwatch service.
type Config struct {
	// DataDir is the root directory of the filesystem snapshot store.
	DataDir string `yaml:"data_dir"`
	// WarehousePath is the SQLite warehouse database path.
	WarehousePath string `yaml:"warehouse_path"`
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// LedgerLimit caps ledger/run listings on the query surfaces.
	LedgerLimit int `yaml:"ledger_limit"`
}

func (c *Config) defaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.WarehousePath == "" {
		c.WarehousePath = "db/warehouse.db"
	}
	if c.Listen == "" {
		c.Listen = ":8086"
	}
	if c.LedgerLimit <= 0 {
		c.LedgerLimit = 100
	}
}

func defaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// LoadConfig reads a YAML config file and fills defaults. An empty
// path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.defaults()
	return &c, nil
}
