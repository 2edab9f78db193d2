package myconfig

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	BackendAuto      = "auto"
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendDatastore = "datastore"
)

type Config struct {
	Port               string   `env:"PORT" envDefault:"8080"`
	GoogleCloudProject string   `env:"GOOGLE_CLOUD_PROJECT"`
	StoreBackend       string   `env:"CART_STORE_BACKEND" envDefault:"auto"`
	SQLitePath         string   `env:"CART_SQLITE_PATH" envDefault:"cart.db"`
	SlotKey            string   `env:"CART_SLOT_KEY" envDefault:"@goMarketplace:products"`
	AllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{}
	err := env.Parse(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	err = cfg.validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ResolvedBackend turns "auto" into a concrete backend name.
func (c Config) ResolvedBackend() string {
	if c.StoreBackend != BackendAuto && c.StoreBackend != "" {
		return c.StoreBackend
	}
	if c.GoogleCloudProject != "" {
		return BackendDatastore
	}
	return BackendMemory
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case "", BackendAuto, BackendMemory, BackendSQLite:
	case BackendDatastore:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("store backend %s requires GOOGLE_CLOUD_PROJECT", BackendDatastore)
		}
	default:
		return fmt.Errorf("unsupported store backend %q", c.StoreBackend)
	}

	if strings.TrimSpace(c.SlotKey) == "" {
		return fmt.Errorf("CART_SLOT_KEY must not be empty")
	}
	if c.StoreBackend == BackendSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("store backend %s requires CART_SQLITE_PATH", BackendSQLite)
	}

	return nil
}
