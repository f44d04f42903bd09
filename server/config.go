package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"elo-ledger/server/elo"
)

const (
	backendFile     = "file"
	backendPostgres = "postgres"
)

// Config is read from the environment after .env is loaded.
type Config struct {
	Port           string         `env:"PORT"              envDefault:"8080"`
	StorageBackend string         `env:"STORAGE_BACKEND"   envDefault:"file"`
	StorageRoot    string         `env:"STORAGE_ROOT"      envDefault:"./database"`
	DatabaseURL    string         `env:"DATABASE_URL"`
	AutoMigrate    bool           `env:"AUTO_MIGRATE"`
	StartRating    float64        `env:"ELO_START_RATING"  envDefault:"1200"`
	KFactors       map[string]int `env:"ELO_K_FACTORS"     envSeparator:"," envKeyValSeparator:"="`
	DefaultK       int            `env:"ELO_DEFAULT_K"     envDefault:"40"`
	VeteranK       int            `env:"ELO_VETERAN_K"     envDefault:"20"`
	VeteranGames   int            `env:"ELO_VETERAN_GAMES" envDefault:"20"`
	Debug          bool           `env:"DEBUG"`
	UseColor       bool           `env:"USE_COLOR"         envDefault:"true"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	switch cfg.StorageBackend {
	case backendFile:
		if strings.TrimSpace(cfg.StorageRoot) == "" {
			return cfg, fmt.Errorf("STORAGE_ROOT is required for the file backend")
		}
	case backendPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return cfg, fmt.Errorf("STORAGE_BACKEND %q must be %q or %q", cfg.StorageBackend, backendFile, backendPostgres)
	}
	if cfg.StartRating <= 0 {
		return cfg, fmt.Errorf("ELO_START_RATING must be positive, got %v", cfg.StartRating)
	}
	return cfg, nil
}

// Policy builds the K-factor policy; ELO_K_FACTORS entries override the
// built-in per-game table.
func (c Config) Policy() elo.Policy {
	p := elo.DefaultPolicy().WithOverrides(c.KFactors)
	p.Default = c.DefaultK
	p.VeteranK = c.VeteranK
	p.VeteranAt = c.VeteranGames
	return p
}
