package main

import (
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != "8080" || cfg.StorageBackend != backendFile || cfg.StorageRoot != "./database" || cfg.StartRating != 1200 {
		t.Fatalf("defaults = %+v", cfg)
	}
	p := cfg.Policy()
	if p.KFactor("chess", 0) != 40 || p.KFactor("backgammon", 0) != 10 || p.KFactor("chess", 20) != 20 {
		t.Fatalf("policy = %+v", p)
	}
}

func TestLoadConfigKFactorOverrides(t *testing.T) {
	t.Setenv("ELO_K_FACTORS", "go=16,chess=32")
	t.Setenv("ELO_DEFAULT_K", "24")
	t.Setenv("ELO_VETERAN_GAMES", "5")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	p := cfg.Policy()
	if p.KFactor("go", 0) != 16 || p.KFactor("chess", 0) != 32 || p.KFactor("darts", 0) != 24 {
		t.Fatalf("base K: go=%d chess=%d darts=%d", p.KFactor("go", 0), p.KFactor("chess", 0), p.KFactor("darts", 0))
	}
	if p.KFactor("chess", 5) != 20 || p.KFactor("go", 5) != 16 {
		t.Fatalf("veteran K: chess=%d go=%d", p.KFactor("chess", 5), p.KFactor("go", 5))
	}
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad backend":     {"STORAGE_BACKEND": "mongo"},
		"postgres no dsn": {"STORAGE_BACKEND": "postgres", "DATABASE_URL": ""},
		"bad k type":      {"ELO_DEFAULT_K": "forty"},
		"negative rating": {"ELO_START_RATING": "-5"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			if _, err := loadConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	t.Setenv("ELO_VETERAN_K", "x")
	_, err := loadConfig()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
