package config

import (
	"testing"
	"time"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{"CAB_JWT_SECRET": "s3cret"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Store != StorePostgres {
		t.Errorf("store = %q", cfg.Store)
	}
	if cfg.Fare.Base != 50 || cfg.Fare.PerKm != 15 || cfg.Fare.Currency != "INR" {
		t.Errorf("fare = %+v", cfg.Fare)
	}
	if cfg.Allocation.Strategy != StrategyManual || cfg.Allocation.AutoAssignEnabled() {
		t.Errorf("allocation = %+v", cfg.Allocation)
	}
	if cfg.Auth.JWTTTL != 24*time.Hour {
		t.Errorf("ttl = %v", cfg.Auth.JWTTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"CAB_JWT_SECRET":          "s3cret",
		"CAB_STORE":               "memory",
		"CAB_FARE_BASE":           "40",
		"CAB_FARE_PER_KM":         "12.5",
		"CAB_ALLOCATION_STRATEGY": "first_available",
		"CAB_JWT_TTL":             "90m",
		"CAB_SEED_DEMO":           "true",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.Fare.Base != 40 || cfg.Fare.PerKm != 12.5 {
		t.Errorf("unexpected cfg %+v", cfg)
	}
	if !cfg.Allocation.AutoAssignEnabled() {
		t.Error("expected auto assignment enabled")
	}
	if cfg.Auth.JWTTTL != 90*time.Minute || !cfg.SeedDemo {
		t.Errorf("ttl=%v seed=%v", cfg.Auth.JWTTTL, cfg.SeedDemo)
	}
}

func TestLoadRejectsBadCombinations(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{}},
		{"firebase without project", map[string]string{"CAB_AUTH_PROVIDER": "firebase"}},
		{"unknown store", map[string]string{"CAB_JWT_SECRET": "x", "CAB_STORE": "sqlite"}},
		{"unknown strategy", map[string]string{"CAB_JWT_SECRET": "x", "CAB_ALLOCATION_STRATEGY": "nearest"}},
		{"zero pool", map[string]string{"CAB_JWT_SECRET": "x", "CAB_CANDIDATE_POOL": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CAB_JWT_SECRET", "")
			setEnv(t, tc.env)
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
