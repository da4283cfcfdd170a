// README: Benchmark runner for a live API; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case statusPass:
			pass++
		case statusFail:
			fail++
		case statusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL       string
	DSN           string
	RedisAddr     string
	MigrationsDir string
	Strict        bool
	Timeout       time.Duration
	Concurrency   int
	Duration      time.Duration

	AdminUser, AdminPass       string
	CustomerUser, CustomerPass string
	DriverUser, DriverPass     string
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("CAB_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("CAB_DB_DSN"), "Postgres DSN (empty skips DB checks)")
	flag.StringVar(&cfg.RedisAddr, "redis", os.Getenv("CAB_REDIS_ADDR"), "Redis address (empty skips Redis checks)")
	flag.StringVar(&cfg.MigrationsDir, "migrations", envOrDefault("CAB_BENCH_MIGRATIONS", "migrations"), "Migrations directory")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("CAB_BENCH_STRICT", false), "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("CAB_BENCH_TIMEOUT", 60*time.Second), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("CAB_BENCH_CONCURRENCY", 20), "Concurrency for race and perf checks")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("CAB_BENCH_DURATION", 10*time.Second), "Duration for perf checks")
	flag.StringVar(&cfg.AdminUser, "admin-user", "admin", "Admin username (demo seed)")
	flag.StringVar(&cfg.AdminPass, "admin-pass", "admin123", "Admin password")
	flag.StringVar(&cfg.CustomerUser, "customer-user", "customer1", "Customer username")
	flag.StringVar(&cfg.CustomerPass, "customer-pass", "customer123", "Customer password")
	flag.StringVar(&cfg.DriverUser, "driver-user", "driver1", "Driver username")
	flag.StringVar(&cfg.DriverPass, "driver-pass", "driver123", "Driver password")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		if n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
