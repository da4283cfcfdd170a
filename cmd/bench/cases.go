// README: Bench checks against a seeded API: lifecycle, illegal events, races, consistency and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"cabdispatch/internal/infra"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	tokens   map[string]string
	driverID int64
	cabID    int64
	// booking carried through the lifecycle checks
	bookingID int64
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		tokens: map[string]string{},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := infra.NewDB(ctx, r.cfg.DSN); err == nil {
			r.db = db
		} else {
			fmt.Printf("db: %v\n", err)
		}
	}
	if r.cfg.RedisAddr != "" {
		if client, err := infra.NewRedis(ctx, r.cfg.RedisAddr); err == nil {
			r.redis = client
		} else {
			fmt.Printf("redis: %v\n", err)
		}
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusSkip, Note: "dsn not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return fromErr(r.db.Ping(ctx))
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusSkip, Note: "redis not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return fromErr(r.redis.Ping(ctx).Err())
		}},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", "", nil, http.StatusOK, nil)
		}},

		{Name: "Auth: login admin", Run: loginCase("admin")},
		{Name: "Auth: login customer", Run: loginCase("customer")},
		{Name: "Auth: login driver", Run: loginCase("driver")},
		{Name: "Auth: no token -> 401", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/bookings", "", nil, http.StatusUnauthorized, nil)
		}},
		{Name: "Fleet: driver profile", Run: func(ctx context.Context, r *Runner) Result {
			var out struct {
				ID    int64  `json:"id"`
				CabID *int64 `json:"cab_id"`
			}
			res := r.expect(ctx, http.MethodGet, "/api/driver/profile", r.tokens["driver"], nil, http.StatusOK, &out)
			if res.Status != statusPass {
				return res
			}
			if out.CabID == nil {
				return Result{Status: statusFail, Note: "driver has no staffed cab"}
			}
			r.driverID, r.cabID = out.ID, *out.CabID
			res.Note = fmt.Sprintf("driver=%d cab=%d", r.driverID, r.cabID)
			return res
		}},

		{Name: "Booking: create", Run: func(ctx context.Context, r *Runner) Result {
			id, res := r.createBooking(ctx, 10)
			r.bookingID = id
			return res
		}},
		{Name: "Booking: create without pickup -> 400", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/bookings", r.tokens["customer"],
				map[string]any{"dropoff": "Airport", "distance_km": 3}, http.StatusBadRequest, nil)
		}},
		{Name: "Booking: assign", Run: func(ctx context.Context, r *Runner) Result {
			return r.assign(ctx, r.bookingID, http.StatusOK)
		}},
		{Name: "Booking: complete before start -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, r.tripPath(r.bookingID, "complete"), r.tokens["driver"], nil, http.StatusConflict, nil)
		}},
		{Name: "Booking: start", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, r.tripPath(r.bookingID, "start"), r.tokens["driver"], nil, http.StatusOK, nil)
		}},
		{Name: "Booking: cancel en_route -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", r.bookingID), r.tokens["customer"], nil, http.StatusConflict, nil)
		}},
		{Name: "Booking: complete", Run: func(ctx context.Context, r *Runner) Result {
			var out struct {
				FareFinal *struct {
					Amount float64 `json:"amount"`
				} `json:"fare_final"`
			}
			res := r.expect(ctx, http.MethodPost, r.tripPath(r.bookingID, "complete"), r.tokens["driver"], nil, http.StatusOK, &out)
			if res.Status == statusPass && out.FareFinal == nil {
				return Result{Status: statusFail, Note: "fare_final missing"}
			}
			return res
		}},
		{Name: "Booking: completed cannot start -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, r.tripPath(r.bookingID, "start"), r.tokens["driver"], nil, http.StatusConflict, nil)
		}},

		{Name: "Cancel: pending booking", Run: func(ctx context.Context, r *Runner) Result {
			id, res := r.createBooking(ctx, 4)
			if res.Status != statusPass {
				return res
			}
			if res = r.expect(ctx, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", id), r.tokens["customer"],
				map[string]string{"reason": "change of plans"}, http.StatusOK, nil); res.Status != statusPass {
				return res
			}
			return r.expect(ctx, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", id), r.tokens["customer"], nil, http.StatusConflict, nil)
		}},

		{Name: "Concurrency: assign same driver to many bookings", Run: concurrentAssign},
		{Name: "Consistency: on_trip matches active bookings", Run: checkConsistency},
		{Name: "Report: admin summary", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/admin/reports/summary", r.tokens["admin"], nil, http.StatusOK, nil)
		}},
		{Name: "Report: customer cannot read admin summary -> 403", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/admin/reports/summary", r.tokens["customer"], nil, http.StatusForbidden, nil)
		}},

		manualCase("Error: DB down -> 500", "stop Postgres and watch for 500 with a logged cause"),
		manualCase("Error: Redis down -> allocation falls back on commit checks", "stop Redis and auto-assign"),

		{Name: "Perf: create booking throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, "/api/bookings", r.tokens["customer"], map[string]any{
				"pickup": "MG Road", "dropoff": "Airport", "distance_km": 7.5,
			})
		}},
	}
}

func loginCase(who string) func(ctx context.Context, r *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		user, pass := r.cfg.AdminUser, r.cfg.AdminPass
		switch who {
		case "customer":
			user, pass = r.cfg.CustomerUser, r.cfg.CustomerPass
		case "driver":
			user, pass = r.cfg.DriverUser, r.cfg.DriverPass
		}
		var out struct {
			Token string `json:"token"`
		}
		res := r.expect(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{"username": user, "password": pass}, http.StatusOK, &out)
		if res.Status == statusPass {
			r.tokens[who] = out.Token
		}
		return res
	}
}

func (r *Runner) createBooking(ctx context.Context, km float64) (int64, Result) {
	var out struct {
		ID int64 `json:"id"`
	}
	res := r.expect(ctx, http.MethodPost, "/api/bookings", r.tokens["customer"], map[string]any{
		"pickup": "MG Road", "dropoff": "Airport", "distance_km": km,
	}, http.StatusCreated, &out)
	return out.ID, res
}

func (r *Runner) assign(ctx context.Context, id int64, want int) Result {
	return r.expect(ctx, http.MethodPost, fmt.Sprintf("/api/admin/bookings/%d/assign", id), r.tokens["admin"],
		map[string]int64{"driver_id": r.driverID, "cab_id": r.cabID}, want, nil)
}

func (r *Runner) tripPath(id int64, action string) string {
	return fmt.Sprintf("/api/driver/trips/%d/%s", id, action)
}

// expect sends one request and compares the status. out, when non-nil,
// receives the decoded JSON body.
func (r *Runner) expect(ctx context.Context, method, path, token string, body any, want int, out any) Result {
	code, latency, err := r.do(ctx, method, path, token, body, out)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", code, want)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
}

func (r *Runner) do(ctx context.Context, method, path, token string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, fmt.Errorf("decode: %w", err)
		}
		return resp.StatusCode, latency, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, latency, nil
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name: name,
		Run: func(context.Context, *Runner) Result {
			return Result{Status: statusSkip, Note: note}
		},
	}
}

func fromErr(err error) Result {
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

// concurrentAssign races one driver and cab across many pending bookings.
// Exactly one assignment may win; the winner is cancelled afterwards so the
// driver is free again.
func concurrentAssign(ctx context.Context, r *Runner) Result {
	n := r.cfg.Concurrency
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, res := r.createBooking(ctx, float64(i+1))
		if res.Status != statusPass {
			return res
		}
		ids = append(ids, id)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		other   int
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			<-start
			code, _, err := r.do(ctx, http.MethodPost, fmt.Sprintf("/api/admin/bookings/%d/assign", id), r.tokens["admin"],
				map[string]int64{"driver_id": r.driverID, "cab_id": r.cabID}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other++
			case code == http.StatusOK:
				winners = append(winners, id)
			case code != http.StatusConflict:
				other++
			}
		}(id)
	}
	close(start)
	wg.Wait()

	for _, id := range ids {
		_, _, _ = r.do(ctx, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", id), r.tokens["admin"], nil, nil)
	}
	if len(winners) != 1 || other > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("success=%d unexpected=%d", len(winners), other)}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("success=1 of %d", n)}
}

// checkConsistency verifies that every on_trip driver or cab is held by
// exactly one active booking and vice versa.
func checkConsistency(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	queries := map[string]string{
		"on_trip driver without active booking": `
			SELECT count(*) FROM drivers d
			WHERE d.status = 'on_trip'
			  AND NOT EXISTS (SELECT 1 FROM bookings b WHERE b.driver_id = d.id AND b.status IN ('assigned','en_route'))`,
		"active booking with available driver": `
			SELECT count(*) FROM bookings b JOIN drivers d ON d.id = b.driver_id
			WHERE b.status IN ('assigned','en_route') AND d.status <> 'on_trip'`,
		"on_trip cab without active booking": `
			SELECT count(*) FROM cabs c
			WHERE c.status = 'on_trip'
			  AND NOT EXISTS (SELECT 1 FROM bookings b WHERE b.cab_id = c.id AND b.status IN ('assigned','en_route'))`,
		"completed booking without fare_final": `
			SELECT count(*) FROM bookings WHERE status = 'completed' AND fare_final IS NULL`,
	}
	for name, q := range queries {
		var n int
		if err := r.db.QueryRow(ctx, q).Scan(&n); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if n != 0 {
			return Result{Status: statusFail, Note: fmt.Sprintf("%s: %d", name, n)}
		}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	files, err := filepath.Glob(filepath.Join(r.cfg.MigrationsDir, "*.sql"))
	if err != nil || len(files) == 0 {
		return Result{Status: statusFail, Note: "no migrations found"}
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		for _, m := range re.FindAllStringSubmatch(string(b), -1) {
			var exists bool
			err := r.db.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", m[1],
			).Scan(&exists)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			if !exists {
				return Result{Status: statusFail, Note: "missing table: " + m[1]}
			}
		}
	}
	return Result{Status: statusPass}
}

func perfLoad(ctx context.Context, r *Runner, path, token string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu       sync.Mutex
		count    int64
		errCount int64
		wg       sync.WaitGroup
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, err := r.do(ctx, http.MethodPost, path, token, payload, nil)
				mu.Lock()
				if err != nil || code >= 300 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}
