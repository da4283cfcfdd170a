package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	api "cabdispatch/internal/http"
	"cabdispatch/internal/config"
	"cabdispatch/internal/infra"
	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/allocation"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fare"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/store/memory"
)

type testAPI struct {
	t        *testing.T
	router   http.Handler
	accounts *account.Service
	fleet    *fleet.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.New()
	jwtm, err := infra.NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}
	accounts := account.NewService(db, jwtm).WithHashCost(bcrypt.MinCost)
	fleetSvc := fleet.NewService(db)
	engine := allocation.NewEngine(db, db, nil, config.AllocationConfig{Strategy: config.StrategyFirstAvailable}, log)
	bookings := booking.NewService(booking.Deps{
		Store:     db,
		Estimator: fare.NewEstimator(fare.DefaultRate),
		Allocator: engine,
		Customers: accounts,
		Drivers:   fleetSvc,
		Logger:    log,
	})
	router := api.NewRouter(api.RouterDeps{
		Accounts: accounts,
		Fleet:    fleetSvc,
		Bookings: bookings,
		Reports:  report.NewService(db, fleetSvc, fare.DefaultRate.Currency),
		Verifier: jwtm,
		Logger:   log,
	})
	return &testAPI{t: t, router: router, accounts: accounts, fleet: fleetSvc}
}

func (a *testAPI) call(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func (a *testAPI) must(want int, method, path, token string, body any) map[string]any {
	a.t.Helper()
	code, out := a.call(method, path, token, body)
	if code != want {
		a.t.Fatalf("%s %s: status %d, want %d (body %v)", method, path, code, want, out)
	}
	return out
}

func (a *testAPI) login(username, password string) string {
	a.t.Helper()
	out := a.must(http.StatusOK, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	token, _ := out["token"].(string)
	if token == "" {
		a.t.Fatalf("login %s: no token", username)
	}
	return token
}

func id(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("health = %d %q", w.Code, w.Body.String())
	}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	if _, err := a.accounts.CreateAdmin(ctx, account.RegisterCommand{Username: "admin", Email: "admin@example.com", Password: "admin123"}); err != nil {
		t.Fatalf("admin: %v", err)
	}
	adminToken := a.login("admin", "admin123")

	a.must(http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "customer1", "email": "c1@example.com", "password": "secret123",
	})
	customerToken := a.login("customer1", "secret123")

	drv := a.must(http.StatusCreated, http.MethodPost, "/api/admin/drivers", adminToken, map[string]any{
		"username": "driver1", "email": "d1@example.com", "password": "driver123", "license_no": "DL001", "rating": 4.5,
	})
	driverID := id(drv["driver_id"])
	cab := a.must(http.StatusCreated, http.MethodPost, "/api/admin/cabs", adminToken, map[string]any{
		"registration_no": "KA-01-AB-1234", "model": "Toyota Innova", "capacity": 7, "driver_id": driverID,
	})
	cabID := id(cab["id"])
	driverToken := a.login("driver1", "driver123")

	b := a.must(http.StatusCreated, http.MethodPost, "/api/bookings", customerToken, map[string]any{
		"pickup": "MG Road", "dropoff": "Airport", "distance_km": 10,
	})
	bookingID := id(b["id"])
	if fe := b["fare_estimate"].(map[string]any); fe["amount"] != 200.0 || fe["currency"] != "INR" {
		t.Fatalf("fare estimate = %v", fe)
	}

	// Drivers and customers cannot assign.
	a.must(http.StatusForbidden, http.MethodPost, fmt.Sprintf("/api/admin/bookings/%d/assign", bookingID), customerToken,
		map[string]any{"driver_id": driverID, "cab_id": cabID})

	assigned := a.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/admin/bookings/%d/assign", bookingID), adminToken,
		map[string]any{"driver_id": driverID, "cab_id": cabID})
	if assigned["status"] != string(booking.StatusAssigned) {
		t.Fatalf("status = %v", assigned["status"])
	}

	trips := a.must(http.StatusOK, http.MethodGet, "/api/driver/trips", driverToken, nil)
	if n := len(trips["trips"].([]any)); n != 1 {
		t.Fatalf("driver trips = %d", n)
	}

	a.must(http.StatusConflict, http.MethodPost, fmt.Sprintf("/api/driver/trips/%d/complete", bookingID), driverToken, nil)
	a.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/driver/trips/%d/start", bookingID), driverToken, nil)
	a.must(http.StatusConflict, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", bookingID), customerToken, nil)
	done := a.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/driver/trips/%d/complete", bookingID), driverToken, nil)
	if ff := done["fare_final"].(map[string]any); ff["amount"] != 200.0 {
		t.Fatalf("fare final = %v", ff)
	}

	summary := a.must(http.StatusOK, http.MethodGet, "/api/admin/reports/summary", adminToken, nil)
	if summary["completed_trips"] != 1.0 || summary["total_revenue"].(map[string]any)["amount"] != 200.0 {
		t.Fatalf("summary = %v", summary)
	}
	a.must(http.StatusForbidden, http.MethodGet, "/api/admin/reports/summary", customerToken, nil)

	cust := a.must(http.StatusOK, http.MethodGet, "/api/customer/summary", customerToken, nil)
	if cust["completed"] != 1.0 || cust["total"] != 1.0 {
		t.Fatalf("customer summary = %v", cust)
	}
	hist := a.must(http.StatusOK, http.MethodGet, "/api/driver/history", driverToken, nil)
	if n := len(hist["trips"].([]any)); n != 1 {
		t.Fatalf("history = %d", n)
	}
	events := a.must(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/admin/bookings/%d/events", bookingID), adminToken, nil)
	if n := len(events["events"].([]any)); n != 4 {
		t.Fatalf("events = %d", n)
	}
	drivers := a.must(http.StatusOK, http.MethodGet, "/api/admin/drivers?status=available", adminToken, nil)
	if n := len(drivers["drivers"].([]any)); n != 1 {
		t.Fatalf("available drivers = %d", n)
	}
}

func TestErrorMapping(t *testing.T) {
	a := newTestAPI(t)
	a.must(http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "customer1", "email": "c1@example.com", "password": "secret123",
	})
	token := a.login("customer1", "secret123")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
		kind   string
	}{
		{"duplicate username", http.MethodPost, "/api/auth/register", map[string]string{"username": "customer1", "email": "x@example.com", "password": "secret123"}, http.StatusConflict, "duplicate_key"},
		{"short password", http.MethodPost, "/api/auth/register", map[string]string{"username": "u2", "email": "u2@example.com", "password": "1"}, http.StatusBadRequest, "validation_error"},
		{"bad login", http.MethodPost, "/api/auth/login", map[string]string{"username": "customer1", "password": "nope"}, http.StatusForbidden, "forbidden"},
		{"missing booking", http.MethodGet, "/api/bookings/999", nil, http.StatusNotFound, "not_found"},
		{"bad id", http.MethodGet, "/api/bookings/abc", nil, http.StatusBadRequest, "validation_error"},
		{"missing pickup", http.MethodPost, "/api/bookings", map[string]any{"dropoff": "x", "distance_km": 1}, http.StatusBadRequest, "validation_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out := a.call(tc.method, tc.path, token, tc.body)
			if code != tc.want || out["kind"] != tc.kind {
				t.Fatalf("got %d %v, want %d %s", code, out, tc.want, tc.kind)
			}
		})
	}

	if code, _ := a.call(http.MethodGet, "/api/bookings", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", code)
	}
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()
	if _, err := a.accounts.CreateAdmin(ctx, account.RegisterCommand{Username: "admin", Email: "admin@example.com", Password: "admin123"}); err != nil {
		t.Fatalf("admin: %v", err)
	}
	adminToken := a.login("admin", "admin123")
	u := a.must(http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "customer1", "email": "c1@example.com", "password": "secret123",
	})
	token := a.login("customer1", "secret123")
	a.must(http.StatusOK, http.MethodGet, "/api/bookings", token, nil)

	out := a.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/deactivate", id(u["id"])), adminToken, nil)
	if out["active"] != false {
		t.Fatalf("user still active: %v", out)
	}
	a.must(http.StatusUnauthorized, http.MethodGet, "/api/bookings", token, nil)
	a.must(http.StatusForbidden, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "customer1", "password": "secret123"})

	a.must(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/activate", id(u["id"])), adminToken, nil)
	a.must(http.StatusOK, http.MethodGet, "/api/bookings", token, nil)
}

func TestCancelReasonFromChunkedBody(t *testing.T) {
	a := newTestAPI(t)
	a.must(http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "customer1", "email": "c1@example.com", "password": "secret123",
	})
	token := a.login("customer1", "secret123")

	cancel := func(body io.Reader) map[string]any {
		t.Helper()
		b := a.must(http.StatusCreated, http.MethodPost, "/api/bookings", token, map[string]any{
			"pickup": "MG Road", "dropoff": "Airport", "distance_km": 3,
		})
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", id(b["id"])), body)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("cancel: status %d body %s", w.Code, w.Body.String())
		}
		out := map[string]any{}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	// A plain io.Reader has unknown length, as with Transfer-Encoding: chunked.
	chunked := io.MultiReader(bytes.NewBufferString(`{"reason":"found another ride"}`))
	if out := cancel(chunked); out["cancel_reason"] != "found another ride" {
		t.Fatalf("cancel_reason = %v", out["cancel_reason"])
	}
	if out := cancel(http.NoBody); out["status"] != "cancelled" || out["cancel_reason"] != nil {
		t.Fatalf("cancel without body = %v", out)
	}
	if out := cancel(io.MultiReader()); out["status"] != "cancelled" {
		t.Fatalf("cancel with empty chunked body = %v", out)
	}
}
