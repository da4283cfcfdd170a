package booking_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cabdispatch/internal/config"
	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/allocation"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fare"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/store/memory"
	"cabdispatch/internal/types"
)

type noTokens struct{}

func (noTokens) Issue(types.ID, types.Role) (string, time.Time, error) {
	return "token", time.Time{}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []booking.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e booking.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type driverHandle struct {
	caller   types.Caller
	driverID types.ID
	cabID    types.ID
}

type fixture struct {
	db       *memory.DB
	svc      *booking.Service
	accounts *account.Service
	fleet    *fleet.Service
	pub      *recordingPublisher

	admin    types.Caller
	customer types.Caller
	driver   driverHandle
	seq      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		db:       db,
		accounts: account.NewService(db, noTokens{}).WithHashCost(bcrypt.MinCost),
		fleet:    fleet.NewService(db),
		pub:      &recordingPublisher{},
	}
	engine := allocation.NewEngine(db, db, nil, config.AllocationConfig{
		Strategy:      config.StrategyFirstAvailable,
		CandidatePool: 10,
	}, log)
	f.svc = booking.NewService(booking.Deps{
		Store:     db,
		Estimator: fare.NewEstimator(fare.DefaultRate),
		Allocator: engine,
		Customers: f.accounts,
		Drivers:   f.fleet,
		Publisher: f.pub,
		Logger:    log,
	})

	admin, err := f.accounts.CreateAdmin(ctx, account.RegisterCommand{
		Username: "admin", Email: "admin@example.com", Password: "admin123",
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	f.admin = types.Caller{UserID: admin.ID, Role: types.RoleAdmin}
	f.customer = f.addCustomer(t, "customer1")
	f.driver = f.addDriver(t, 4.5, true)
	return f
}

func (f *fixture) addCustomer(t *testing.T, name string) types.Caller {
	t.Helper()
	u, err := f.accounts.Register(context.Background(), account.RegisterCommand{
		Username: name, Email: name + "@example.com", Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return types.Caller{UserID: u.ID, Role: types.RoleCustomer}
}

// addDriver creates a driver account and, when withCab is set, a cab staffed
// by that driver.
func (f *fixture) addDriver(t *testing.T, rating float64, withCab bool) driverHandle {
	t.Helper()
	ctx := context.Background()
	f.seq++
	name := fmt.Sprintf("driver%d", f.seq)
	acc, err := f.accounts.CreateDriverAccount(ctx, account.CreateDriverCommand{
		Caller: f.admin,
		RegisterCommand: account.RegisterCommand{
			Username: name, Email: name + "@example.com", Password: "driver123",
		},
		LicenseNo: fmt.Sprintf("DL%03d", f.seq),
		Rating:    rating,
	})
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	h := driverHandle{
		caller:   types.Caller{UserID: acc.User.ID, Role: types.RoleDriver},
		driverID: acc.DriverID,
	}
	if withCab {
		h.cabID = f.addCab(t, types.IDPtr(acc.DriverID))
	}
	return h
}

func (f *fixture) addCab(t *testing.T, driverID *types.ID) types.ID {
	t.Helper()
	f.seq++
	c, err := f.fleet.CreateCab(context.Background(), fleet.CreateCabCommand{
		Caller:         f.admin,
		RegistrationNo: fmt.Sprintf("KA-01-AB-%04d", f.seq),
		Model:          "Toyota Innova",
		Capacity:       7,
		DriverID:       driverID,
	})
	if err != nil {
		t.Fatalf("create cab: %v", err)
	}
	return c.ID
}

func (f *fixture) create(t *testing.T, km float64) *booking.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), booking.CreateCommand{
		Caller:     f.customer,
		Pickup:     "MG Road",
		Dropoff:    "Airport",
		DistanceKm: km,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (f *fixture) assign(t *testing.T, id types.ID, d driverHandle) *booking.Booking {
	t.Helper()
	b, err := f.svc.Assign(context.Background(), booking.AssignCommand{
		BookingID: id, DriverID: d.driverID, CabID: d.cabID, Caller: f.admin,
	})
	if err != nil {
		t.Fatalf("assign booking %d: %v", id, err)
	}
	return b
}

func (f *fixture) fleetStatus(t *testing.T, driverID, cabID types.ID) (fleet.Status, fleet.Status) {
	t.Helper()
	ctx := context.Background()
	d, err := f.db.GetDriver(ctx, driverID)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	c, err := f.db.GetCab(ctx, cabID)
	if err != nil {
		t.Fatalf("get cab: %v", err)
	}
	return d.Status, c.Status
}

func (f *fixture) expectFleet(t *testing.T, d driverHandle, want fleet.Status) {
	t.Helper()
	ds, cs := f.fleetStatus(t, d.driverID, d.cabID)
	if ds != want || cs != want {
		t.Fatalf("driver=%s cab=%s, want both %s", ds, cs, want)
	}
}
