package booking_test

import (
	"context"
	"testing"

	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/types"
)

// tripDistances give fares of 200, 300 and 400 at the default rate.
var tripDistances = []float64{10, 50.0 / 3, 70.0 / 3}

type tripRunner interface {
	Create(ctx context.Context, cmd booking.CreateCommand) (*booking.Booking, error)
	Assign(ctx context.Context, cmd booking.AssignCommand) (*booking.Booking, error)
	Start(ctx context.Context, cmd booking.StartCommand) (*booking.Booking, error)
	Complete(ctx context.Context, cmd booking.CompleteCommand) (*booking.Booking, error)
}

func completeTrip(t *testing.T, svc tripRunner, admin, customer, driver types.Caller, driverID, cabID types.ID, km float64) *booking.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := svc.Create(ctx, booking.CreateCommand{Caller: customer, Pickup: "MG Road", Dropoff: "Airport", DistanceKm: km})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Assign(ctx, booking.AssignCommand{BookingID: b.ID, DriverID: driverID, CabID: cabID, Caller: admin}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.Start(ctx, booking.StartCommand{BookingID: b.ID, Caller: driver}); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := svc.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, Caller: driver})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return done
}

func checkSummary(t *testing.T, reports *report.Service, admin types.Caller, revenue int64, completed int, avg int64) *report.Summary {
	t.Helper()
	s, err := reports.Summary(context.Background(), admin)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.TotalRevenue.Amount != revenue || s.CompletedTrips != completed || s.AvgFare.Amount != avg {
		t.Fatalf("summary revenue=%d completed=%d avg=%d, want %d/%d/%d",
			s.TotalRevenue.Amount, s.CompletedTrips, s.AvgFare.Amount, revenue, completed, avg)
	}
	return s
}

func TestReportSummary_MemoryStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reports := report.NewService(f.db, f.fleet, "INR")

	// Pending and cancelled bookings carry estimates but no revenue.
	f.create(t, 5)
	cancelled := f.create(t, 8)
	if _, err := f.svc.Cancel(ctx, booking.CancelCommand{BookingID: cancelled.ID, Caller: f.customer}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	checkSummary(t, reports, f.admin, 0, 0, 0)

	for _, km := range tripDistances {
		completeTrip(t, f.svc, f.admin, f.customer, f.driver.caller, f.driver.driverID, f.driver.cabID, km)
	}
	s := checkSummary(t, reports, f.admin, 90000, 3, 30000)
	if s.ByStatus[booking.StatusPending] != 1 || s.ByStatus[booking.StatusCancelled] != 1 || s.TotalBookings != 5 {
		t.Fatalf("by status = %v total = %d", s.ByStatus, s.TotalBookings)
	}
	if s.Drivers.Available != s.Drivers.Total || s.Cabs.Available != s.Cabs.Total {
		t.Fatalf("fleet not released: drivers=%+v cabs=%+v", s.Drivers, s.Cabs)
	}

	mine, err := reports.CustomerSummary(ctx, f.customer, 0)
	if err != nil {
		t.Fatalf("customer summary: %v", err)
	}
	if mine.Completed != 3 || mine.Amount.Amount != 90000 || mine.Total != 5 {
		t.Fatalf("customer summary = %+v", mine)
	}
}

func TestReportSummary_PGStore(t *testing.T) {
	env := setupPG(t)
	reports := report.NewService(report.NewPGStore(env.db), nil, "INR")

	checkSummary(t, reports, env.admin, 0, 0, 0)
	for _, km := range tripDistances {
		completeTrip(t, env.svc, env.admin, env.customer, env.driver, env.driverID, env.cabID, km)
	}
	s := checkSummary(t, reports, env.admin, 90000, 3, 30000)
	if s.TotalBookings != 3 || s.Drivers.Available != 1 || s.Cabs.Available != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
