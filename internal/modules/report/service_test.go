package report_test

import (
	"context"
	"errors"
	"testing"

	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/types"
)

type stubStore struct {
	snaps map[report.Scope]report.Snapshot
}

func (s stubStore) Snapshot(_ context.Context, scope report.Scope) (report.Snapshot, error) {
	return s.snaps[scope], nil
}

type stubDrivers map[types.ID]types.ID

func (d stubDrivers) DriverIDForUser(_ context.Context, userID types.ID) (types.ID, error) {
	return d[userID], nil
}

var admin = types.Caller{UserID: 1, Role: types.RoleAdmin}

func TestSummary_RevenueAndAverage(t *testing.T) {
	store := stubStore{snaps: map[report.Scope]report.Snapshot{
		{}: {
			ByStatus: map[booking.Status]int{
				booking.StatusCompleted: 3,
				booking.StatusPending:   2,
				booking.StatusCancelled: 1,
			},
			Revenue: 90000,
			Drivers: report.Counts{Total: 4, Available: 3},
			Cabs:    report.Counts{Total: 5, Available: 4},
		},
	}}
	svc := report.NewService(store, nil, "INR")

	s, err := svc.Summary(context.Background(), admin)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.TotalRevenue.Amount != 90000 || s.TotalRevenue.Major() != 900 {
		t.Errorf("revenue = %+v", s.TotalRevenue)
	}
	if s.CompletedTrips != 3 || s.AvgFare.Amount != 30000 {
		t.Errorf("completed=%d avg=%d", s.CompletedTrips, s.AvgFare.Amount)
	}
	if s.TotalBookings != 6 {
		t.Errorf("total = %d", s.TotalBookings)
	}
	if s.ByStatus[booking.StatusEnRoute] != 0 || len(s.ByStatus) != len(booking.AllStatuses) {
		t.Errorf("by status = %v", s.ByStatus)
	}
	if s.Drivers.Available != 3 || s.Cabs.Total != 5 {
		t.Errorf("fleet counts = %+v %+v", s.Drivers, s.Cabs)
	}
}

func TestSummary_NoCompletedTrips(t *testing.T) {
	svc := report.NewService(stubStore{}, nil, "INR")
	s, err := svc.Summary(context.Background(), admin)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.TotalRevenue.Amount != 0 || s.AvgFare.Amount != 0 || s.CompletedTrips != 0 {
		t.Fatalf("expected zeros, got %+v", s)
	}
}

func TestSummary_AdminOnly(t *testing.T) {
	svc := report.NewService(stubStore{}, nil, "INR")
	_, err := svc.Summary(context.Background(), types.Caller{UserID: 2, Role: types.RoleCustomer})
	if !errors.Is(err, report.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPartySummaries(t *testing.T) {
	customer := types.Caller{UserID: 7, Role: types.RoleCustomer}
	driver := types.Caller{UserID: 8, Role: types.RoleDriver}
	store := stubStore{snaps: map[report.Scope]report.Snapshot{
		{CustomerID: 7}: {ByStatus: map[booking.Status]int{
			booking.StatusPending: 1, booking.StatusAssigned: 1, booking.StatusEnRoute: 1, booking.StatusCompleted: 2,
		}, Revenue: 40000},
		{DriverID: 3}: {ByStatus: map[booking.Status]int{booking.StatusCompleted: 4}, Revenue: 80000},
	}}
	svc := report.NewService(store, stubDrivers{8: 3}, "INR")
	ctx := context.Background()

	c, err := svc.CustomerSummary(ctx, customer, 0)
	if err != nil {
		t.Fatalf("customer summary: %v", err)
	}
	if c.Pending != 1 || c.Active != 2 || c.Completed != 2 || c.Total != 5 || c.Amount.Amount != 40000 {
		t.Fatalf("unexpected customer summary %+v", c)
	}
	if _, err := svc.CustomerSummary(ctx, types.Caller{UserID: 9, Role: types.RoleCustomer}, 7); !errors.Is(err, report.ErrForbidden) {
		t.Fatalf("foreign customer: expected forbidden, got %v", err)
	}

	d, err := svc.DriverSummary(ctx, driver, 0)
	if err != nil {
		t.Fatalf("driver summary: %v", err)
	}
	if d.Completed != 4 || d.Amount.Amount != 80000 {
		t.Fatalf("unexpected driver summary %+v", d)
	}
	if _, err := svc.DriverSummary(ctx, driver, 99); !errors.Is(err, report.ErrForbidden) {
		t.Fatalf("other driver: expected forbidden, got %v", err)
	}
	if _, err := svc.DriverSummary(ctx, admin, 3); err != nil {
		t.Fatalf("admin driver summary: %v", err)
	}
}
