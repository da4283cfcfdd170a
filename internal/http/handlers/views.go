// README: JSON response shapes. Money leaves the API in major units.
package handlers

import (
	"time"

	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/types"
)

type moneyView struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

func money(m types.Money) moneyView {
	return moneyView{Amount: m.Major(), Currency: m.Currency}
}

type bookingView struct {
	ID            types.ID       `json:"id"`
	CustomerID    types.ID       `json:"customer_id"`
	DriverID      *types.ID      `json:"driver_id,omitempty"`
	CabID         *types.ID      `json:"cab_id,omitempty"`
	Pickup        string         `json:"pickup"`
	Dropoff       string         `json:"dropoff"`
	ScheduledAt   *time.Time     `json:"scheduled_at,omitempty"`
	DistanceKm    float64        `json:"distance_km"`
	FareEstimate  moneyView      `json:"fare_estimate"`
	FareFinal     *moneyView     `json:"fare_final,omitempty"`
	Status        booking.Status `json:"status"`
	StatusVersion int            `json:"status_version"`
	CreatedAt     time.Time      `json:"created_at"`
	AssignedAt    *time.Time     `json:"assigned_at,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	CancelReason  *string        `json:"cancel_reason,omitempty"`
}

func bookingJSON(b *booking.Booking) bookingView {
	v := bookingView{
		ID:            b.ID,
		CustomerID:    b.CustomerID,
		DriverID:      b.DriverID,
		CabID:         b.CabID,
		Pickup:        b.Pickup,
		Dropoff:       b.Dropoff,
		ScheduledAt:   b.ScheduledAt,
		DistanceKm:    b.DistanceKm,
		FareEstimate:  money(b.FareEstimate),
		Status:        b.Status,
		StatusVersion: b.StatusVersion,
		CreatedAt:     b.CreatedAt,
		AssignedAt:    b.AssignedAt,
		StartedAt:     b.StartedAt,
		CompletedAt:   b.CompletedAt,
		CancelledAt:   b.CancelledAt,
		CancelReason:  b.CancelReason,
	}
	if b.FareFinal != nil {
		f := money(*b.FareFinal)
		v.FareFinal = &f
	}
	return v
}

func bookingsJSON(bs []*booking.Booking) []bookingView {
	out := make([]bookingView, len(bs))
	for i, b := range bs {
		out[i] = bookingJSON(b)
	}
	return out
}

type eventView struct {
	ID         int64          `json:"id"`
	FromStatus booking.Status `json:"from_status"`
	ToStatus   booking.Status `json:"to_status"`
	ActorRole  types.Role     `json:"actor_role"`
	ActorID    *types.ID      `json:"actor_id,omitempty"`
	DriverID   *types.ID      `json:"driver_id,omitempty"`
	CabID      *types.ID      `json:"cab_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func eventsJSON(es []booking.Event) []eventView {
	out := make([]eventView, len(es))
	for i, e := range es {
		out[i] = eventView{
			ID: e.ID, FromStatus: e.FromStatus, ToStatus: e.ToStatus, ActorRole: e.ActorRole,
			ActorID: e.ActorID, DriverID: e.DriverID, CabID: e.CabID, CreatedAt: e.CreatedAt,
		}
	}
	return out
}

type userView struct {
	ID        types.ID   `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      types.Role `json:"role"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

func userJSON(u *account.User) userView {
	return userView{
		ID: u.ID, Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName,
		Phone: u.Phone, Role: u.Role, Active: u.Active, CreatedAt: u.CreatedAt,
	}
}

type driverView struct {
	ID        types.ID     `json:"id"`
	UserID    types.ID     `json:"user_id"`
	LicenseNo string       `json:"license_no"`
	Rating    float64      `json:"rating"`
	Status    fleet.Status `json:"status"`
	Active    bool         `json:"active"`
	CabID     *types.ID    `json:"cab_id,omitempty"`
}

func driversJSON(ds []*fleet.Driver) []driverView {
	out := make([]driverView, len(ds))
	for i, d := range ds {
		out[i] = driverView{
			ID: d.ID, UserID: d.UserID, LicenseNo: d.LicenseNo, Rating: d.Rating,
			Status: d.Status, Active: d.Active, CabID: d.CabID,
		}
	}
	return out
}

type cabView struct {
	ID             types.ID     `json:"id"`
	RegistrationNo string       `json:"registration_no"`
	Model          string       `json:"model"`
	Capacity       int          `json:"capacity"`
	Status         fleet.Status `json:"status"`
	DriverID       *types.ID    `json:"driver_id,omitempty"`
}

func cabJSON(c *fleet.Cab) cabView {
	return cabView{
		ID: c.ID, RegistrationNo: c.RegistrationNo, Model: c.Model,
		Capacity: c.Capacity, Status: c.Status, DriverID: c.DriverID,
	}
}

type countsView struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

type summaryView struct {
	ByStatus       map[booking.Status]int `json:"by_status"`
	TotalBookings  int                    `json:"total_bookings"`
	CompletedTrips int                    `json:"completed_trips"`
	TotalRevenue   moneyView              `json:"total_revenue"`
	AvgFare        moneyView              `json:"avg_fare"`
	Drivers        countsView             `json:"drivers"`
	Cabs           countsView             `json:"cabs"`
}

func summaryJSON(s *report.Summary) summaryView {
	return summaryView{
		ByStatus:       s.ByStatus,
		TotalBookings:  s.TotalBookings,
		CompletedTrips: s.CompletedTrips,
		TotalRevenue:   money(s.TotalRevenue),
		AvgFare:        money(s.AvgFare),
		Drivers:        countsView(s.Drivers),
		Cabs:           countsView(s.Cabs),
	}
}

type partyView struct {
	Pending   int       `json:"pending"`
	Active    int       `json:"active"`
	Completed int       `json:"completed"`
	Cancelled int       `json:"cancelled"`
	Total     int       `json:"total"`
	Amount    moneyView `json:"amount"`
}

func partyJSON(p *report.PartySummary) partyView {
	return partyView{
		Pending: p.Pending, Active: p.Active, Completed: p.Completed,
		Cancelled: p.Cancelled, Total: p.Total, Amount: money(p.Amount),
	}
}
