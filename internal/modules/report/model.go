// README: Reporting snapshot and summary shapes.
package report

import (
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/types"
)

// Scope restricts a snapshot to one customer or one driver. The zero value
// covers the whole system.
type Scope struct {
	CustomerID types.ID
	DriverID   types.ID
}

func (s Scope) Global() bool {
	return !s.CustomerID.Valid() && !s.DriverID.Valid()
}

type Counts struct {
	Total     int
	Available int
}

// Snapshot is read in one consistent view of the store.
type Snapshot struct {
	ByStatus map[booking.Status]int
	// Revenue sums fare_final of completed bookings, in minor units.
	Revenue int64
	Drivers Counts
	Cabs    Counts
}

type Summary struct {
	ByStatus       map[booking.Status]int
	TotalBookings  int
	CompletedTrips int
	TotalRevenue   types.Money
	AvgFare        types.Money
	Drivers        Counts
	Cabs           Counts
}

// PartySummary is the dashboard view for a single customer or driver.
type PartySummary struct {
	Pending   int
	Active    int
	Completed int
	Cancelled int
	Total     int
	// Amount is spent (customer) or earned (driver) on completed trips.
	Amount types.Money
}
