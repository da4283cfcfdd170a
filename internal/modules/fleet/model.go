// README: Driver and cab records plus their availability status.
package fleet

import (
	"time"

	"cabdispatch/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusOnTrip    Status = "on_trip"
)

func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusOnTrip
}

type Driver struct {
	ID        types.ID
	UserID    types.ID
	LicenseNo string
	Rating    float64
	Status    Status
	// Active mirrors the owning user's active flag; inactive drivers are never assigned.
	Active bool
	// CabID is the cab staffed by this driver, looked up from cabs.driver_id.
	CabID     *types.ID
	CreatedAt time.Time
}

type Cab struct {
	ID             types.ID
	RegistrationNo string
	Model          string
	Capacity       int
	Status         Status
	DriverID       *types.ID
	CreatedAt      time.Time
}

type DriverFilter struct {
	Status     Status
	ActiveOnly bool
	Limit      int
}

type CabFilter struct {
	Status Status
	Limit  int
}
