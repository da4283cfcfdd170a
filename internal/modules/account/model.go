// README: User accounts; roles are fixed at creation and users are never deleted.
package account

import (
	"time"

	"cabdispatch/internal/types"
)

type User struct {
	ID           types.ID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Role         types.Role
	Active       bool
	CreatedAt    time.Time
}

// DriverProfile is created together with a driver user.
type DriverProfile struct {
	LicenseNo string
	Rating    float64
}

type UserFilter struct {
	Role  types.Role
	Limit int
}
