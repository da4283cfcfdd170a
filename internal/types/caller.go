// README: Caller context passed explicitly into every controller operation.
package types

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Caller is the authenticated identity an operation runs under. UserID always
// refers to a User; driver callers are resolved to their Driver profile by the
// service that needs it.
type Caller struct {
	UserID ID
	Role   Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
