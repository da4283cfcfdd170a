// README: Account service handles registration, login and user activation.
package account

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/types"
)

type Store interface {
	CreateUser(ctx context.Context, u *User) error
	// CreateDriverAccount inserts the user and its driver profile in one
	// transaction and returns the new driver id.
	CreateDriverAccount(ctx context.Context, u *User, p DriverProfile) (types.ID, error)
	GetUser(ctx context.Context, id types.ID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]*User, error)
	SetUserActive(ctx context.Context, id types.ID, active bool) error
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID types.ID, role types.Role) (token string, expiresAt time.Time, err error)
}

var (
	ErrNotFound           = apperr.New(apperr.KindNotFound, "user not found")
	ErrInvalidCredentials = apperr.New(apperr.KindForbidden, "invalid username or password")
	ErrInactive           = apperr.New(apperr.KindForbidden, "user is deactivated")
	ErrNotCustomer        = apperr.New(apperr.KindForbidden, "user is not an active customer")
	ErrForbidden          = apperr.New(apperr.KindForbidden, "account management requires admin")
	ErrLoginDisabled      = apperr.New(apperr.KindForbidden, "local login is disabled")
)

const minPasswordLen = 6

type Service struct {
	store  Store
	tokens TokenIssuer
	cost   int
}

func NewService(store Store, tokens TokenIssuer) *Service {
	return &Service{store: store, tokens: tokens, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

type RegisterCommand struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type CreateDriverCommand struct {
	Caller types.Caller
	RegisterCommand
	LicenseNo string
	Rating    float64
}

type DriverAccount struct {
	User     *User
	DriverID types.ID
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	u, err := s.newUser(cmd, types.RoleCustomer)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateAdmin is used by seeding and bootstrap; it has no caller guard.
func (s *Service) CreateAdmin(ctx context.Context, cmd RegisterCommand) (*User, error) {
	u, err := s.newUser(cmd, types.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) CreateDriverAccount(ctx context.Context, cmd CreateDriverCommand) (*DriverAccount, error) {
	if !cmd.Caller.IsAdmin() {
		return nil, ErrForbidden
	}
	license := strings.ToUpper(strings.TrimSpace(cmd.LicenseNo))
	if license == "" {
		return nil, apperr.Invalid("license_no", "license number is required")
	}
	if cmd.Rating < 0 || cmd.Rating > 5 {
		return nil, apperr.Invalid("rating", "rating must be between 0 and 5")
	}
	u, err := s.newUser(cmd.RegisterCommand, types.RoleDriver)
	if err != nil {
		return nil, err
	}
	driverID, err := s.store.CreateDriverAccount(ctx, u, DriverProfile{LicenseNo: license, Rating: cmd.Rating})
	if err != nil {
		return nil, err
	}
	return &DriverAccount{User: u, DriverID: driverID}, nil
}

func (s *Service) newUser(cmd RegisterCommand, role types.Role) (*User, error) {
	username := strings.TrimSpace(cmd.Username)
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if username == "" {
		return nil, apperr.Invalid("username", "username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Invalid("email", "email is not valid")
	}
	if len(cmd.Password) < minPasswordLen {
		return nil, apperr.Invalid("password", "password is too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.cost)
	if err != nil {
		return nil, err
	}
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(cmd.FirstName),
		LastName:     strings.TrimSpace(cmd.LastName),
		Phone:        strings.TrimSpace(cmd.Phone),
		Role:         role,
		Active:       true,
	}, nil
}

// Login checks the password and issues a token. Unknown users and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if s.tokens == nil {
		return nil, ErrLoginDisabled
	}
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrInactive
	}
	token, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *Service) Deactivate(ctx context.Context, caller types.Caller, userID types.ID) (*User, error) {
	return s.setActive(ctx, caller, userID, false)
}

func (s *Service) Activate(ctx context.Context, caller types.Caller, userID types.ID) (*User, error) {
	return s.setActive(ctx, caller, userID, true)
}

func (s *Service) setActive(ctx context.Context, caller types.Caller, userID types.ID, active bool) (*User, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if !active && caller.UserID == userID {
		return nil, apperr.Invalid("user_id", "admins cannot deactivate themselves")
	}
	if err := s.store.SetUserActive(ctx, userID, active); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, caller types.Caller, userID types.ID) (*User, error) {
	if !caller.IsAdmin() && caller.UserID != userID {
		return nil, ErrForbidden
	}
	return s.store.GetUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, caller types.Caller, f UserFilter) ([]*User, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, apperr.Invalid("role", "unknown role")
	}
	return s.store.ListUsers(ctx, f)
}

// ActiveCustomer confirms userID may own bookings.
func (s *Service) ActiveCustomer(ctx context.Context, userID types.ID) error {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ErrNotCustomer
	}
	if err != nil {
		return err
	}
	if u.Role != types.RoleCustomer || !u.Active {
		return ErrNotCustomer
	}
	return nil
}

// IsActive is consulted by the auth middleware on every request.
func (s *Service) IsActive(ctx context.Context, userID types.ID) (bool, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Active, nil
}
