package account_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/store/memory"
	"cabdispatch/internal/testutil"
	"cabdispatch/internal/types"
)

type stubIssuer struct {
	lastUser types.ID
	lastRole types.Role
}

func (s *stubIssuer) Issue(userID types.ID, role types.Role) (string, time.Time, error) {
	s.lastUser, s.lastRole = userID, role
	return "signed-token", time.Unix(1700000000, 0), nil
}

func newService(store account.Store) (*account.Service, *stubIssuer) {
	issuer := &stubIssuer{}
	return account.NewService(store, issuer).WithHashCost(bcrypt.MinCost), issuer
}

func register(t *testing.T, svc *account.Service, name string) *account.User {
	t.Helper()
	u, err := svc.Register(context.Background(), account.RegisterCommand{
		Username: name, Email: name + "@example.com", Password: "secret123", FirstName: "Test",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, issuer := newService(memory.New())

	u := register(t, svc, "asha")
	if u.Role != types.RoleCustomer || !u.Active || u.PasswordHash == "secret123" {
		t.Fatalf("unexpected user %+v", u)
	}

	res, err := svc.Login(ctx, "asha", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "signed-token" || issuer.lastUser != u.ID || issuer.lastRole != types.RoleCustomer {
		t.Fatalf("unexpected login result %+v", res)
	}

	if _, err := svc.Login(ctx, "asha", "wrong"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret123"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected invalid credentials, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(memory.New())

	cases := []struct {
		name  string
		cmd   account.RegisterCommand
		field string
	}{
		{"blank username", account.RegisterCommand{Email: "a@example.com", Password: "secret123"}, "username"},
		{"bad email", account.RegisterCommand{Username: "a", Email: "not-an-email", Password: "secret123"}, "email"},
		{"short password", account.RegisterCommand{Username: "a", Email: "a@example.com", Password: "123"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.cmd)
			var ae *apperr.Error
			if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation || ae.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(memory.New())
	register(t, svc, "asha")

	_, err := svc.Register(ctx, account.RegisterCommand{Username: "asha", Email: "other@example.com", Password: "secret123"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindDuplicateKey || ae.Field != "username" {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	_, err = svc.Register(ctx, account.RegisterCommand{Username: "asha2", Email: "ASHA@example.com", Password: "secret123"})
	if !errors.As(err, &ae) || ae.Field != "email" {
		t.Fatalf("expected duplicate email, got %v", err)
	}
}

func TestCreateDriverAccount(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	svc, _ := newService(db)
	admin := types.Caller{UserID: 1, Role: types.RoleAdmin}

	cmd := account.CreateDriverCommand{
		Caller:          admin,
		RegisterCommand: account.RegisterCommand{Username: "ravi", Email: "ravi@example.com", Password: "driver123"},
		LicenseNo:       "dl001",
		Rating:          4.5,
	}
	acc, err := svc.CreateDriverAccount(ctx, cmd)
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	if acc.User.Role != types.RoleDriver {
		t.Fatalf("role = %s", acc.User.Role)
	}
	d, err := db.GetDriver(ctx, acc.DriverID)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	if d.LicenseNo != "DL001" || d.Status != fleet.StatusAvailable || !d.Active || d.UserID != acc.User.ID {
		t.Fatalf("unexpected driver %+v", d)
	}

	cmd.Username, cmd.Email = "ravi2", "ravi2@example.com"
	_, err = svc.CreateDriverAccount(ctx, cmd)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindDuplicateKey || ae.Field != "license_no" {
		t.Fatalf("expected duplicate license, got %v", err)
	}
	if _, err := svc.Login(ctx, "ravi2", "driver123"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Fatal("failed driver creation must not leave a user behind")
	}

	cmd.Caller = types.Caller{UserID: 2, Role: types.RoleCustomer}
	if _, err := svc.CreateDriverAccount(ctx, cmd); !errors.Is(err, account.ErrForbidden) {
		t.Fatalf("customer caller: expected forbidden, got %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(memory.New())
	admin, err := svc.CreateAdmin(ctx, account.RegisterCommand{Username: "root", Email: "root@example.com", Password: "admin123"})
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	adminCaller := types.Caller{UserID: admin.ID, Role: types.RoleAdmin}
	u := register(t, svc, "asha")

	out, err := svc.Deactivate(ctx, adminCaller, u.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if out.Active {
		t.Fatal("expected inactive user")
	}
	if _, err := svc.Login(ctx, "asha", "secret123"); !errors.Is(err, account.ErrInactive) {
		t.Fatalf("inactive login: expected ErrInactive, got %v", err)
	}
	if err := svc.ActiveCustomer(ctx, u.ID); !errors.Is(err, account.ErrNotCustomer) {
		t.Fatalf("expected ErrNotCustomer, got %v", err)
	}
	if ok, _ := svc.IsActive(ctx, u.ID); ok {
		t.Fatal("IsActive should be false")
	}
	if _, err := svc.Deactivate(ctx, adminCaller, admin.ID); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("self deactivation: expected validation error, got %v", err)
	}
	if _, err := svc.Deactivate(ctx, types.Caller{UserID: u.ID, Role: types.RoleCustomer}, admin.ID); !errors.Is(err, account.ErrForbidden) {
		t.Fatalf("customer caller: expected forbidden, got %v", err)
	}

	if _, err := svc.Activate(ctx, adminCaller, u.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := svc.ActiveCustomer(ctx, u.ID); err != nil {
		t.Fatalf("reactivated customer: %v", err)
	}
	if err := svc.ActiveCustomer(ctx, admin.ID); !errors.Is(err, account.ErrNotCustomer) {
		t.Fatalf("admin is not a customer, got %v", err)
	}
}

func TestPGStore_DuplicateMapping(t *testing.T) {
	ctx := context.Background()
	db := testutil.Postgres(t)
	svc, _ := newService(account.NewPGStore(db))
	register(t, svc, "asha")

	_, err := svc.Register(ctx, account.RegisterCommand{Username: "asha", Email: "x@example.com", Password: "secret123"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Field != "username" {
		t.Fatalf("expected duplicate username, got %v", err)
	}

	admin := types.Caller{UserID: 1, Role: types.RoleAdmin}
	cmd := account.CreateDriverCommand{
		Caller:          admin,
		RegisterCommand: account.RegisterCommand{Username: "ravi", Email: "ravi@example.com", Password: "driver123"},
		LicenseNo:       "DL001",
	}
	if _, err := svc.CreateDriverAccount(ctx, cmd); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	cmd.Username, cmd.Email = "ravi2", "ravi2@example.com"
	_, err = svc.CreateDriverAccount(ctx, cmd)
	if !errors.As(err, &ae) || ae.Field != "license_no" {
		t.Fatalf("expected duplicate license, got %v", err)
	}
	if _, err := svc.Login(ctx, "ravi2", "driver123"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Fatal("rolled back driver user must not exist")
	}
}
