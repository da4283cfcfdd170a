package main

import (
	"context"
	"log/slog"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/types"
)

// seedDemo creates the demo admin, driver, customer and two cabs. It is a
// no-op once the admin account exists.
func seedDemo(ctx context.Context, accounts *account.Service, fleetSvc *fleet.Service, log *slog.Logger) error {
	admin, err := accounts.CreateAdmin(ctx, account.RegisterCommand{
		Username: "admin", Email: "admin@cabdispatch.local", Password: "admin123", FirstName: "Admin",
	})
	if apperr.Is(err, apperr.KindDuplicateKey) {
		log.Info("demo data already present")
		return nil
	}
	if err != nil {
		return err
	}
	caller := types.Caller{UserID: admin.ID, Role: types.RoleAdmin}

	driver, err := accounts.CreateDriverAccount(ctx, account.CreateDriverCommand{
		Caller: caller,
		RegisterCommand: account.RegisterCommand{
			Username: "driver1", Email: "driver1@cabdispatch.local", Password: "driver123",
			FirstName: "Ravi", LastName: "Kumar", Phone: "9876543210",
		},
		LicenseNo: "DL001",
		Rating:    4.5,
	})
	if err != nil {
		return err
	}
	if _, err := accounts.Register(ctx, account.RegisterCommand{
		Username: "customer1", Email: "customer1@cabdispatch.local", Password: "customer123",
		FirstName: "Priya", LastName: "Sharma", Phone: "9123456780",
	}); err != nil {
		return err
	}

	if _, err := fleetSvc.CreateCab(ctx, fleet.CreateCabCommand{
		Caller: caller, RegistrationNo: "KA-01-AB-1234", Model: "Toyota Innova", Capacity: 7,
		DriverID: types.IDPtr(driver.DriverID),
	}); err != nil {
		return err
	}
	if _, err := fleetSvc.CreateCab(ctx, fleet.CreateCabCommand{
		Caller: caller, RegistrationNo: "KA-01-CD-5678", Model: "Maruti Swift", Capacity: 4,
	}); err != nil {
		return err
	}
	log.Info("demo data seeded", "admin", "admin", "driver", "driver1", "customer", "customer1")
	return nil
}
