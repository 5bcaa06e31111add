package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hackgods/emerald-details/internal/auth"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/config"
	"github.com/hackgods/emerald-details/internal/db"
	"github.com/hackgods/emerald-details/internal/logging"
	"github.com/hackgods/emerald-details/internal/notify"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

// Every seeded account shares this password so testers can sign in as anyone.
const seedPassword = "detailing123"

var vehicleModels = map[string][]string{
	"Toyota":    {"Camry", "Corolla", "RAV4", "Tacoma", "Sienna"},
	"Honda":     {"Civic", "Accord", "CR-V", "Odyssey"},
	"Ford":      {"F-150", "Explorer", "Mustang", "Transit"},
	"Tesla":     {"Model 3", "Model Y", "Model S"},
	"BMW":       {"3 Series", "X5", "M4"},
	"Chevrolet": {"Silverado", "Tahoe", "Equinox"},
	"Subaru":    {"Outback", "Forester", "Crosstrek"},
}

func main() {
	employees := flag.Int("employees", 5, "number of detailers to create")
	customers := flag.Int("customers", 50, "number of customers to create")
	adminEmail := flag.String("admin-email", "admin@emeralddetails.com", "email of the admin account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("seed", cfg.Env)
	logger.Info("seed starting", "employees", *employees, "customers", *customers)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := seed(ctx, cfg, logger, *adminEmail, *employees, *customers); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
	logger.Info("seed complete")
}

func seed(ctx context.Context, cfg config.Config, logger *slog.Logger, adminEmail string, employees, customers int) error {
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	packages, err := catalog.DefaultServices()
	if cfg.CatalogFile != "" {
		packages, err = catalog.LoadCatalogFile(cfg.CatalogFile)
	}
	if err != nil {
		return err
	}
	added, err := catalog.NewService(catalog.NewPgRepository(pool)).EnsureCatalog(ctx, packages)
	if err != nil {
		return err
	}
	logger.Info("catalog ready", "added", added)

	users := user.NewPgRepository(pool)
	accounts := auth.NewService(users, auth.NewTokenIssuer(cfg.JWTSecret), notify.NoopMailer{}, auth.Config{
		TokenTTL:      cfg.TokenTTL,
		EmailTokenTTL: cfg.EmailTokenTTL,
		PublicURL:     cfg.PublicURL,
	}, logger)
	garage := vehicle.NewService(vehicle.NewPgRepository(pool))

	if _, err := createAccount(ctx, accounts, users, user.RoleAdmin, "Emerald Admin", adminEmail); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	for i := 0; i < employees; i++ {
		if _, err := createAccount(ctx, accounts, users, user.RoleEmployee, gofakeit.Name(), gofakeit.Email()); err != nil {
			return fmt.Errorf("seed employee: %w", err)
		}
	}
	logger.Info("employees seeded", "count", employees)

	for i := 0; i < customers; i++ {
		u, err := createAccount(ctx, accounts, users, user.RoleCustomer, gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return fmt.Errorf("seed customer: %w", err)
		}
		for j := 0; j < gofakeit.Number(1, 2); j++ {
			if _, err := garage.Add(ctx, u.ID, fakeVehicle()); err != nil {
				return fmt.Errorf("seed vehicle: %w", err)
			}
		}
	}
	logger.Info("customers seeded", "count", customers)

	// Slots for the booking horizon, one detailer per day in the same
	// rotation the slot worker uses.
	employeesByName, err := users.ListByRole(ctx, user.RoleEmployee)
	if err != nil {
		return fmt.Errorf("list employees: %w", err)
	}
	staff := make([]slot.Employee, 0, len(employeesByName))
	for _, e := range employeesByName {
		if e.Available {
			staff = append(staff, slot.Employee{ID: e.ID, Name: e.Name})
		}
	}
	slots := slot.NewService(slot.NewPgRepository(pool), cfg.Location, logger)
	if _, err := slots.FillHorizon(ctx, time.Now(), cfg.SlotHorizonDays, staff); err != nil {
		return err
	}
	return nil
}

// createAccount signs up a verified account. An existing admin is reused so
// the seed can be re-run against the same database.
func createAccount(ctx context.Context, accounts *auth.Service, users user.Repository, role user.Role, name, email string) (*user.User, error) {
	sess, err := accounts.SignUp(ctx, auth.SignUpRequest{
		Name:            name,
		Email:           email,
		Phone:           gofakeit.Phone(),
		Password:        seedPassword,
		ConfirmPassword: seedPassword,
	}, role)
	if errors.Is(err, user.ErrEmailTaken) && role == user.RoleAdmin {
		return users.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	if err := users.SetEmailVerified(ctx, sess.User.ID, true); err != nil {
		return nil, err
	}
	return sess.User, nil
}

func fakeVehicle() vehicle.Vehicle {
	makes := make([]string, 0, len(vehicleModels))
	for m := range vehicleModels {
		makes = append(makes, m)
	}
	brand := makes[gofakeit.Number(0, len(makes)-1)]
	models := vehicleModels[brand]

	return vehicle.Vehicle{
		Make:  brand,
		Model: models[gofakeit.Number(0, len(models)-1)],
		Year:  gofakeit.Number(2008, time.Now().Year()),
		Color: gofakeit.Color(),
		Size:  vehicle.AllSizes[gofakeit.Number(0, len(vehicle.AllSizes)-1)],
	}
}
