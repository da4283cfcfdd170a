// README: Entry point; loads config, wires stores and services, starts the HTTP server and index sync.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cabdispatch/internal/config"
	httptransport "cabdispatch/internal/http"
	"cabdispatch/internal/infra"
	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/allocation"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fare"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/store/memory"
)

type stores struct {
	accounts account.Store
	fleet    fleet.Store
	bookings booking.Store
	reports  report.Store
}

func main() {
	migrations := flag.String("migrations", "migrations", "directory of *.sql migrations applied at startup (postgres store)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := infra.NewLogger(os.Stdout, cfg.Log.Level)
	slog.SetDefault(log)

	if err := run(cfg, *migrations, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, migrations string, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStores(ctx, cfg, migrations, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var index allocation.Index
	if cfg.Redis.Addr != "" {
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer client.Close()
		index = allocation.NewRedisIndex(client)
		log.Info("allocation index", "backend", "redis", "addr", cfg.Redis.Addr)
	}

	var publisher booking.Publisher
	if cfg.AMQP.URL != "" {
		bus, err := infra.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer bus.Close()
		publisher = booking.NewBusPublisher(bus)
		log.Info("booking events", "exchange", cfg.AMQP.Exchange)
	}

	var (
		verifier infra.TokenVerifier
		issuer   account.TokenIssuer
	)
	switch cfg.Auth.Provider {
	case config.AuthFirebase:
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		// Firebase clients sign in against Firebase; local login stays available
		// for operators through the JWT manager when a secret is configured.
		if cfg.Auth.JWTSecret != "" {
			jwtm, err := infra.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
			if err != nil {
				return err
			}
			issuer = jwtm
		}
	default:
		jwtm, err := infra.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
		if err != nil {
			return err
		}
		verifier, issuer = jwtm, jwtm
	}

	estimator := fare.NewEstimator(fare.Rate{BaseFare: cfg.Fare.Base, PerKm: cfg.Fare.PerKm, Currency: cfg.Fare.Currency})
	accountSvc := account.NewService(st.accounts, issuer)
	fleetSvc := fleet.NewService(st.fleet)
	engine := allocation.NewEngine(st.bookings, st.fleet, index, cfg.Allocation, log)
	bookingSvc := booking.NewService(booking.Deps{
		Store:     st.bookings,
		Estimator: estimator,
		Allocator: engine,
		Customers: accountSvc,
		Drivers:   fleetSvc,
		Publisher: publisher,
		Logger:    log,
	})
	reportSvc := report.NewService(st.reports, fleetSvc, estimator.Currency())

	if cfg.SeedDemo {
		if err := seedDemo(ctx, accountSvc, fleetSvc, log); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	if index != nil {
		go engine.RunIndexSync(ctx)
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Accounts: accountSvc,
		Fleet:    fleetSvc,
		Bookings: bookingSvc,
		Reports:  reportSvc,
		Verifier: verifier,
		Logger:   log,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr, "store", cfg.Store, "auth", cfg.Auth.Provider,
			"allocation", cfg.Allocation.Strategy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, migrations string, log *slog.Logger) (stores, func(), error) {
	if cfg.Store == config.StoreMemory {
		db := memory.New()
		log.Warn("using in-memory store; data is lost on restart")
		return stores{accounts: db, fleet: db, bookings: db, reports: db}, func() {}, nil
	}

	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return stores{}, nil, err
	}
	if err := infra.Migrate(ctx, pool, migrations); err != nil {
		pool.Close()
		return stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return stores{
		accounts: account.NewPGStore(pool),
		fleet:    fleet.NewPGStore(pool),
		bookings: booking.NewPGStore(pool),
		reports:  report.NewPGStore(pool),
	}, pool.Close, nil
}
