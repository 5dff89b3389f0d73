package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"casedesk.io/internal/audit"
	"casedesk.io/internal/cases"
	"casedesk.io/internal/coverage"
	"casedesk.io/internal/customers"
	"casedesk.io/internal/httpapi"
	"casedesk.io/internal/identity"
	"casedesk.io/internal/obs"
	"casedesk.io/internal/sla"
	"casedesk.io/internal/store/pg"
	"casedesk.io/internal/sweeper"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.SetBuildInfo(version)

	dsn := os.Getenv("CASEDESK_PG_DSN")
	if dsn == "" {
		log.Fatal("CASEDESK_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	addr := os.Getenv("CASEDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	recorderOpts := []audit.RecorderOption{}
	if raw := os.Getenv("CASEDESK_AUDIT_RETENTION_YEARS"); raw != "" {
		years, err := strconv.Atoi(raw)
		if err != nil || years <= 0 {
			log.Fatalf("CASEDESK_AUDIT_RETENTION_YEARS must be a positive integer, got %q", raw)
		}
		recorderOpts = append(recorderOpts, audit.WithRetentionYears(years))
	}
	recorder := audit.NewRecorder(store.Audit(), recorderOpts...)

	sweepInterval := time.Hour
	if raw := os.Getenv("CASEDESK_SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("CASEDESK_SWEEP_INTERVAL is not a duration: %v", err)
		}
		sweepInterval = d
	}

	rateBurst := 0
	if raw := os.Getenv("CASEDESK_RATE_BURST"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			log.Fatalf("CASEDESK_RATE_BURST must be a positive integer, got %q", raw)
		}
		rateBurst = n
	}
	ratePerSecond := 0
	if raw := os.Getenv("CASEDESK_RATE_PER_SECOND"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			log.Fatalf("CASEDESK_RATE_PER_SECOND must be a positive integer, got %q", raw)
		}
		ratePerSecond = n
	}

	var devActor *identity.Actor
	if name := os.Getenv("CASEDESK_DEV_ACTOR"); name != "" {
		devActor = &identity.Actor{Username: name}
		obs.Log("warn", "development actor enabled, all requests run unrestricted", map[string]any{
			"username": name,
		})
	}

	api := httpapi.New(httpapi.Config{
		ReadyProbe:    httpapi.ReadyProbe{DB: store.DB()},
		Version:       version,
		RateBurst:     rateBurst,
		RatePerSecond: ratePerSecond,
		Identity:      identity.NewService(store),
		Resolver:      coverage.NewResolver(store),
		Cases:         cases.NewService(store.Cases()),
		Customers:     customers.NewService(store.Customers()),
		SLA:           sla.NewService(store),
		Audit:         recorder,
		DevActor:      devActor,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go sweeper.New(recorder, sweepInterval).Run(ctx)

	log.Printf("Starting casedesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = store.Close()
	log.Println("Stopped")
}
