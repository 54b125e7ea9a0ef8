package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	chequeHandler "chequeverify/internal/cheque/handler"
	chequeMetrics "chequeverify/internal/cheque/metrics"
	chequeStore "chequeverify/internal/cheque/store"
	"chequeverify/internal/credential"
	"chequeverify/internal/platform/auditpipe"
	"chequeverify/internal/platform/config"
	"chequeverify/internal/platform/database"
	"chequeverify/internal/platform/httpserver"
	"chequeverify/internal/platform/logger"
	"chequeverify/internal/platform/metrics"
	httptransport "chequeverify/internal/transport/http"
	authmw "chequeverify/pkg/platform/middleware/auth"
)

var version = "dev"

// main wires the internal data-access tier.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.APIFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.API, log *slog.Logger) error {
	reg := metrics.New("api", version)
	cm := chequeMetrics.New(reg)

	pipe, err := auditpipe.New(ctx, "api", cfg.Kafka, log, reg)
	if err != nil {
		return err
	}
	defer pipe.Close()

	fetcher, closeStore, err := recordStore(ctx, cfg, log, cm)
	if err != nil {
		return err
	}
	defer closeStore()

	var verifier authmw.TokenVerifier
	switch {
	case cfg.AuthDisabled:
		log.Warn("API_AUTH_DISABLED=true; record lookups are unauthenticated")
	case cfg.Credential.Secret == "":
		log.Error("INTER_TIER_SECRET not set; record lookups will fail until it is configured")
	default:
		v, err := credential.NewVerifier(credential.Config{
			Secret:   cfg.Credential.Secret,
			Issuer:   cfg.Credential.Issuer,
			Audience: cfg.Credential.Audience,
			Leeway:   cfg.Credential.Leeway,
		}, nil)
		if err != nil {
			return err
		}
		verifier = credential.NewVerifierAdapter(v)
	}

	handler := chequeHandler.New(fetcher, log, cm, pipe.Publisher)
	router := httptransport.NewAPIRouter(handler, httptransport.APIConfig{
		RequireCredential: authmw.RequireCredential(verifier, log, authmw.Options{
			Disabled: cfg.AuthDisabled,
			Audit:    pipe.Publisher,
			Route:    chequeHandler.ChequeRoute,
			OnReject: cm.IncrementAuthRejection,
		}),
		Metrics: reg.Handler(),
	}, log)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting api", "addr", cfg.Addr, "record_store", cfg.RecordStore, "version", version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Serve(gctx, srv, cfg.ShutdownTimeout, log) })
	g.Go(func() error { return pipe.Run(gctx) })
	return g.Wait()
}

func recordStore(ctx context.Context, cfg config.API, log *slog.Logger, m *chequeMetrics.Metrics) (chequeStore.Fetcher, func(), error) {
	if cfg.RecordStore == "memory" {
		mem := chequeStore.NewInMemory()
		if cfg.RecordSeedFile != "" {
			if err := mem.LoadSeedFile(cfg.RecordSeedFile); err != nil {
				return nil, nil, err
			}
		}
		log.Warn("serving records from memory", "records", mem.Len())
		return mem, func() {}, nil
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return chequeStore.NewPostgres(db, cfg.Database.Table, cfg.Database.QueryTimeout, log, m), closeDB(db, log), nil
}

func closeDB(db *sql.DB, log *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("closing database pool", "error", err)
		}
	}
}
