package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	admissionMetrics "chequeverify/internal/admission/metrics"
	admissionmw "chequeverify/internal/admission/middleware"
	admissionModels "chequeverify/internal/admission/models"
	admissionService "chequeverify/internal/admission/service"
	admissionStore "chequeverify/internal/admission/store"
	"chequeverify/internal/credential"
	"chequeverify/internal/gateway"
	"chequeverify/internal/platform/auditpipe"
	"chequeverify/internal/platform/config"
	"chequeverify/internal/platform/httpserver"
	"chequeverify/internal/platform/logger"
	"chequeverify/internal/platform/metrics"
	platformredis "chequeverify/internal/platform/redis"
	httptransport "chequeverify/internal/transport/http"
	verifyHandler "chequeverify/internal/verification/handler"
	verifyMetrics "chequeverify/internal/verification/metrics"
	verifyService "chequeverify/internal/verification/service"
)

var version = "dev"

// main wires the public verification tier and keeps the lifecycle small.
// Business logic lives in the internal feature packages.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.BackendFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("backend exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Backend, log *slog.Logger) error {
	reg := metrics.New("backend", version)

	pipe, err := auditpipe.New(ctx, "backend", cfg.Kafka, log, reg)
	if err != nil {
		return err
	}
	defer pipe.Close()

	var minter gateway.Minter
	if cfg.Credential.Secret != "" {
		issuer, err := credential.NewIssuer(credentialConfig(cfg.Credential))
		if err != nil {
			return err
		}
		minter = issuer
	}
	gw, err := gateway.New(gateway.Config{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.APITimeout,
		RequireAuth: cfg.RequireAuth,
	}, minter, log, gateway.NewMetrics(reg))
	if err != nil {
		return err
	}
	if minter == nil {
		log.Warn("INTER_TIER_SECRET not set; api tier calls will carry no credential")
	}

	svc, err := verifyService.New(gw,
		verifyService.WithLogger(log),
		verifyService.WithAuditPublisher(pipe.Publisher),
	)
	if err != nil {
		return err
	}

	counter, closeCounter, err := admissionCounter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCounter()

	am := admissionMetrics.New(reg)
	admission, err := admissionService.New(counter,
		admissionService.WithLogger(log),
		admissionService.WithMetrics(am),
		admissionService.WithPolicy(admissionModels.ClassGeneral, policy(cfg.Admission.General)),
		admissionService.WithPolicy(admissionModels.ClassVerify, policy(cfg.Admission.Verify)),
		admissionService.WithPolicy(admissionModels.ClassHealth, policy(cfg.Admission.Health)),
	)
	if err != nil {
		return err
	}
	adm := admissionmw.New(admission, log,
		admissionmw.WithDisabled(cfg.Admission.Disabled),
		admissionmw.WithAuditPublisher(pipe.Publisher),
		admissionmw.WithMetrics(am),
	)

	var upstream verifyHandler.UpstreamChecker
	if cfg.HealthCheckUpstream {
		upstream = gw
	}
	handler := verifyHandler.New(svc, log, verifyMetrics.New(reg), pipe.Publisher, upstream)

	router := httptransport.NewBackendRouter(handler, httptransport.BackendConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		General:        adm.Limit(admissionModels.ClassGeneral),
		VerifyDelay:    adm.Delay(admissionModels.ClassVerify),
		VerifyLimit:    adm.Limit(admissionModels.ClassVerify),
		HealthLimit:    adm.Limit(admissionModels.ClassHealth),
		Metrics:        reg.Handler(),
	}, log)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting backend", "addr", cfg.Addr, "api_base_url", cfg.APIBaseURL, "version", version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Serve(gctx, srv, cfg.ShutdownTimeout, log) })
	g.Go(func() error { return pipe.Run(gctx) })
	return g.Wait()
}

// admissionCounter picks the counter store. Redis is wrapped in a fallback to
// process memory so a Redis outage degrades to per-instance limits.
func admissionCounter(ctx context.Context, cfg config.Backend, log *slog.Logger) (admissionStore.Counter, func(), error) {
	if cfg.Admission.Store != "redis" {
		return admissionStore.NewInMemory(), func() {}, nil
	}
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect admission store: %w", err)
	}
	counter := admissionStore.NewFallback(admissionStore.NewRedis(client.Client), admissionStore.NewInMemory(), nil, log)
	return counter, func() {
		if err := client.Close(); err != nil {
			log.Warn("closing redis client", "error", err)
		}
	}, nil
}

func policy(l config.Limit) admissionModels.Policy {
	return admissionModels.Policy{
		Limit:      l.Requests,
		Window:     l.Window,
		DelayAfter: l.DelayAfter,
		DelayStep:  l.DelayStep,
		MaxDelay:   l.MaxDelay,
	}
}

func credentialConfig(c config.Credential) credential.Config {
	return credential.Config{
		Secret:   c.Secret,
		Issuer:   c.Issuer,
		Audience: c.Audience,
		TTL:      c.TTL,
		Leeway:   c.Leeway,
	}
}
