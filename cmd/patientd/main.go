package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/marianoklecha/turnos-core/internal/api/router"
	"github.com/marianoklecha/turnos-core/internal/backend"
	"github.com/marianoklecha/turnos-core/internal/booking"
	"github.com/marianoklecha/turnos-core/internal/bus"
	appconfig "github.com/marianoklecha/turnos-core/internal/config"
	"github.com/marianoklecha/turnos-core/internal/data"
	"github.com/marianoklecha/turnos-core/internal/family"
	"github.com/marianoklecha/turnos-core/internal/http/handlers"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/observability/metrics"
	"github.com/marianoklecha/turnos-core/internal/turns"
	"github.com/marianoklecha/turnos-core/internal/ui"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting turnos patient core",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	machineMetrics := metrics.NewMachineMetrics(registry)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, availability caching disabled", "error", err)
			redisClient = nil
		}
		cancel()
	}

	apiClient := backend.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	turnService := turns.NewService(apiClient, logger)
	familyService := family.NewService(apiClient, logger)
	availabilityCache := turns.NewAvailabilityCache(redisClient, cfg.AvailabilityTTL)
	checker := turns.NewChecker(turnService, availabilityCache, logger)

	hub := ui.NewHub(cfg.InitialRoute, logger)
	gateway := data.NewGateway(turnService, familyService, logger)

	runnerOpts := []machine.RunnerOption{
		machine.WithQueueSize(cfg.MachineQueueSize),
		machine.WithMetrics(machineMetrics),
	}
	turnMachine := booking.New(booking.Deps{
		Turns:        turnService,
		Availability: checker,
		Data:         gateway,
		UI:           hub,
	}, logger, runnerOpts...)
	familyMachine := family.New(familyService, gateway, hub, logger, runnerOpts...)
	gateway.SetTurnMachine(turnMachine)

	machineBus := bus.New(logger)
	machineBus.Register(turnMachine)
	machineBus.Register(familyMachine)

	binder := newIdentityBinder(gateway, familyMachine, logger)
	machineHandler := handlers.NewMachineHandler(machineBus, map[string]handlers.EventDecoder{
		booking.MachineID: booking.DecodeEvent,
		family.MachineID:  family.DecodeEvent,
	}, binder, logger)
	streamHandler := handlers.NewSnapshotStreamHandler(machineBus, logger)
	uiHandler := handlers.NewUIHandler(hub, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Machines:           machineHandler,
		SnapshotStream:     streamHandler,
		UI:                 uiHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AuthJWTSecret:      cfg.AuthJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := turnMachine.Stop(ctx); err != nil {
		logger.Warn("turn machine stop timed out", "error", err)
	}
	if err := familyMachine.Stop(ctx); err != nil {
		logger.Warn("family machine stop timed out", "error", err)
	}
	gateway.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("shutdown complete")
}

// identityBinder pushes the verified caller identity into the data layer
// and the family machine, deduplicating per token so repeated requests do
// not retrigger refreshes.
type identityBinder struct {
	gateway *data.Gateway
	family  *family.Machine
	logger  *logging.Logger

	mu        sync.Mutex
	lastToken string
}

func newIdentityBinder(gateway *data.Gateway, familyMachine *family.Machine, logger *logging.Logger) *identityBinder {
	return &identityBinder{gateway: gateway, family: familyMachine, logger: logger.Named("identity")}
}

func (b *identityBinder) Bind(accessToken, patientID string) {
	b.mu.Lock()
	if accessToken == b.lastToken {
		b.mu.Unlock()
		return
	}
	b.lastToken = accessToken
	b.mu.Unlock()

	b.logger.Info("identity bound", "patient_id", patientID)
	b.gateway.SetAuth(accessToken, patientID)
	if err := b.family.Dispatch(context.Background(), family.SetAuth{AccessToken: accessToken, UserID: patientID}); err != nil {
		b.logger.Warn("family identity propagation failed", "error", err)
	}
}
