// Package app assembles the replication server: transport, engine,
// built-in components and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syncwire/server/internal/components"
	"syncwire/server/internal/replicate"
	"syncwire/server/internal/rpc"
	"syncwire/server/internal/server"
	"syncwire/server/internal/stablehash"
	"syncwire/server/internal/telemetry"
	wstransport "syncwire/server/internal/transport/ws"
)

// Config configures a full server process.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// Engine tunes the tick loop and replication.
	Engine server.Config
	// SceneName keys the scene id clients are spawned into.
	SceneName string
	// Logger receives operational logging; nil uses the stdlib default.
	Logger telemetry.Logger
}

// DefaultConfig listens on :8080.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		Engine:    server.DefaultConfig(),
		SceneName: "scenes/default",
	}
}

// Run wires everything together and serves until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	metrics := telemetry.NewPromMetrics(nil, "syncwire")

	transport := wstransport.New(wstransport.Config{
		MaxMessageSize: int64(cfg.Engine.MaxPacketSize + 64),
	}, logger)

	// Remote calls register once at assembly time; the registry is
	// read-only while the tick loop runs.
	registry := rpc.NewRegistry()
	if err := components.RegisterRemoteCalls(registry); err != nil {
		return fmt.Errorf("register remote calls: %w", err)
	}

	engine := server.New(cfg.Engine, transport, registry, logger, metrics)

	sceneID := stablehash.ID64(cfg.SceneName)
	engine.SetPlayerFactory(func(connID uint64, netID uint32) (*replicate.Identity, error) {
		transformCfg := components.DefaultTransformConfig()
		transformCfg.Direction = replicate.ClientToServer
		transform := components.NewTransform(transformCfg)
		transform.SetRpcSender(engine)
		status := components.NewStatus(replicate.SyncModeOwner)
		status.SetHealth(100)

		identity, err := replicate.NewIdentity(netID, transform, status)
		if err != nil {
			return nil, err
		}
		identity.SceneID = sceneID
		return identity, nil
	})

	if err := engine.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	router.Handle("/ws", transport.Handler())

	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- engine.Run(loopCtx)
	}()

	serveDone := make(chan error, 1)
	go func() {
		logger.Printf("server listening on %s", cfg.Addr)
		serveDone <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		cancel()
		<-loopDone
		return fmt.Errorf("http server: %w", err)
	case err := <-loopDone:
		srv.Close()
		return fmt.Errorf("tick loop: %w", err)
	}

	cancel()
	<-loopDone
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
