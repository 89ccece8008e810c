package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"kiro-console/internal/config"
	"kiro-console/internal/console"
	"kiro-console/internal/constants"
	"kiro-console/internal/events"
	"kiro-console/internal/logging"
	"kiro-console/internal/monitoring"
	tracing "kiro-console/internal/monitoring/tracing"
	"kiro-console/internal/poolapi"
	srv "kiro-console/internal/server"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default: search well-known locations)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	hashKey := flag.String("hash-key", "", "Print the bcrypt hash of an access key and exit")
	flag.Parse()

	if *hashKey != "" {
		hash, err := config.HashAccessKey(*hashKey)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	path, err := config.ResolvePath(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to resolve config path")
	}
	manager, err := config.NewManager(path)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	defer manager.Close()

	currentConfig := withDebugOverride(manager.Get, *debug)
	cfg := currentConfig()
	if err := logging.Setup(cfg.Logging); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}
	log.WithFields(log.Fields{
		"config":   manager.Path(),
		"version":  constants.GetFullVersion(),
		"upstream": cfg.Upstream.BaseURL,
		"kind":     cfg.Upstream.ProviderKind,
	}).Info("starting kiro console")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	traceShutdown, err := tracing.Init(ctx, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.WithError(err).Warn("failed to initialize tracing")
	}
	if traceShutdown != nil {
		defer func() {
			if err := traceShutdown(context.Background()); err != nil {
				log.WithError(err).Warn("failed to shutdown tracing")
			}
		}()
	}

	hub := events.NewHub()
	manager.SetEventPublisher(hub)

	slow := monitoring.NewSlowCallLog(cfg.Upstream.SlowCallThreshold(), slowCallHistory)
	client, err := poolapi.New(clientOptions(cfg, slow))
	if err != nil {
		log.WithError(err).Fatal("failed to build provider pool client")
	}

	ctrl := console.NewController(ctx, client, console.HubNotifier{Publisher: hub}, hub, console.Options{
		ProviderKind: cfg.Upstream.ProviderKind,
		TransientTTL: cfg.Console.SwitchResultTTL(),
		BatchPacing:  cfg.Console.BatchPacing,
	})
	if err := ctrl.Load(ctx); err != nil {
		// The console still starts; the list stays empty until a reload succeeds.
		log.WithError(err).Warn("initial credential load failed")
	}

	manager.OnChange(func(next *config.Config) {
		applyRuntimeConfig(next, *debug, ctrl, slow)
	})

	stream := srv.NewStream(0, 0)
	stream.Attach(hub)
	defer stream.Close()

	engine := srv.BuildEngine(srv.Dependencies{
		Controller:  ctrl,
		Stream:      stream,
		SlowCalls:   slow,
		Config:      currentConfig,
		BaseContext: ctx,
	})

	httpSrv := &http.Server{Addr: cfg.Server.Listen, Handler: engine}
	go func() {
		log.Infof("console API listening on %s", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("console server stopped")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("Shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	cancel()
	ctrl.Panels().Wait()
	log.Info("Server stopped")
}
