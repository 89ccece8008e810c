package main

import (
	"kiro-console/internal/config"
	"kiro-console/internal/console"
	"kiro-console/internal/logging"
	"kiro-console/internal/monitoring"
	"kiro-console/internal/poolapi"

	log "github.com/sirupsen/logrus"
)

const slowCallHistory = 200

func clientOptions(cfg *config.Config, slow *monitoring.SlowCallLog) poolapi.Options {
	return poolapi.Options{
		BaseURL:       cfg.Upstream.BaseURL,
		Token:         cfg.Upstream.Token,
		RetryMax:      cfg.Upstream.RetryMax,
		Timeout:       cfg.Upstream.Timeout(),
		HealthTimeout: cfg.Upstream.HealthTimeout(),
		SlowCalls:     slow,
	}
}

// withDebugOverride wraps a config source so -debug survives every read,
// including the per-request reads of the server and later reloads.
func withDebugOverride(get func() *config.Config, force bool) func() *config.Config {
	if !force {
		return get
	}
	return func() *config.Config {
		cfg := get()
		cfg.Logging.Debug = true
		return cfg
	}
}

// applyRuntimeConfig pushes the settings that can change without a restart.
// Listen address, upstream URL and provider kind need one.
func applyRuntimeConfig(next *config.Config, forceDebug bool, ctrl *console.Controller, slow *monitoring.SlowCallLog) {
	logCfg := next.Logging
	if forceDebug {
		logCfg.Debug = true
	}
	if err := logging.Setup(logCfg); err != nil {
		log.WithError(err).Warn("failed to reconfigure logging")
	}
	if ctrl != nil {
		ctrl.Transient().SetTTL(next.Console.SwitchResultTTL())
		ctrl.Batch().SetPacing(next.Console.BatchPacing)
	}
	if slow != nil {
		slow.SetThreshold(next.Upstream.SlowCallThreshold())
	}
}
