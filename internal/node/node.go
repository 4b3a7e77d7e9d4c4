// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blinklabs-io/toponym"
	"github.com/blinklabs-io/toponym/api"
	"github.com/blinklabs-io/toponym/internal/config"
	"github.com/blinklabs-io/toponym/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const wikiTaskName = "wiki"

// Run serves the API until SIGINT or SIGTERM
func Run(cfg *config.Config, logger *slog.Logger) error {
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()
	return Serve(signalCtx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// Serve opens the resolver and runs the API and metrics servers until ctx is done
func Serve(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry prometheus.Registerer,
	gatherer prometheus.Gatherer,
) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	r, err := Open(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	apiServer := api.New(
		api.Config{
			ListenAddress: hostPort(cfg.BindAddr, cfg.ApiPort),
			RadiusKm:      cfg.ClusterRadius,
		},
		r.Backend(),
		logger,
	)
	if err := apiServer.Start(ctx); err != nil {
		return errors.Join(fmt.Errorf("failed to start API: %w", err), r.Close())
	}
	// Metrics listener
	var metricsServer *http.Server
	metricsErr := make(chan error, 1)
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              hostPort(cfg.BindAddr, cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		logger.Info(
			"serving prometheus metrics on "+metricsServer.Addr,
			"component", "node",
		)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
		}()
	}
	if cfg.WikiDrain && r.Queue().Enabled() {
		startWikiDrain(r, logger)
	}

	// Wait for signal or error
	select {
	case <-ctx.Done():
		logger.Info("signal received, initiating graceful shutdown")
	case err = <-metricsErr:
		logger.Error(
			fmt.Sprintf("failed to start metrics listener: %s", err),
			"component", "node",
		)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if metricsServer != nil {
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("metrics server shutdown error", "error", shutdownErr)
		}
	}
	if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
		logger.Error("API server shutdown error", "error", stopErr)
	}
	if closeErr := r.Close(); closeErr != nil {
		logger.Error("shutdown errors occurred", "error", closeErr)
		return errors.Join(err, closeErr)
	}
	logger.Info("shutdown complete")
	return err
}

// startWikiDrain resolves queued Wikidata items in the background
func startWikiDrain(r *toponym.Resolver, logger *slog.Logger) *task.Task {
	return r.Runner().Launch(wikiTaskName, func(ctx context.Context, t *task.Task) error {
		batches, err := r.Queue().Drain(ctx)
		t.SetState(batches)
		if err != nil {
			return err
		}
		logger.Info(
			fmt.Sprintf("wiki queue drained in %d batches", batches),
			"component", "node",
		)
		return nil
	})
}

func hostPort(host string, port uint) string {
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}
