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

// Package api serves the gazetteer over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/toponym/augment"
	"github.com/blinklabs-io/toponym/cluster"
	"github.com/blinklabs-io/toponym/consensus"
	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/export"
	"github.com/blinklabs-io/toponym/matcher"
	"github.com/blinklabs-io/toponym/navigator"
	"github.com/blinklabs-io/toponym/task"
)

const (
	DefaultListenAddress = ":8080"
	DefaultRadiusKm      = 10.0
)

type Config struct {
	ListenAddress string
	// RadiusKm is used by cluster exports that do not name a radius
	RadiusKm float64
}

// Backend holds the components behind the API. Routes whose component is
// nil answer 503.
type Backend struct {
	Database  *database.Database
	Navigator *navigator.Navigator
	Consensus *consensus.Consensus
	Matcher   *matcher.Matcher
	Runner    *task.Runner
	Cluster   *cluster.Engine
	Exporter  *export.Exporter
	Queue     *augment.Queue
}

// Server is the HTTP API server
type Server struct {
	config     Config
	logger     *slog.Logger
	backend    Backend
	httpServer *http.Server
	mu         sync.Mutex
}

func New(cfg Config, backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = DefaultRadiusKm
	}
	return &Server{
		config:  cfg,
		logger:  logger.With("component", "api"),
		backend: backend,
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v0/sources", s.handleListSources)
	mux.HandleFunc("POST /api/v0/sources", s.handleAddSource)
	mux.HandleFunc("POST /api/v0/sources/{name}/toponyms", s.handleAddToponyms)
	mux.HandleFunc("GET /api/v0/toponyms", s.handleBrowseToponyms)
	mux.HandleFunc("GET /api/v0/toponyms/{id}", s.handleToponym)
	mux.HandleFunc("GET /api/v0/positions/{id}", s.handlePosition)
	mux.HandleFunc("GET /api/v0/navigator", s.handleGoto)
	mux.HandleFunc("POST /api/v0/navigator/decide", s.handleDecide)
	mux.HandleFunc("POST /api/v0/navigator/reject", s.handleReject)
	mux.HandleFunc("GET /api/v0/navigator/next-nemo", s.handleNextNemo)
	mux.HandleFunc("POST /api/v0/consensus/resolve", s.handleResolve)
	mux.HandleFunc("POST /api/v0/matcher", s.handleStartMatcher)
	mux.HandleFunc("GET /api/v0/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/v0/tasks/{id}", s.handleTask)
	mux.HandleFunc("DELETE /api/v0/tasks/{id}", s.handleKillTask)
	mux.HandleFunc("GET /api/v0/export/cluster", s.handleClusterExport)
	mux.HandleFunc("GET /api/v0/export/selection", s.handleSelectionExport)
	mux.HandleFunc("GET /api/v0/export/selection-by-year", s.handleYearExport)
	return mux
}

// Start starts the HTTP server in a background goroutine
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	if err := s.startServer(server); err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return err
	}
	s.logger.Info("API listener started on " + s.config.ListenAddress)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		srv := s.httpServer
		s.httpServer = nil
		s.mu.Unlock()
		if srv == nil {
			return
		}
		s.logger.Debug("context cancelled, shutting down API server")
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		//nolint:contextcheck
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}

// Addr returns the bound listen address, or "" when not started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine
func (s *Server) startServer(server *http.Server) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	s.mu.Lock()
	server.Addr = ln.Addr().String()
	s.mu.Unlock()
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}
