// Copyright 2025 Blink Labs Software
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

package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/normalize"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var memoryDbCounter atomic.Uint64

// Config holds the settings used to open a Database
type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Normalizer computes name signatures for inserted and renamed toponyms
	Normalizer *normalize.Normalizer
	// Path is the sqlite database file. An in-memory database is used when empty.
	Path string
}

// Database is the store gateway. All durable rows live here.
type Database struct {
	config      Config
	logger      *slog.Logger
	db          *gorm.DB
	normalizer  *normalize.Normalizer
	metrics     *storeMetrics
	timerVacuum *time.Timer
	timerMutex  sync.Mutex
	closed      bool
	vacuumWG    sync.WaitGroup
}

// New opens (and migrates) the database described by cfg
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	var gormDb *gorm.DB
	var err error
	if cfg.Path == "" {
		// Each in-memory database gets its own name so instances stay isolated
		gormDb, err = gorm.Open(
			sqlite.Open(fmt.Sprintf(
				"file:toponym%d?mode=memory&cache=shared",
				memoryDbCounter.Add(1),
			)),
			gormConfig,
		)
		if err != nil {
			return nil, err
		}
		// Shared-cache connections lock whole tables, so stick to one
		sqlDb, err := gormDb.DB()
		if err != nil {
			return nil, err
		}
		sqlDb.SetMaxOpenConns(1)
	} else {
		// Make sure that we can read the parent dir, and create if it doesn't exist
		dataDir := filepath.Dir(cfg.Path)
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		// WAL journal mode, wait on locks, increase cache size to 50MB (from 2MB)
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=cache_size(-50000)"
		gormDb, err = gorm.Open(
			sqlite.Open(fmt.Sprintf("file:%s?%s", cfg.Path, connOpts)),
			gormConfig,
		)
		if err != nil {
			return nil, err
		}
	}
	d := &Database{
		config:     *cfg,
		db:         gormDb,
		logger:     cfg.Logger,
		normalizer: cfg.Normalizer,
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) init() error {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "database")
	if d.normalizer == nil {
		d.normalizer = normalize.New(normalize.Config{})
	}
	// Configure tracing for GORM
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if d.config.PromRegistry != nil {
		d.metrics = newStoreMetrics(d.config.PromRegistry)
	}
	for _, model := range models.MigrateModels {
		d.logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := d.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	for _, trigger := range models.Triggers {
		if err := d.db.Exec(trigger).Error; err != nil {
			return fmt.Errorf("failed to create trigger: %w", err)
		}
	}
	// Schedule daily database vacuum to free unused space
	d.scheduleDailyVacuum()
	return nil
}

func (d *Database) runVacuum() error {
	d.timerMutex.Lock()
	if d.config.Path == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()
	return d.DB().Exec("VACUUM").Error
}

// scheduleDailyVacuum schedules a daily vacuum operation
func (d *Database) scheduleDailyVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed {
		return
	}
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
	}
	daily := time.Duration(24) * time.Hour
	f := func() {
		d.logger.Debug("running vacuum on sqlite database")
		// schedule next run
		defer d.scheduleDailyVacuum()
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in database",
				"error", err,
			)
		}
	}
	d.timerVacuum = time.AfterFunc(daily, f)
}

// DB returns the underlying GORM database handle
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Normalizer returns the normalizer used for stored name signatures
func (d *Database) Normalizer() *normalize.Normalizer {
	return d.normalizer
}

// Path returns the sqlite file path, or an empty string for in-memory databases
func (d *Database) Path() string {
	return d.config.Path
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close stops background work and closes the database connection
func (d *Database) Close() error {
	d.timerMutex.Lock()
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()
	// Wait for any in-flight vacuum operations to complete
	d.vacuumWG.Wait()
	sqlDb, err := d.DB().DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDb.Close()
}

// withTxn runs fn in txn, or in a new read-write transaction when txn is nil
func (d *Database) withTxn(txn *Txn, fn func(*Txn) error) error {
	if txn != nil {
		return fn(txn)
	}
	return d.Transaction(true).Do(fn)
}

// handle returns the transaction handle if one is given, otherwise the shared handle
func (d *Database) handle(txn *Txn) *gorm.DB {
	if txn == nil {
		return d.DB()
	}
	return txn.Tx()
}

// storeError logs a failed store operation and returns it wrapped
func (d *Database) storeError(operation string, err error, args ...any) error {
	d.logger.Error(
		"store operation failed",
		append([]any{"operation", operation, "error", err}, args...)...,
	)
	if d.metrics != nil {
		d.metrics.errors.WithLabelValues(operation).Inc()
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}
