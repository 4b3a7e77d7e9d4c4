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
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/toponym/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DatabasePath:    filepath.Join(t.TempDir(), "toponym.sqlite"),
		GeonamesDir:     t.TempDir(),
		BindAddr:        "127.0.0.1",
		ShutdownTimeout: "5s",
		WikiPause:       "0s",
		MatchScorer:     "exact",
		Languages:       []string{"no"},
		MatchThreshold:  0.8,
		MatchRounds:     2,
		ClusterRadius:   5,
	}
}

func TestOpen(t *testing.T) {
	cfg := testConfig(t)
	r, err := Open(context.Background(), cfg, discardLogger(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, cfg.DatabasePath, r.Database().Path())
	assert.Equal(t, []string{"no"}, r.Database().Normalizer().Config().Languages)
	assert.InDelta(t, 5.0, r.ClusterRadius(), 0)
	assert.False(t, r.Queue().Enabled())
}

func TestOpenInvalidDuration(t *testing.T) {
	cfg := testConfig(t)
	cfg.WikiPause = "later"
	_, err := Open(context.Background(), cfg, discardLogger(), nil)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestWikiDisabled(t *testing.T) {
	err := Wiki(context.Background(), testConfig(t), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	registry := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, cfg, discardLogger(), registry, registry)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", hostPort("0.0.0.0", 8080))
	assert.Equal(t, "[::1]:9", hostPort("::1", 9))
}
