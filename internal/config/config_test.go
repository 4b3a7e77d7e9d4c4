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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobalConfig() {
	globalConfig = defaultConfig()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toponym.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCompareFullStruct(t *testing.T) {
	resetGlobalConfig()
	path := writeConfig(t, `
databasePath: "/var/lib/toponym/db.sqlite"
languages: ["EN", "no"]
countries: ["no"]
adjacents: ["se", "fi"]
seedRows: 500
wikiRows: 20
wikiPause: "1s"
matchThreshold: 0.5
matchRounds: 2
clusterRadius: 25
apiPort: 9000
stem: true
`)
	expected := defaultConfig()
	expected.DatabasePath = "/var/lib/toponym/db.sqlite"
	expected.Languages = []string{"en", "no"}
	expected.Countries = []string{"NO"}
	expected.Adjacents = []string{"SE", "FI"}
	expected.SeedRows = 500
	expected.WikiRows = 20
	expected.WikiPause = "1s"
	expected.MatchThreshold = 0.5
	expected.MatchRounds = 2
	expected.ClusterRadius = 25
	expected.ApiPort = 9000
	expected.Stem = true

	actual, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
	assert.Same(t, actual, GetConfig())
}

func TestLoadConfigSection(t *testing.T) {
	resetGlobalConfig()
	path := writeConfig(t, `
config:
  matchRounds: 7
  matchThreshold: 0.5
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MatchRounds)
	assert.InDelta(t, 0.5, cfg.MatchThreshold, 1e-9)
	// Settings missing from the section keep their defaults
	want := defaultConfig()
	assert.InDelta(t, want.ClusterRadius, cfg.ClusterRadius, 1e-9)
	assert.Equal(t, want.DatabasePath, cfg.DatabasePath)
	assert.Equal(t, want.SeedRows, cfg.SeedRows)
	assert.Equal(t, want.Languages, cfg.Languages)
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadEnvOverrides(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("TOPONYM_DATABASE_PATH", "/tmp/env.sqlite")
	t.Setenv("TOPONYM_PORT", "9999")
	t.Setenv("TOPONYM_LANGUAGES", "en,de")
	t.Setenv("TOPONYM_MATCH_THRESHOLD", "0.9")
	cfg, err := LoadConfig(writeConfig(t, "databasePath: /tmp/file.sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.sqlite", cfg.DatabasePath)
	assert.Equal(t, uint(9999), cfg.ApiPort)
	assert.Equal(t, []string{"en", "de"}, cfg.Languages)
	assert.InDelta(t, 0.9, cfg.MatchThreshold, 1e-9)
}

func TestLoadInvalid(t *testing.T) {
	testDefs := []struct {
		name    string
		content string
	}{
		{name: "threshold", content: "matchThreshold: 1.5\n"},
		{name: "rounds", content: "matchRounds: 0\n"},
		{name: "radius", content: "clusterRadius: -1\n"},
		{name: "wiki rows", content: "wikiRows: 501\n"},
		{name: "pause", content: "wikiPause: soon\n"},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			resetGlobalConfig()
			_, err := LoadConfig(writeConfig(t, testDef.content))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
	resetGlobalConfig()
	_, err := LoadConfig(writeConfig(t, "languages: [unclosed\n"))
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	resetGlobalConfig()
	cfg := defaultConfig()
	cfg.Countries = []string{"no"}
	cfg.WikiDrain = true
	path := filepath.Join(t.TempDir(), "nested", "toponym.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NO"}, loaded.Countries)
	assert.True(t, loaded.WikiDrain)
	pause, err := loaded.WikiPauseDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, pause)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	assert.Same(t, cfg, FromContext(WithContext(context.Background(), cfg)))
}
