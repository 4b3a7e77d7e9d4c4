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

package geonames_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/blinklabs-io/toponym/augment"
	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/geonames"
	"github.com/blinklabs-io/toponym/internal/test/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func place(fields ...string) string {
	row := make([]string, 19)
	copy(row, fields)
	return strings.Join(row, "\t")
}

var (
	norwayDump = strings.Join([]string{
		place("3161732", "Bergen", "Bergen", "Bjorgvin", "60.39299", "5.32415", "P", "PPLA", "NO", "", "46", "4601"),
		place("3133880", "Trondheim", "Trondheim", "", "63.43049", "10.39506", "P", "PPLA", "NO", "", "50", "5001"),
		place("3137966", "Vestland", "Vestland", "", "60.5", "6.0", "A", "ADM1", "NO", "", "46", ""),
	}, "\n") + "\n"
	swedenDump = place("2711537", "Göteborg", "Goteborg", "", "57.70716", "11.96679", "P", "PPLA", "SE", "", "28", "1480") + "\n"
	adminCodes = "NO.46.4601\tBergen\tBergen\t6453313\nSE.28.1480\tGöteborg\tGoteborg\t2711533\n"
	altNames   = strings.Join([]string{
		"1\t3161732\tno\tBjørgvin\t\t\t\t\t\t",
		"2\t3161732\tde\tBergen in Norwegen\t\t\t\t\t\t",
		"3\t3161732\tlink\thttps://no.wikipedia.org/wiki/Bergen\t\t\t\t\t\t",
		"4\t3133880\tno\tNidaros\t\t\t\t\t\t",
		"5\t9999999\tno\tNowhere\t\t\t\t\t\t",
		"6\t2711537\tlink\thttps://en.wikipedia.org/wiki/Gothenburg\t\t\t\t\t\t",
	}, "\n") + "\n"
)

func zipped(t *testing.T, name string, content string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type dumpServer struct {
	*httptest.Server
	downloads atomic.Int32
}

func newDumpServer(t *testing.T) *dumpServer {
	files := map[string][]byte{
		"/NO.zip":               zipped(t, "NO.txt", norwayDump),
		"/SE.zip":               zipped(t, "SE.txt", swedenDump),
		"/alternateNamesV2.zip": zipped(t, "alternateNamesV2.txt", altNames),
		"/admin2Codes.txt":      []byte(adminCodes),
	}
	s := &dumpServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.downloads.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestParsePlaces(t *testing.T) {
	var places []geonames.Place
	err := geonames.ParsePlaces("NO", strings.NewReader(norwayDump), func(p geonames.Place) error {
		places = append(places, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, places, 3)
	assert.Equal(t, geonames.Place{
		GeonameID:    "3161732",
		Name:         "Bergen",
		ASCIIName:    "Bergen",
		Latitude:     60.39299,
		Longitude:    5.32415,
		FeatureClass: "P",
		FeatureCode:  "PPLA",
		CountryCode:  "NO",
		Admin1Code:   "46",
		Admin2Code:   "4601",
	}, places[0])
}

func TestParseMalformedRows(t *testing.T) {
	testDefs := []struct {
		name  string
		parse func() error
		line  int
	}{
		{
			name: "short alternate name row",
			parse: func() error {
				input := "1\t2\tno\tBergen\t\t\t\t\t\t\n2\t3\tno\n"
				return geonames.ParseAltNames("alt", strings.NewReader(input), func(geonames.AltName) error { return nil })
			},
			line: 2,
		},
		{
			name: "bad latitude",
			parse: func() error {
				input := place("1", "X", "X", "", "north", "5", "P")
				return geonames.ParsePlaces("NO", strings.NewReader(input), func(geonames.Place) error { return nil })
			},
			line: 1,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := testDef.parse()
			var rowErr *geonames.RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, testDef.line, rowErr.Line)
		})
	}
}

func TestAltNameLinks(t *testing.T) {
	assert.True(t, geonames.AltName{Language: "link", Name: "https://no.wikipedia.org/wiki/Bergen"}.IsWikipediaLink())
	assert.False(t, geonames.AltName{Language: "link", Name: "https://example.org/Bergen"}.IsWikipediaLink())
	assert.False(t, geonames.AltName{Language: "no", Name: "wikipedia"}.IsWikipediaLink())
}

func TestFetcherReusesLocalFiles(t *testing.T) {
	s := newDumpServer(t)
	dir := t.TempDir()
	fetcher := geonames.NewFetcher(nil, dir, s.URL, s.Client())
	ctx := context.Background()

	path, err := fetcher.Text(ctx, "NO")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "NO.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, norwayDump, string(data))

	_, err = fetcher.Text(ctx, "NO")
	require.NoError(t, err)
	_, err = fetcher.Plain(ctx, "admin2Codes.txt")
	require.NoError(t, err)
	_, err = fetcher.Plain(ctx, "admin2Codes.txt")
	require.NoError(t, err)
	assert.Equal(t, int32(2), s.downloads.Load())

	_, err = fetcher.Text(ctx, "XX")
	require.ErrorIs(t, err, geonames.ErrUnexpectedStatus)
}

func newSeeder(t *testing.T, queue func(*database.Database) *augment.Queue) (*testutil.Fixture, *geonames.Seeder, *prometheus.Registry) {
	s := newDumpServer(t)
	f := testutil.NewFixture(t)
	registry := prometheus.NewRegistry()
	cfg := geonames.Config{
		Database:     f.DB,
		PromRegistry: registry,
		Fetcher:      geonames.NewFetcher(nil, t.TempDir(), s.URL, s.Client()),
		Countries:    []string{"NO"},
		Adjacents:    []string{"SE"},
		Languages:    []string{"no"},
		BatchRows:    1,
	}
	if queue != nil {
		cfg.Queue = queue(f.DB)
	}
	seeder, err := geonames.New(cfg)
	require.NoError(t, err)
	return f, seeder, registry
}

type fakeResolver map[string]string

func (r fakeResolver) BaseItem(_ context.Context, link string) (string, error) {
	return r[link], nil
}

func TestSeed(t *testing.T) {
	f, seeder, registry := newSeeder(t, func(db *database.Database) *augment.Queue {
		q, err := augment.NewQueue(augment.QueueConfig{
			Database: db,
			Resolver: fakeResolver{"https://no.wikipedia.org/wiki/Bergen": "q26793"},
		})
		require.NoError(t, err)
		return q
	})
	require.NoError(t, seeder.Seed(context.Background()))

	region, err := f.DB.GetParentRegion("NO.46.4601", nil)
	require.NoError(t, err)
	require.NotNil(t, region)
	assert.Equal(t, "Bergen", region.Name)
	region, err = f.DB.GetParentRegion("SE.28.1480", nil)
	require.NoError(t, err)
	assert.Nil(t, region, "adjacent countries get no regions")

	foreign, err := f.DB.GetPosition(models.ForeignPositionID, nil)
	require.NoError(t, err)
	assert.Equal(t, geonames.SentinelSourceName, foreign.SourceName)

	bergen, err := f.DB.GetPosition("3161732", nil)
	require.NoError(t, err)
	assert.Equal(t, "geonno", bergen.SourceName)
	assert.Equal(t, "NO.46.4601", bergen.ParentID)
	gothenburg, err := f.DB.GetPosition("2711537", nil)
	require.NoError(t, err)
	assert.Equal(t, "geonse", gothenburg.SourceName)
	assert.Equal(t, "0", gothenburg.ParentID)
	_, err = f.DB.GetPosition("3137966", nil)
	require.ErrorIs(t, err, models.ErrPositionNotFound, "administrative features are skipped")

	listing, err := f.DB.PositionToponyms("3161732", nil)
	require.NoError(t, err)
	assert.Contains(t, listing, ": Bergen : geonno")
	assert.Contains(t, listing, ": Bjørgvin : geoalt")
	assert.NotContains(t, listing, "Norwegen", "names outside the configured languages are skipped")

	sources, err := f.DB.ListSources(false, nil)
	require.NoError(t, err)
	var names []string
	for _, source := range sources {
		names = append(names, source.Name)
	}
	assert.ElementsMatch(t, []string{"geoalt", "geonno", "geonse", "none", "wikdat"}, names)

	pending, err := f.DB.CountPendingWiki(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending, "only resolved links are pending")

	assert.InDelta(t, 3, testutil.CounterValue(t, registry, "toponym_geonames_positions_seeded_total"), 0)
}

func TestSeedTwice(t *testing.T) {
	f, seeder, _ := newSeeder(t, nil)
	ctx := context.Background()
	require.NoError(t, seeder.SeedAdmin(ctx))
	require.NoError(t, seeder.SeedPositions(ctx))
	require.NoError(t, seeder.SeedPositions(ctx))
	ids, err := f.DB.PositionIDs(nil)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestNewRequiresDatabase(t *testing.T) {
	_, err := geonames.New(geonames.Config{})
	require.ErrorIs(t, err, geonames.ErrNoDatabase)
}
