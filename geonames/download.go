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

package geonames

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultBaseURL serves the GeoNames dumps
	DefaultBaseURL = "http://download.geonames.org/export/dump/"
	DefaultDir     = "geonames"

	downloadTimeout = 30 * time.Minute
)

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Fetcher makes GeoNames dumps available in a local directory, downloading
// and unpacking them when missing
type Fetcher struct {
	logger  *slog.Logger
	client  *http.Client
	dir     string
	baseURL string
}

func NewFetcher(logger *slog.Logger, dir string, baseURL string, client *http.Client) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if dir == "" {
		dir = DefaultDir
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	return &Fetcher{
		logger:  logger.With("component", "geonames"),
		client:  client,
		dir:     dir,
		baseURL: baseURL,
	}
}

// Dir is where dumps are stored
func (f *Fetcher) Dir() string {
	return f.dir
}

// Text returns the path of <name>.txt, extracting it from <name>.zip when
// it does not exist yet
func (f *Fetcher) Text(ctx context.Context, name string) (string, error) {
	txtPath := filepath.Join(f.dir, name+".txt")
	if exists(txtPath) {
		return txtPath, nil
	}
	zipPath := filepath.Join(f.dir, name+".zip")
	if !exists(zipPath) {
		if err := f.download(ctx, name+".zip", zipPath); err != nil {
			return "", err
		}
	}
	if err := f.extract(zipPath); err != nil {
		return "", err
	}
	if !exists(txtPath) {
		return "", fmt.Errorf("%s does not contain %s.txt", zipPath, name)
	}
	return txtPath, nil
}

// Plain returns the path of a dump that is published uncompressed
func (f *Fetcher) Plain(ctx context.Context, file string) (string, error) {
	path := filepath.Join(f.dir, file)
	if exists(path) {
		return path, nil
	}
	if err := f.download(ctx, file, path); err != nil {
		return "", err
	}
	return path, nil
}

func (f *Fetcher) download(ctx context.Context, file string, dest string) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create geonames dir: %w", err)
	}
	url := f.baseURL + file
	f.logger.Info("downloading", "url", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, url, resp.StatusCode)
	}
	tmp, err := os.CreateTemp(f.dir, file+".*.part")
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close download file: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}

func (f *Fetcher) extract(zipPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", zipPath, err)
	}
	defer r.Close()
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		// Archive paths are flattened into the dump directory
		dest := filepath.Join(f.dir, filepath.Base(entry.Name))
		if err := extractFile(entry, dest); err != nil {
			return fmt.Errorf("extract %s from %s: %w", entry.Name, zipPath, err)
		}
		f.logger.Debug("extracted", "file", dest)
	}
	return nil
}

func extractFile(entry *zip.File, dest string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
