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

package augment

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// titleSeparator splits a title file line into title and item id
const titleSeparator = "___"

// titleCache memoises title to item lookups in memory and, when a path is
// set, in an append-only title file that survives restarts
type titleCache struct {
	memory *gocache.Cache
	path   string
	mu     sync.Mutex
	loaded bool
}

func newTitleCache(path string) *titleCache {
	return &titleCache{
		memory: gocache.New(gocache.NoExpiration, 10*time.Minute),
		path:   path,
	}
}

// get returns the cached item for title. An empty item is a cached miss.
func (c *titleCache) get(title string) (string, bool, error) {
	if err := c.load(); err != nil {
		return "", false, err
	}
	if val, found := c.memory.Get(title); found {
		return val.(string), true, nil
	}
	return "", false, nil
}

func (c *titleCache) put(title string, item string) error {
	c.memory.Set(title, item, gocache.NoExpiration)
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open title file: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s%s%s\n", title, titleSeparator, item); err != nil {
		return fmt.Errorf("write title file: %w", err)
	}
	return nil
}

func (c *titleCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded || c.path == "" {
		c.loaded = true
		return nil
	}
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.loaded = true
			return nil
		}
		return fmt.Errorf("open title file: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		title, item, ok := strings.Cut(scanner.Text(), titleSeparator)
		if !ok || title == "" {
			continue
		}
		// Later lines win
		c.memory.Set(title, strings.TrimSpace(item), gocache.NoExpiration)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read title file: %w", err)
	}
	c.loaded = true
	return nil
}
