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

package normalize

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// Snowball algorithm names by ISO 639-1 code
var snowballLanguages = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"nb": "norwegian",
	"nn": "norwegian",
	"hu": "hungarian",
}

// SnowballLanguage returns the Snowball algorithm for an ISO 639-1 code
func SnowballLanguage(code string) (string, bool) {
	lang, ok := snowballLanguages[strings.ToLower(code)]
	return lang, ok
}

type stemmer struct {
	cache    map[string]string
	language string
	mu       sync.RWMutex
}

// newStemmer returns a stemmer for the first language Snowball supports, or
// nil when there is none
func newStemmer(languages []string) *stemmer {
	for _, code := range languages {
		if lang, ok := SnowballLanguage(code); ok {
			return &stemmer{
				language: lang,
				cache:    make(map[string]string),
			}
		}
	}
	return nil
}

func (s *stemmer) stem(word string) string {
	s.mu.RLock()
	cached, ok := s.cache[word]
	s.mu.RUnlock()
	if ok {
		return cached
	}
	stemmed, err := snowball.Stem(word, s.language, true)
	if err != nil || stemmed == "" {
		stemmed = word
	}
	s.mu.Lock()
	s.cache[word] = stemmed
	s.mu.Unlock()
	return stemmed
}
