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

// Package normalize turns raw place names into comparable signatures.
//
// A signature is made of the ASCII transliteration of the name, a pattern
// flagging where the name differs from its transliteration, and sorted token
// lists for both spellings. Two names with the same words in a different order
// produce the same token signature.
package normalize

import (
	"regexp"
	"slices"
	"strings"
)

const (
	// Sentinel is the token signature of a name with no surviving tokens
	Sentinel = "_"
	// PatternPlaceholder marks pattern positions changed by transliteration
	PatternPlaceholder = '_'
	// TokenDelimiter wraps every token so substring searches match whole tokens
	TokenDelimiter = ","
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// Config selects the language-dependent parts of the pipeline
type Config struct {
	// Languages are ISO 639-1 codes whose stop words are removed
	Languages []string
	// StopWords are removed in addition to the built-in language lists
	StopWords []string
	// Stem applies Snowball stemming for the first supported language
	Stem bool
}

// Result is the signature of a single name
type Result struct {
	Tokens      string
	ASCIIName   string
	ASCIITokens string
	Pattern     string
}

// Normalizer computes signatures for one configuration. It is safe for
// concurrent use.
type Normalizer struct {
	stemmer *stemmer
	stops   map[string]struct{}
	config  Config
}

// New builds a Normalizer from cfg
func New(cfg Config) *Normalizer {
	n := &Normalizer{
		config: cfg,
		stops:  make(map[string]struct{}),
	}
	for _, lang := range cfg.Languages {
		for _, word := range stopWords[strings.ToLower(lang)] {
			n.stops[word] = struct{}{}
		}
	}
	for _, word := range cfg.StopWords {
		n.stops[strings.ToLower(strings.TrimSpace(word))] = struct{}{}
	}
	if cfg.Stem {
		n.stemmer = newStemmer(cfg.Languages)
	}
	return n
}

// Config returns the configuration the Normalizer was built with
func (n *Normalizer) Config() Config {
	return n.config
}

// Normalize computes the signature of raw
func (n *Normalizer) Normalize(raw string) Result {
	return n.NormalizeWithASCII(raw, "")
}

// NormalizeWithASCII is like Normalize but uses a known ASCII spelling, such
// as the one shipped in GeoNames dumps, when ascii is not empty
func (n *Normalizer) NormalizeWithASCII(raw string, ascii string) Result {
	if ascii == "" {
		ascii = ASCII(raw)
	}
	return Result{
		Tokens:      n.Tokenize(raw),
		ASCIIName:   ascii,
		ASCIITokens: n.Tokenize(ascii),
		Pattern:     Pattern(raw),
	}
}

// Tokenize splits name into words, lower-cases them, drops stop words and
// returns the sorted, delimited tokens joined by spaces
func (n *Normalizer) Tokenize(name string) string {
	words := wordPattern.FindAllString(name, -1)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(word)
		if _, stop := n.stops[word]; stop {
			continue
		}
		if n.stemmer != nil {
			word = n.stemmer.stem(word)
		}
		tokens = append(tokens, TokenDelimiter+word+TokenDelimiter)
	}
	if len(tokens) == 0 {
		return Sentinel
	}
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

// TokenSet splits a token signature back into its tokens without delimiters.
// The sentinel signature yields an empty set.
func TokenSet(signature string) []string {
	if signature == Sentinel || signature == "" {
		return nil
	}
	fields := strings.Fields(signature)
	ret := make([]string, 0, len(fields))
	for _, field := range fields {
		ret = append(ret, strings.Trim(field, TokenDelimiter))
	}
	return ret
}
