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
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that carry no combining mark after decomposition
var foldTable = map[rune]string{
	'Æ': "AE", 'æ': "ae",
	'Ø': "O", 'ø': "o",
	'Œ': "OE", 'œ': "oe",
	'ß': "ss", 'ẞ': "SS",
	'Ł': "L", 'ł': "l",
	'Đ': "D", 'đ': "d",
	'Ð': "D", 'ð': "d",
	'Þ': "TH", 'þ': "th",
	'Ħ': "H", 'ħ': "h",
	'ı': "i",
	'Ŋ': "N", 'ŋ': "n",
	'ĸ': "q",
	'Ŧ': "T", 'ŧ': "t",
	'ſ': "s",
	'‘': "'", '’': "'", 'ʼ': "'",
	'“': "\"", '”': "\"",
	'–': "-", '—': "-",
	' ': " ",
}

// ASCII transliterates raw to its closest ASCII spelling. Runes without an
// ASCII form are dropped.
func ASCII(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		b.WriteString(foldRune(r))
	}
	return b.String()
}

// Pattern returns one rune per rune of raw: the rune itself when it survives
// transliteration unchanged, otherwise PatternPlaceholder
func Pattern(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if foldRune(r) == string(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(PatternPlaceholder)
		}
	}
	return b.String()
}

func foldRune(r rune) string {
	if r < utf8.RuneSelf {
		return string(r)
	}
	if s, ok := foldTable[r]; ok {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, string(r))
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, c := range folded {
		if c < utf8.RuneSelf {
			b.WriteRune(c)
		} else if s, ok := foldTable[c]; ok {
			b.WriteString(s)
		}
	}
	return b.String()
}
