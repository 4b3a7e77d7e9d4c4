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

import "slices"

// Function words per ISO 639-1 code. Place names rarely contain more than
// articles, prepositions and conjunctions, so the lists stay short.
var stopWords = map[string][]string{
	"en": {
		"a", "an", "and", "at", "by", "for", "from", "in", "into", "of",
		"off", "on", "or", "over", "the", "to", "under", "upon", "with",
	},
	"no": {
		"av", "de", "den", "det", "dei", "ei", "en", "et", "for", "fra",
		"i", "med", "og", "om", "over", "på", "som", "til", "under", "ved",
	},
	"nb": {
		"av", "de", "den", "det", "ei", "en", "et", "for", "fra", "i",
		"med", "og", "om", "over", "på", "som", "til", "under", "ved",
	},
	"nn": {
		"av", "dei", "den", "det", "ei", "ein", "eit", "for", "frå", "i",
		"med", "og", "om", "over", "på", "som", "til", "under", "ved",
	},
	"sv": {
		"av", "de", "den", "det", "en", "ett", "för", "från", "i", "med",
		"och", "om", "på", "som", "till", "under", "vid", "över",
	},
	"da": {
		"af", "de", "den", "det", "en", "et", "for", "fra", "i", "med",
		"og", "om", "over", "på", "som", "til", "under", "ved",
	},
	"de": {
		"am", "an", "auf", "aus", "bei", "das", "dem", "den", "der", "des",
		"die", "ein", "eine", "im", "in", "mit", "und", "unter", "vom", "von",
		"vor", "zu", "zum", "zur",
	},
	"nl": {
		"aan", "bij", "de", "den", "der", "een", "en", "het", "in", "met",
		"of", "op", "over", "te", "ten", "ter", "van", "voor",
	},
	"fr": {
		"au", "aux", "de", "des", "du", "en", "et", "la", "le", "les",
		"l", "d", "ou", "par", "pour", "sous", "sur", "un", "une",
	},
	"es": {
		"a", "al", "de", "del", "el", "en", "la", "las", "los", "o",
		"para", "por", "sobre", "un", "una", "y",
	},
	"it": {
		"a", "al", "alla", "del", "della", "di", "e", "il", "in", "la",
		"le", "lo", "nel", "nella", "o", "per", "su", "un", "una",
	},
	"pt": {
		"a", "ao", "as", "da", "das", "de", "do", "dos", "e", "em",
		"na", "nas", "no", "nos", "o", "os", "ou", "para", "por", "um", "uma",
	},
	"fi": {
		"ja", "tai", "sekä", "eli",
	},
	"ru": {
		"в", "во", "и", "из", "к", "на", "над", "о", "об", "от",
		"по", "под", "при", "с", "со", "у",
	},
}

// StopWordLanguages lists the language codes with a built-in stop word list
func StopWordLanguages() []string {
	ret := make([]string, 0, len(stopWords))
	for lang := range stopWords {
		ret = append(ret, lang)
	}
	slices.Sort(ret)
	return ret
}
