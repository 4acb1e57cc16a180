// seehuhn.de/go/glyphcov - find characters which are missing from fonts
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package glyphcov finds the characters which a font cannot render.
//
// The package defines the data model shared by the sub-packages:
//
//   - [seehuhn.de/go/glyphcov/fontfile] decodes TrueType, OpenType, WOFF
//     and WOFF2 files,
//   - [seehuhn.de/go/glyphcov/detect] decides whether a font has a glyph
//     for a given code point,
//   - [seehuhn.de/go/glyphcov/cache] stores detection results in a
//     caller-provided key-value store,
//   - [seehuhn.de/go/glyphcov/batch] runs detection for all combinations
//     of fonts and languages,
//   - [seehuhn.de/go/glyphcov/report] summarises the results.
//
// A typical caller constructs a store, a cache and a batch runner once,
// and then calls Run for every set of uploaded fonts:
//
//	c := cache.New(cache.Config{}, store.NewMemory(0), logger, nil)
//	runner := batch.New(batch.Config{Concurrency: 4}, c, logger, nil)
//	res, err := runner.Run(ctx, fonts, languages, false)
//	if err != nil {
//	    return err
//	}
//	data := report.Aggregate(fonts, languages, res, time.Now())
package glyphcov

// FontAsset is a font file supplied by the caller.
//
// The detection code only reads Data, and only for the duration of a run.
type FontAsset struct {
	// ID identifies the font.  It is used as the key in [BatchResult]
	// and as part of the cache key, so it must be stable across runs.
	ID string

	FileName string
	Style    string
	Weight   string

	// Data contains the raw font file.
	Data []byte
}

// Language is a named set of characters which a font should support.
type Language struct {
	ID string

	// Name and NativeName are optional display names.
	Name       string
	NativeName string

	// Coverage lists the required characters.  The order is not
	// significant and characters may be repeated.
	Coverage string
}

// DetectionResult records whether a font has a glyph for one character.
type DetectionResult struct {
	Character  string  `json:"character"`
	CodePoint  rune    `json:"codePoint"`
	IsMissing  bool    `json:"isMissing"`
	Confidence float64 `json:"confidence"`
}

// Degraded reports whether the result was obtained by a fallback path
// instead of an inspection of the font tables.
func (r DetectionResult) Degraded() bool {
	return r.Confidence < 1
}

// BatchResult maps font IDs to language IDs to detection results.
// The results for each language are ordered by code point.
type BatchResult map[string]map[string][]DetectionResult

// Get returns the results for the given font and language.
func (b BatchResult) Get(fontID, langID string) ([]DetectionResult, bool) {
	byLang, ok := b[fontID]
	if !ok {
		return nil, false
	}
	res, ok := byLang[langID]
	return res, ok
}

// Unresolvable returns the results used when detection failed for a pair
// of font and language.  All characters are reported as present, with
// confidence 0.
func Unresolvable(chars []rune) []DetectionResult {
	res := make([]DetectionResult, len(chars))
	for i, r := range chars {
		res[i] = DetectionResult{
			Character:  string(r),
			CodePoint:  r,
			IsMissing:  false,
			Confidence: 0,
		}
	}
	return res
}
