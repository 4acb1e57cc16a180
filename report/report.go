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

// Package report summarises detection results.
package report

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"seehuhn.de/go/glyphcov"
)

// ReportData contains everything needed to render a coverage report.
type ReportData struct {
	Metadata  Metadata       `json:"metadata"`
	Fonts     []FontInfo     `json:"fonts"`
	Languages []LanguageInfo `json:"languages"`
	Results   []Row          `json:"results"`
}

// Metadata describes the report as a whole.
type Metadata struct {
	GeneratedAt       time.Time `json:"generatedAt"`
	FontCount         int       `json:"fontCount"`
	LanguageCount     int       `json:"languageCount"`
	ResultCount       int       `json:"resultCount"`
	UndetectableCount int       `json:"undetectableCount"`

	// TotalMissingGlyphs is the sum of the missing counts of all rows.
	TotalMissingGlyphs int `json:"totalMissingGlyphs"`
}

// FontInfo describes one font of the report.
type FontInfo struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	Style    string `json:"style,omitempty"`
	Weight   string `json:"weight,omitempty"`
}

// LanguageInfo describes one language of the report.
type LanguageInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	NativeName     string `json:"nativeName,omitempty"`
	CharacterCount int    `json:"characterCount"`
}

// Row summarises the results for one font and one language.
type Row struct {
	FontID          string `json:"fontId"`
	FontName        string `json:"fontName"`
	LanguageID      string `json:"languageId"`
	LanguageName    string `json:"languageName"`
	TotalCharacters int    `json:"totalCharacters"`
	MissingCount    int    `json:"missingCount"`
	CoveragePercent int    `json:"coveragePercent"`

	// Undetectable is set if detection failed for this pair.  In this
	// case all characters are reported as present.
	Undetectable  bool    `json:"undetectable"`
	MinConfidence float64 `json:"minConfidence"`

	MissingGlyphs []MissingGlyph `json:"missingGlyphs"`
}

// MissingGlyph is a character which a font cannot display.
type MissingGlyph struct {
	Character string `json:"character"`
	CodePoint rune   `json:"codePoint"`
	HexCode   string `json:"hexCode"`
}

// Aggregate summarises a batch result.
//
// Rows are generated for every pair of font and language which is present
// in res, in the order of the fonts and languages arguments.  Fonts and
// languages with repeated IDs are listed once.  Aggregate does not modify
// its arguments.
func Aggregate(fonts []glyphcov.FontAsset, langs []glyphcov.Language, res glyphcov.BatchResult, now time.Time) *ReportData {
	data := &ReportData{
		Fonts:     []FontInfo{},
		Languages: []LanguageInfo{},
		Results:   []Row{},
	}

	fontSeen := make(map[string]bool, len(fonts))
	for _, f := range fonts {
		if fontSeen[f.ID] {
			continue
		}
		fontSeen[f.ID] = true
		data.Fonts = append(data.Fonts, FontInfo{
			ID:       f.ID,
			FileName: f.FileName,
			Style:    f.Style,
			Weight:   f.Weight,
		})
	}

	langSeen := make(map[string]bool, len(langs))
	for _, l := range langs {
		if langSeen[l.ID] {
			continue
		}
		langSeen[l.ID] = true
		data.Languages = append(data.Languages, describeLanguage(l))
	}

	for _, f := range data.Fonts {
		for _, l := range data.Languages {
			results, ok := res.Get(f.ID, l.ID)
			if !ok {
				continue
			}
			row := summarise(f, l, results)
			if row.Undetectable {
				data.Metadata.UndetectableCount++
			}
			data.Metadata.TotalMissingGlyphs += row.MissingCount
			data.Results = append(data.Results, row)
		}
	}

	data.Metadata.GeneratedAt = now
	data.Metadata.FontCount = len(data.Fonts)
	data.Metadata.LanguageCount = len(data.Languages)
	data.Metadata.ResultCount = len(data.Results)
	return data
}

// summarise computes the row for one font and one language.  Rows carry
// the display names, so that they can be rendered on their own.
func summarise(f FontInfo, l LanguageInfo, results []glyphcov.DetectionResult) Row {
	langName := l.Name
	if langName == "" {
		langName = l.ID
	}
	row := Row{
		FontID:          f.ID,
		FontName:        f.FileName,
		LanguageID:      l.ID,
		LanguageName:    langName,
		TotalCharacters: len(results),
		MinConfidence:   1,
		MissingGlyphs:   []MissingGlyph{},
	}
	for _, r := range results {
		row.MinConfidence = min(row.MinConfidence, r.Confidence)
		if !r.IsMissing {
			continue
		}
		row.MissingGlyphs = append(row.MissingGlyphs, MissingGlyph{
			Character: r.Character,
			CodePoint: r.CodePoint,
			HexCode:   HexCode(r.CodePoint),
		})
	}
	row.MissingCount = len(row.MissingGlyphs)
	row.CoveragePercent = CoveragePercent(row.TotalCharacters, row.MissingCount)
	row.Undetectable = row.TotalCharacters > 0 && row.MinConfidence == 0
	return row
}

// CoveragePercent returns the percentage of characters which are present,
// rounded to the nearest integer.  If there are no characters, the
// coverage is 100%.
func CoveragePercent(total, missing int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(total-missing) / float64(total)))
}

// HexCode formats a code point as an upper case hexadecimal number with at
// least four digits, for example "00DF".
func HexCode(cp rune) string {
	return fmt.Sprintf("%04X", cp)
}

// describeLanguage fills in missing display names for languages with a
// valid BCP 47 tag as their ID.
func describeLanguage(l glyphcov.Language) LanguageInfo {
	info := LanguageInfo{
		ID:             l.ID,
		Name:           l.Name,
		NativeName:     l.NativeName,
		CharacterCount: len(glyphcov.Characters(l.Coverage)),
	}
	if info.Name != "" && info.NativeName != "" {
		return info
	}

	tag, err := language.Parse(l.ID)
	if err != nil || tag == language.Und {
		return info
	}
	if info.Name == "" {
		info.Name = display.English.Tags().Name(tag)
	}
	if info.NativeName == "" {
		info.NativeName = display.Self.Name(tag)
	}
	return info
}
