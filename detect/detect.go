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

// Package detect decides whether a font can display a character.
package detect

import (
	"seehuhn.de/go/glyphcov"
	"seehuhn.de/go/glyphcov/fontfile"
)

// Method names the technique used to reach a decision.
type Method string

// MethodTable is used by [TableInspector].
const MethodTable Method = "table"

// Presence is the decision for a single character.
type Presence struct {
	Missing    bool
	Confidence float64
	Method     Method
}

// A Detector decides whether a font has a glyph for a code point.
// Implementations must be deterministic and safe for concurrent use.
type Detector interface {
	Detect(f *fontfile.Font, r rune) Presence
}

// TableInspector decides presence by inspecting the character map and the
// glyph outlines of the font.  A character is present if it maps to a glyph
// other than .notdef, and if that glyph has an outline.
type TableInspector struct{}

// Detect implements the [Detector] interface.
func (TableInspector) Detect(f *fontfile.Font, r rune) Presence {
	g, ok := f.GlyphForCodePoint(r)
	return Presence{
		Missing:    !ok || !g.HasOutline(),
		Confidence: 1,
		Method:     MethodTable,
	}
}

// DetectAll resolves every character of chars, in order.
func DetectAll(d Detector, f *fontfile.Font, chars []rune) []glyphcov.DetectionResult {
	res := make([]glyphcov.DetectionResult, len(chars))
	for i, r := range chars {
		p := d.Detect(f, r)
		res[i] = glyphcov.DetectionResult{
			Character:  string(r),
			CodePoint:  r,
			IsMissing:  p.Missing,
			Confidence: p.Confidence,
		}
	}
	return res
}
