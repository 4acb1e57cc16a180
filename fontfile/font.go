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

// Package fontfile decodes font files for glyph coverage checks.
//
// TrueType and OpenType files are read directly.  WOFF and WOFF2 files are
// first converted back into sfnt files.  Font collections are not
// supported.
package fontfile

import (
	"bytes"
	"errors"
	"fmt"
	"unicode"

	"seehuhn.de/go/geom/path"

	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/cff"
	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/glyf"
	"seehuhn.de/go/sfnt/glyph"
)

// Font is a parsed font file.
type Font struct {
	info   *sfnt.Font
	cmap   cmap.Subtable
	format Format
}

// Parse decodes a TrueType, OpenType, WOFF or WOFF2 file.
//
// The returned error is one of [*MalformedContainerError],
// [*UnsupportedFormatError] or [*DecompressionFailedError].
// Parse does not modify data.
func Parse(data []byte) (*Font, error) {
	format := DetectFormat(data)
	switch format {
	case FormatTrueType, FormatOpenType:
		return parseSFNT(data, format)
	case FormatWOFF:
		body, err := decodeWOFF(data)
		if err != nil {
			return nil, err
		}
		return parseSFNT(body, format)
	case FormatWOFF2:
		body, err := decodeWOFF2(data)
		if err != nil {
			return nil, err
		}
		return parseSFNT(body, format)
	case FormatCollection:
		return nil, &UnsupportedFormatError{Format: format, Reason: "font collections are not supported"}
	default:
		return nil, malformed(format, errors.New("unrecognised file signature"))
	}
}

func parseSFNT(data []byte, format Format) (f *Font, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = nil
			err = malformed(format, fmt.Errorf("sfnt: %v", r))
		}
	}()

	info, err := sfnt.Read(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(format, err)
	}
	if info.Outlines == nil {
		return nil, malformed(format, errors.New("no glyph outlines"))
	}
	subtable, err := info.CMapTable.GetBest()
	if err != nil {
		return nil, malformed(format, fmt.Errorf("no usable cmap subtable: %w", err))
	}

	f = &Font{
		info:   info,
		cmap:   subtable,
		format: format,
	}
	return f, nil
}

// Format returns the container format the font was read from.
func (f *Font) Format() Format {
	return f.format
}

// FamilyName returns the font family name.
func (f *Font) FamilyName() string {
	return f.info.FamilyName
}

// UnitsPerEm returns the size of the em square in font design units.
func (f *Font) UnitsPerEm() int {
	return int(f.info.UnitsPerEm)
}

// NumGlyphs returns the number of glyphs in the font, including .notdef.
func (f *Font) NumGlyphs() int {
	return f.info.NumGlyphs()
}

// IsItalic reports whether the font is marked as italic.
func (f *Font) IsItalic() bool {
	return f.info.IsItalic
}

// Glyph is a glyph reached through the character map of a font.
type Glyph struct {
	ID   glyph.ID
	font *Font
}

// GlyphForCodePoint looks up the glyph which the character map assigns to
// r.  The second return value is false if there is no mapping, or if r
// maps to .notdef or to a glyph index beyond the end of the font.
func (f *Font) GlyphForCodePoint(r rune) (Glyph, bool) {
	if r < 0 || r > unicode.MaxRune {
		return Glyph{}, false
	}
	gid := f.cmap.Lookup(r)
	if gid == 0 || int(gid) >= f.info.NumGlyphs() {
		return Glyph{}, false
	}
	return Glyph{ID: gid, font: f}, true
}

// HasOutline reports whether the glyph has a drawable outline.
// Blank glyphs, like the one usually mapped to the space character,
// have no outline.
func (g Glyph) HasOutline() bool {
	f := g.font
	if f == nil || g.ID == 0 || int(g.ID) >= f.info.NumGlyphs() {
		return false
	}
	switch outlines := f.info.Outlines.(type) {
	case *glyf.Outlines:
		return int(g.ID) < len(outlines.Glyphs) && outlines.Glyphs[g.ID] != nil
	case *cff.Outlines:
		if int(g.ID) >= len(outlines.Glyphs) || outlines.Glyphs[g.ID] == nil {
			return false
		}
		return len(outlines.Glyphs[g.ID].Cmds) > 0
	}

	// A blank glyph can still produce a lone close command.
	for cmd := range f.info.Outlines.Path(g.ID) {
		if cmd != path.CmdClose {
			return true
		}
	}
	return false
}
