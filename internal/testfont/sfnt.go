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

// Package testfont provides font files for unit tests.
//
// # Fonts
//
//   - [GoRegular]: the Go Regular TrueType font.  It covers Latin, Greek
//     and Cyrillic, but no CJK characters.  The space character maps to a
//     blank glyph.
//   - [Remapped]: the glyf outlines of Go Regular, with a caller-supplied
//     character map.
//   - [Square]: a three glyph OpenType font with CFF outlines.  GID 0 is
//     .notdef, GID 1 is a blank "space" glyph and GID 2 is a filled square
//     mapped to "A".
//
// [WOFF] and [WOFF2] wrap any sfnt font in the corresponding web font
// container.
package testfont

import (
	"bytes"

	"golang.org/x/image/font/gofont/goregular"

	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/glyph"
)

// GoRegular returns the Go Regular font as a TrueType file.
func GoRegular() []byte {
	return bytes.Clone(goregular.TTF)
}

// GoRegularGID returns the glyph which Go Regular uses for r.
func GoRegularGID(r rune) glyph.ID {
	info := makeGlyfFont()
	subtable, err := info.CMapTable.GetBest()
	if err != nil {
		panic(err)
	}
	return subtable.Lookup(r)
}

// Remapped returns a TrueType file with the outlines of Go Regular and the
// given character map.  Mapping a character to glyph 0 adds an explicit
// .notdef entry, and glyph IDs beyond the end of the font are allowed.
func Remapped(m map[uint16]glyph.ID) []byte {
	info := makeGlyfFont()

	subtable := cmap.Format4{}
	for code, gid := range m {
		subtable[code] = gid
	}
	info.CMapTable = cmap.Table{
		{PlatformID: 3, EncodingID: 1}: subtable.Encode(0),
	}

	buf := &bytes.Buffer{}
	_, err := info.WriteTrueTypePDF(buf)
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// makeGlyfFont returns a font with glyf outlines.
func makeGlyfFont() *sfnt.Font {
	r := bytes.NewReader(goregular.TTF)
	info, err := sfnt.Read(r)
	if err != nil {
		panic(err)
	}
	return info
}
