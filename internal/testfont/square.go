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

package testfont

import (
	"bytes"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/postscript/funit"
	"seehuhn.de/go/postscript/type1"

	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/cff"
	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/glyph"
	"seehuhn.de/go/sfnt/os2"
)

// Glyph positions and widths of the square font, in design units.
const (
	SquareLeft   = 100
	SquareRight  = 500
	SquareBottom = 200
	SquareTop    = 600

	NotdefWidth = 500
	SpaceWidth  = 250
	SquareWidth = 500
)

// Square returns an OpenType font with CFF outlines and three glyphs.
// Besides ' ' and 'A', the character map contains the given extra entries.
func Square(extra map[uint16]glyph.ID) []byte {
	info := makeSquareFont(extra)
	buf := &bytes.Buffer{}
	err := info.WriteOpenTypeCFFPDF(buf)
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func makeSquareFont(extra map[uint16]glyph.ID) *sfnt.Font {
	fontMatrix := matrix.Matrix{0.001, 0, 0, 0.001, 0, 0}

	outlines := &cff.Outlines{
		Glyphs: []*cff.Glyph{
			{Name: ".notdef", Width: NotdefWidth},
			{Name: "space", Width: SpaceWidth},
			makeSquareGlyph("A"),
		},
		Private: []*type1.PrivateDict{
			{
				BlueValues: []funit.Int16{-10, 0, 590, 600},
				BlueScale:  0.039625,
				BlueShift:  7,
				BlueFuzz:   1,
				StdHW:      20,
				StdVW:      20,
			},
		},
		FDSelect: func(glyph.ID) int { return 0 },
		Encoding: []glyph.ID{0, 1, 2},
	}

	subtable := cmap.Format4{' ': 1, 'A': 2}
	for code, gid := range extra {
		subtable[code] = gid
	}
	cmapTable := cmap.Table{
		{PlatformID: 3, EncodingID: 1}: subtable.Encode(0),
	}

	return &sfnt.Font{
		FamilyName:         "SquareFont",
		Ascent:             800,
		Descent:            -200,
		LineGap:            200,
		UnderlinePosition:  -100,
		UnderlineThickness: 50,
		CapHeight:          600,
		XHeight:            400,
		Outlines:           outlines,
		Width:              os2.WidthNormal,
		Weight:             os2.WeightMedium,
		IsRegular:          true,
		PermUse:            os2.PermInstall,
		UnitsPerEm:         1000,
		FontMatrix:         fontMatrix,
		CMapTable:          cmapTable,
	}
}

func makeSquareGlyph(name string) *cff.Glyph {
	g := cff.NewGlyph(name, SquareWidth)
	g.MoveTo(SquareLeft, SquareBottom)
	g.LineTo(SquareRight, SquareBottom)
	g.LineTo(SquareRight, SquareTop)
	g.LineTo(SquareLeft, SquareTop)
	g.LineTo(SquareLeft, SquareBottom)
	return g
}
