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

package fontfile

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"

	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/glyphcov/internal/testfont"
)

func TestParseGoRegular(t *testing.T) {
	f, err := Parse(testfont.GoRegular())
	if err != nil {
		t.Fatal(err)
	}
	if f.Format() != FormatTrueType {
		t.Errorf("wrong format %s", f.Format())
	}
	if f.FamilyName() != "Go" {
		t.Errorf("wrong family name %q", f.FamilyName())
	}
	if f.UnitsPerEm() != 2048 {
		t.Errorf("wrong units per em %d", f.UnitsPerEm())
	}

	g, ok := f.GlyphForCodePoint('A')
	if !ok {
		t.Fatal("no glyph for 'A'")
	}
	if g.ID != testfont.GoRegularGID('A') {
		t.Errorf("wrong glyph for 'A': %d", g.ID)
	}
	if !g.HasOutline() {
		t.Error("glyph for 'A' has no outline")
	}

	g, ok = f.GlyphForCodePoint(' ')
	if !ok {
		t.Fatal("no glyph for ' '")
	}
	if g.HasOutline() {
		t.Error("glyph for ' ' has an outline")
	}

	for _, r := range []rune{'中', 0x10FFFF, -1, 0x110000} {
		if _, ok := f.GlyphForCodePoint(r); ok {
			t.Errorf("unexpected glyph for %U", r)
		}
	}
}

func TestParseSquare(t *testing.T) {
	f, err := Parse(testfont.Square(map[uint16]glyph.ID{'Z': 7}))
	if err != nil {
		t.Fatal(err)
	}
	if f.Format() != FormatOpenType {
		t.Errorf("wrong format %s", f.Format())
	}
	if f.NumGlyphs() != 3 {
		t.Errorf("wrong number of glyphs %d", f.NumGlyphs())
	}

	if g, ok := f.GlyphForCodePoint('A'); !ok || !g.HasOutline() {
		t.Error("square glyph not found")
	}
	if g, ok := f.GlyphForCodePoint(' '); !ok || g.HasOutline() {
		t.Error("blank glyph not found")
	}
	// 'Z' maps to a glyph beyond the end of the font
	if _, ok := f.GlyphForCodePoint('Z'); ok {
		t.Error("glyph found for 'Z'")
	}
}

func TestNotdefMapping(t *testing.T) {
	gidA := testfont.GoRegularGID('A')
	data := testfont.Remapped(map[uint16]glyph.ID{'A': gidA, 'B': 0})
	f, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	if g, ok := f.GlyphForCodePoint('A'); !ok || g.ID != gidA {
		t.Errorf("wrong glyph for 'A': %d %t", g.ID, ok)
	}
	if _, ok := f.GlyphForCodePoint('B'); ok {
		t.Error("glyph found for 'B'")
	}
	if _, ok := f.GlyphForCodePoint('C'); ok {
		t.Error("glyph found for 'C'")
	}
}

// TestWebFonts checks that WOFF and WOFF2 files give the same glyphs as the
// sfnt files they were made from.
func TestWebFonts(t *testing.T) {
	type container struct {
		format Format
		data   []byte
	}
	glyfFont := testfont.GoRegular()
	cffFont := testfont.Square(nil)
	fonts := []struct {
		name       string
		body       []byte
		containers map[string]container
	}{
		{
			name: "glyf",
			body: glyfFont,
			containers: map[string]container{
				"WOFF":              {FormatWOFF, testfont.WOFF(glyfFont)},
				"WOFF2":             {FormatWOFF2, testfont.WOFF2(glyfFont)},
				"WOFF2-transformed": {FormatWOFF2, testfont.WOFF2Transformed(glyfFont)},
			},
		},
		{
			name: "CFF",
			body: cffFont,
			containers: map[string]container{
				"WOFF":  {FormatWOFF, testfont.WOFF(cffFont)},
				"WOFF2": {FormatWOFF2, testfont.WOFF2(cffFont)},
			},
		},
	}
	text := []rune{' ', 'A', 'a', 'g', 'é', 'ß', 'Ω', 'Ж', '中', 0x1F600}

	for _, font := range fonts {
		ref, err := Parse(font.body)
		if err != nil {
			t.Fatal(err)
		}

		for label, c := range font.containers {
			t.Run(font.name+"/"+label, func(t *testing.T) {
				f, err := Parse(c.data)
				if err != nil {
					t.Fatal(err)
				}
				if f.Format() != c.format {
					t.Errorf("wrong format %s", f.Format())
				}
				if f.NumGlyphs() != ref.NumGlyphs() {
					t.Errorf("%d glyphs != %d", f.NumGlyphs(), ref.NumGlyphs())
				}
				for _, r := range text {
					g1, ok1 := ref.GlyphForCodePoint(r)
					g2, ok2 := f.GlyphForCodePoint(r)
					if ok1 != ok2 || g1.ID != g2.ID {
						t.Errorf("%U: %d/%t != %d/%t", r, g2.ID, ok2, g1.ID, ok1)
						continue
					}
					if !ok1 {
						continue
					}
					if g1.HasOutline() != g2.HasOutline() {
						t.Errorf("%U: outline mismatch", r)
					}
					if d := cmp.Diff(glyphPath(ref, g1.ID), glyphPath(f, g2.ID)); d != "" {
						t.Errorf("%U: path mismatch (-want +got):\n%s", r, d)
					}
				}
			})
		}
	}
}

type pathStep struct {
	Cmd    path.Command
	Points []vec.Vec2
}

func glyphPath(f *Font, gid glyph.ID) []pathStep {
	var res []pathStep
	for cmd, pts := range f.info.Outlines.Path(gid) {
		res = append(res, pathStep{Cmd: cmd, Points: slices.Clone(pts)})
	}
	return res
}

func TestBlankGlyphs(t *testing.T) {
	glyfFont := testfont.GoRegular()
	cffFont := testfont.Square(nil)
	samples := map[string][]byte{
		"TrueType":       glyfFont,
		"TrueType/WOFF2": testfont.WOFF2Transformed(glyfFont),
		"OpenType":       cffFont,
		"OpenType/WOFF":  testfont.WOFF(cffFont),
		"OpenType/WOFF2": testfont.WOFF2(cffFont),
	}
	for label, data := range samples {
		t.Run(label, func(t *testing.T) {
			f, err := Parse(data)
			if err != nil {
				t.Fatal(err)
			}
			space, ok := f.GlyphForCodePoint(' ')
			if !ok {
				t.Fatal("space is not mapped")
			}
			if space.HasOutline() {
				t.Errorf("blank glyph %d reported as drawable", space.ID)
			}
			letter, ok := f.GlyphForCodePoint('A')
			if !ok || !letter.HasOutline() {
				t.Errorf("glyph for 'A' missing")
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	woff := testfont.WOFF(testfont.GoRegular())
	woff2 := testfont.WOFF2(testfont.GoRegular())
	totalCompressedSize := uint32(woff2[20])<<24 | uint32(woff2[21])<<16 | uint32(woff2[22])<<8 | uint32(woff2[23])

	type errorKind int
	const (
		malformedKind errorKind = iota
		unsupportedKind
		decompressionKind
	)
	cases := []struct {
		name string
		data []byte
		want errorKind
	}{
		{"empty", nil, malformedKind},
		{"short", []byte{0, 1}, malformedKind},
		{"text", []byte("hello, world"), malformedKind},
		{"garbage sfnt", testfont.Corrupt(), malformedKind},
		{"collection", []byte("ttcf\x00\x01\x00\x00\x00\x00\x00\x00"), unsupportedKind},
		{"WOFF truncated", woff[:100], malformedKind},
		{"WOFF bad flavor", testfont.ReplaceUint32(woff, 4, 0x12345678), unsupportedKind},
		{"WOFF collection", testfont.ReplaceUint32(woff, 4, signatureCollect), unsupportedKind},
		{"WOFF2 header only", woff2[:30], malformedKind},
		{"WOFF2 bad flavor", testfont.ReplaceUint32(woff2, 4, 0x12345678), unsupportedKind},
		{"WOFF2 truncated stream", testfont.ReplaceUint32(woff2, 20, totalCompressedSize/2), decompressionKind},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, err := Parse(c.data)
			if err == nil {
				t.Fatal("missing error")
			}
			if f != nil {
				t.Error("font returned together with error")
			}

			var e1 *MalformedContainerError
			var e2 *UnsupportedFormatError
			var e3 *DecompressionFailedError
			var got errorKind
			switch {
			case errors.As(err, &e1):
				got = malformedKind
			case errors.As(err, &e2):
				got = unsupportedKind
			case errors.As(err, &e3):
				got = decompressionKind
			default:
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			if got != c.want {
				t.Errorf("wrong error kind %d: %v", got, err)
			}
		})
	}
}

func TestParseKeepsInput(t *testing.T) {
	inputs := [][]byte{
		testfont.GoRegular(),
		testfont.WOFF(testfont.GoRegular()),
		testfont.WOFF2(testfont.Square(nil)),
	}
	for i, data := range inputs {
		orig := bytes.Clone(data)
		_, err := Parse(data)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, orig) {
			t.Errorf("%d: input was modified", i)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		data []byte
		want Format
	}{
		{[]byte{0, 1, 0, 0}, FormatTrueType},
		{[]byte("true"), FormatTrueType},
		{[]byte("OTTO"), FormatOpenType},
		{[]byte("wOFF"), FormatWOFF},
		{[]byte("wOF2"), FormatWOFF2},
		{[]byte("ttcf"), FormatCollection},
		{[]byte("%PDF"), FormatUnknown},
		{[]byte("wOF"), FormatUnknown},
	}
	for _, c := range cases {
		if got := DetectFormat(c.data); got != c.want {
			t.Errorf("%q: got %s, want %s", c.data, got, c.want)
		}
	}
}
