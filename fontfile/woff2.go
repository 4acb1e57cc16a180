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
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

const woff2HeaderSize = 48

// woff2KnownTags lists the table tags which WOFF2 encodes as a 6-bit index.
var woff2KnownTags = [63]string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

type woff2Table struct {
	tag         string
	origLength  uint32
	length      uint32 // length inside the decompressed stream
	transformed bool
}

// decodeWOFF2 converts a WOFF2 file into an sfnt file.
//
// Problems with the file header and table directory are reported as
// [*MalformedContainerError] or [*UnsupportedFormatError].  Problems with
// the compressed data, including the reconstruction of transformed tables,
// are reported as [*DecompressionFailedError].
func decodeWOFF2(data []byte) ([]byte, error) {
	p := newParser("WOFF2 header", data)

	signature, err := p.ReadUint32()
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}
	if signature != signatureWOFF2 {
		return nil, malformed(FormatWOFF2, errors.New("bad signature"))
	}
	flavor, err := p.ReadUint32()
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}
	length, err := p.ReadUint32()
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}
	numTables, err := p.ReadUint16()
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}
	reserved, err := p.ReadUint16()
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}
	_, err = p.ReadUint32() // totalSfntSize
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}
	totalCompressedSize, err := p.ReadUint32()
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}
	// version, metadata and private data are not needed
	err = p.Discard(woff2HeaderSize - p.Pos())
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}

	if err := checkFlavor(FormatWOFF2, flavor); err != nil {
		return nil, err
	}
	if int64(length) > int64(len(data)) {
		return nil, malformed(FormatWOFF2, fmt.Errorf("file truncated (%d < %d bytes)", len(data), length))
	}
	if reserved != 0 {
		return nil, malformed(FormatWOFF2, errors.New("reserved header field is not zero"))
	}
	if numTables == 0 {
		return nil, malformed(FormatWOFF2, errors.New("no tables"))
	}

	p.tableName = "WOFF2 table directory"
	dir := make([]*woff2Table, 0, numTables)
	seen := make(map[string]*woff2Table, numTables)
	var streamSize int64
	for i := 0; i < int(numTables); i++ {
		tab, err := readWOFF2DirEntry(p)
		if err != nil {
			return nil, malformed(FormatWOFF2, err)
		}
		if _, dup := seen[tab.tag]; dup {
			return nil, malformed(FormatWOFF2, fmt.Errorf("duplicate table %q", tab.tag))
		}
		seen[tab.tag] = tab
		dir = append(dir, tab)

		streamSize += int64(tab.length)
		if streamSize > maxSFNTSize || int64(tab.origLength) > maxSFNTSize {
			return nil, malformed(FormatWOFF2, errors.New("decoded font too large"))
		}
	}

	glyfTab, loca := seen["glyf"], seen["loca"]
	if (glyfTab == nil) != (loca == nil) {
		return nil, malformed(FormatWOFF2, errors.New("glyf and loca tables must occur together"))
	}
	if glyfTab != nil && glyfTab.transformed != loca.transformed {
		return nil, malformed(FormatWOFF2, errors.New("glyf and loca must use the same transform"))
	}
	if loca != nil && loca.transformed && loca.length != 0 {
		return nil, malformed(FormatWOFF2, errors.New("transformed loca table is not empty"))
	}

	start := int64(p.Pos())
	if start+int64(totalCompressedSize) > int64(len(data)) {
		return nil, malformed(FormatWOFF2, errors.New("compressed data extends beyond end of file"))
	}
	stream, err := decompressBrotli(data[start:start+int64(totalCompressedSize)], int(streamSize))
	if err != nil {
		return nil, &DecompressionFailedError{Err: err}
	}

	tables := make(map[string][]byte, len(dir))
	var pos uint32
	for _, tab := range dir {
		tables[tab.tag] = stream[pos : pos+tab.length]
		pos += tab.length
	}

	err = reverseTransforms(tables, seen)
	if err != nil {
		return nil, &DecompressionFailedError{Err: err}
	}

	body, err := writeSFNT(flavor, tables)
	if err != nil {
		return nil, malformed(FormatWOFF2, err)
	}
	return body, nil
}

func readWOFF2DirEntry(p *parser) (*woff2Table, error) {
	flags, err := p.ReadUint8()
	if err != nil {
		return nil, err
	}

	var tag string
	if idx := flags & 0x3F; idx == 0x3F {
		raw, err := p.ReadUint32()
		if err != nil {
			return nil, err
		}
		tag = tagString(raw)
	} else {
		tag = woff2KnownTags[idx]
	}

	origLength, err := p.ReadUintBase128()
	if err != nil {
		return nil, err
	}

	version := flags >> 6
	tab := &woff2Table{
		tag:        tag,
		origLength: origLength,
		length:     origLength,
	}
	switch tag {
	case "glyf", "loca":
		switch version {
		case 0:
			tab.transformed = true
		case 3:
			// null transform
		default:
			return nil, p.Error("unknown %q transform %d", tag, version)
		}
	case "hmtx":
		switch version {
		case 0:
		case 1:
			tab.transformed = true
		default:
			return nil, p.Error("unknown %q transform %d", tag, version)
		}
	default:
		if version != 0 {
			return nil, p.Error("unknown %q transform %d", tag, version)
		}
	}

	if tab.transformed {
		tab.length, err = p.ReadUintBase128()
		if err != nil {
			return nil, err
		}
	}
	return tab, nil
}

// decompressBrotli expands a brotli stream which must decompress to
// exactly size bytes.
func decompressBrotli(compressed []byte, size int) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(compressed))
	res := make([]byte, size)
	_, err := io.ReadFull(r, res)
	if err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	n, _ := r.Read(make([]byte, 1))
	if n > 0 {
		return nil, errors.New("brotli: decompressed data longer than declared")
	}
	return res, nil
}

// reverseTransforms replaces transformed tables by their original
// versions.
func reverseTransforms(tables map[string][]byte, dir map[string]*woff2Table) error {
	var xMins []int16

	if tab := dir["glyf"]; tab != nil && tab.transformed {
		res, err := reconstructGlyf(tables["glyf"])
		if err != nil {
			return err
		}
		if loca := dir["loca"]; uint32(len(res.loca)) != loca.origLength {
			return fmt.Errorf("reconstructed loca has %d bytes, expected %d",
				len(res.loca), loca.origLength)
		}
		tables["glyf"] = res.glyf
		tables["loca"] = res.loca
		xMins = res.xMins
	}

	if tab := dir["hmtx"]; tab != nil && tab.transformed {
		numGlyphs, numHMetrics, err := hmtxCounts(tables)
		if err != nil {
			return err
		}
		if xMins == nil {
			xMins, err = glyphXMins(tables, numGlyphs)
			if err != nil {
				return err
			}
		}
		hmtx, err := reconstructHmtx(tables["hmtx"], numGlyphs, numHMetrics, xMins)
		if err != nil {
			return err
		}
		if uint32(len(hmtx)) != tab.origLength {
			return fmt.Errorf("reconstructed hmtx has %d bytes, expected %d",
				len(hmtx), tab.origLength)
		}
		tables["hmtx"] = hmtx
	}

	return nil
}
