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
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
)

type sfntTable struct {
	tag  string
	data []byte
}

// splitSFNT returns the scaler type and the tables of an sfnt file,
// ordered by tag.
func splitSFNT(data []byte) (uint32, []sfntTable) {
	if len(data) < 12 {
		panic("sfnt file too short")
	}
	scalerType := binary.BigEndian.Uint32(data)
	numTables := int(binary.BigEndian.Uint16(data[4:]))

	tables := make([]sfntTable, numTables)
	for i := range tables {
		rec := data[12+16*i:]
		offset := binary.BigEndian.Uint32(rec[8:])
		length := binary.BigEndian.Uint32(rec[12:])
		tables[i] = sfntTable{
			tag:  string(rec[:4]),
			data: data[offset : offset+length],
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].tag < tables[j].tag })
	return scalerType, tables
}

func checksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		var word [4]byte
		copy(word[:], data[i:])
		sum += binary.BigEndian.Uint32(word[:])
	}
	return sum
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

// WOFF wraps an sfnt file in a WOFF 1.0 container.  Tables are compressed
// where this saves space.
func WOFF(sfntData []byte) []byte {
	flavor, tables := splitSFNT(sfntData)

	stored := make([][]byte, len(tables))
	totalSfntSize := 12 + 16*len(tables)
	for i, tab := range tables {
		totalSfntSize += pad4(len(tab.data))

		buf := &bytes.Buffer{}
		zw := zlib.NewWriter(buf)
		_, err := zw.Write(tab.data)
		if err != nil {
			panic(err)
		}
		err = zw.Close()
		if err != nil {
			panic(err)
		}
		if buf.Len() < len(tab.data) {
			stored[i] = buf.Bytes()
		} else {
			stored[i] = tab.data
		}
	}

	offset := 44 + 20*len(tables)
	dir := make([]byte, 0, 20*len(tables))
	var body []byte
	for i, tab := range tables {
		dir = append(dir, tab.tag...)
		dir = binary.BigEndian.AppendUint32(dir, uint32(offset+len(body)))
		dir = binary.BigEndian.AppendUint32(dir, uint32(len(stored[i])))
		dir = binary.BigEndian.AppendUint32(dir, uint32(len(tab.data)))
		dir = binary.BigEndian.AppendUint32(dir, checksum(tab.data))
		body = append(body, stored[i]...)
		for len(body)%4 != 0 {
			body = append(body, 0)
		}
	}

	total := offset + len(body)
	res := make([]byte, 0, total)
	res = binary.BigEndian.AppendUint32(res, 0x774F4646) // "wOFF"
	res = binary.BigEndian.AppendUint32(res, flavor)
	res = binary.BigEndian.AppendUint32(res, uint32(total))
	res = binary.BigEndian.AppendUint16(res, uint16(len(tables)))
	res = binary.BigEndian.AppendUint16(res, 0)
	res = binary.BigEndian.AppendUint32(res, uint32(totalSfntSize))
	res = binary.BigEndian.AppendUint16(res, 1) // majorVersion
	res = binary.BigEndian.AppendUint16(res, 0) // minorVersion
	res = append(res, make([]byte, 20)...)      // no metadata or private data
	res = append(res, dir...)
	res = append(res, body...)
	return res
}

var woff2TagIndex = map[string]byte{
	"cmap": 0, "head": 1, "hhea": 2, "hmtx": 3, "maxp": 4, "name": 5,
	"OS/2": 6, "post": 7, "cvt ": 8, "fpgm": 9, "glyf": 10, "loca": 11,
	"prep": 12, "CFF ": 13, "VORG": 14, "gasp": 17, "kern": 19,
	"GDEF": 26, "GPOS": 27, "GSUB": 28,
}

// WOFF2 wraps an sfnt file in a WOFF2 container.  All tables use the null
// transform.
func WOFF2(sfntData []byte) []byte {
	return woff2(sfntData, false)
}

// WOFF2Transformed wraps an sfnt file with TrueType outlines in a WOFF2
// container, using the glyf and loca table transform.  The hmtx table is
// transformed too, if some of the left side bearings equal the xMin values
// of the glyphs.
func WOFF2Transformed(sfntData []byte) []byte {
	return woff2(sfntData, true)
}

type woff2Entry struct {
	flags      byte
	tag        string
	origLength int
	data       []byte
	// transformed is set if data is not the original table
	transformed bool
}

func woff2(sfntData []byte, transform bool) []byte {
	flavor, tables := splitSFNT(sfntData)

	// glyf must be followed by loca in the table directory
	sort.SliceStable(tables, func(i, j int) bool {
		return woff2Order(tables[i].tag) < woff2Order(tables[j].tag)
	})

	byTag := make(map[string][]byte, len(tables))
	for _, tab := range tables {
		byTag[tab.tag] = tab.data
	}
	var glyf *transformedGlyf
	var hmtx []byte
	if transform {
		head, maxp, hhea := byTag["head"], byTag["maxp"], byTag["hhea"]
		if byTag["glyf"] == nil || byTag["loca"] == nil {
			panic("font has no glyf outlines")
		}
		numGlyphs := int(binary.BigEndian.Uint16(maxp[4:]))
		indexFormat := binary.BigEndian.Uint16(head[50:])
		glyf = transformGlyf(byTag["glyf"], byTag["loca"], numGlyphs, indexFormat)

		numHMetrics := int(binary.BigEndian.Uint16(hhea[34:]))
		hmtx = transformHmtx(byTag["hmtx"], numHMetrics, glyf.xMins)
	}

	entries := make([]woff2Entry, 0, len(tables))
	for _, tab := range tables {
		e := woff2Entry{tag: tab.tag, origLength: len(tab.data), data: tab.data}
		switch {
		case tab.tag == "glyf" && glyf != nil:
			e.data = glyf.data
			e.transformed = true
		case tab.tag == "loca" && glyf != nil:
			e.data = nil
			e.transformed = true
		case tab.tag == "hmtx" && hmtx != nil:
			e.flags = 1 << 6
			e.data = hmtx
			e.transformed = true
		case tab.tag == "glyf" || tab.tag == "loca":
			e.flags = 3 << 6
		}
		entries = append(entries, e)
	}

	var dir, stream []byte
	totalSfntSize := 12 + 16*len(tables)
	for _, e := range entries {
		totalSfntSize += pad4(e.origLength)

		idx, known := woff2TagIndex[e.tag]
		if !known {
			idx = 0x3F
		}
		dir = append(dir, e.flags|idx)
		if !known {
			dir = append(dir, e.tag...)
		}
		dir = AppendUintBase128(dir, uint32(e.origLength))
		if e.transformed {
			dir = AppendUintBase128(dir, uint32(len(e.data)))
		}
		stream = append(stream, e.data...)
	}

	compressed := &bytes.Buffer{}
	bw := brotli.NewWriter(compressed)
	_, err := bw.Write(stream)
	if err != nil {
		panic(err)
	}
	err = bw.Close()
	if err != nil {
		panic(err)
	}

	total := 48 + len(dir) + compressed.Len()
	padded := pad4(total)
	res := make([]byte, 0, padded)
	res = binary.BigEndian.AppendUint32(res, 0x774F4632) // "wOF2"
	res = binary.BigEndian.AppendUint32(res, flavor)
	res = binary.BigEndian.AppendUint32(res, uint32(padded))
	res = binary.BigEndian.AppendUint16(res, uint16(len(tables)))
	res = binary.BigEndian.AppendUint16(res, 0)
	res = binary.BigEndian.AppendUint32(res, uint32(totalSfntSize))
	res = binary.BigEndian.AppendUint32(res, uint32(compressed.Len()))
	res = binary.BigEndian.AppendUint16(res, 1) // majorVersion
	res = binary.BigEndian.AppendUint16(res, 0) // minorVersion
	res = append(res, make([]byte, 20)...)      // no metadata or private data
	res = append(res, dir...)
	res = append(res, compressed.Bytes()...)
	res = append(res, make([]byte, padded-total)...)
	return res
}

func woff2Order(tag string) int {
	switch tag {
	case "glyf":
		return 1
	case "loca":
		return 2
	default:
		return 0
	}
}

// AppendUintBase128 appends the WOFF2 UIntBase128 encoding of x to buf.
func AppendUintBase128(buf []byte, x uint32) []byte {
	var tmp [5]byte
	n := 0
	for {
		tmp[4-n] = byte(x & 0x7F)
		x >>= 7
		n++
		if x == 0 {
			break
		}
	}
	for i := 5 - n; i < 4; i++ {
		tmp[i] |= 0x80
	}
	return append(buf, tmp[5-n:]...)
}

// Corrupt returns data which starts like a TrueType file but is otherwise
// garbage.
func Corrupt() []byte {
	res := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x09}
	for i := 0; i < 200; i++ {
		res = append(res, byte(i*37))
	}
	return res
}

// ReplaceUint32 returns a copy of data with the 32-bit value at offset
// replaced.
func ReplaceUint32(data []byte, offset int, val uint32) []byte {
	if offset+4 > len(data) {
		panic(fmt.Sprintf("offset %d out of range", offset))
	}
	res := bytes.Clone(data)
	binary.BigEndian.PutUint32(res[offset:], val)
	return res
}
