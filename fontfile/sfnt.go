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
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sort"
)

// writeSFNT assembles an sfnt file from its tables.
// Tables where the data is nil are skipped.
// This changes the checksum in the "head" table in place.
func writeSFNT(scalerType uint32, tables map[string][]byte) ([]byte, error) {
	tableNames := make([]string, 0, len(tables))
	var size int64
	for name, data := range tables {
		if data == nil {
			continue
		}
		if len(name) != 4 || !isPrintable(name) {
			return nil, fmt.Errorf("invalid table tag %q", name)
		}
		tableNames = append(tableNames, name)
		size += 4 * ((int64(len(data)) + 3) / 4)
	}
	if len(tableNames) == 0 {
		return nil, errors.New("no tables")
	}
	numTables := len(tableNames)
	size += int64(12 + 16*numTables)
	if size > maxSFNTSize {
		return nil, errors.New("decoded font too large")
	}

	// tables are stored in the recommended order
	sort.Slice(tableNames, func(i, j int) bool {
		iPrio := tableOrder[tableNames[i]]
		jPrio := tableOrder[tableNames[j]]
		if iPrio != jPrio {
			return iPrio > jPrio
		}
		return tableNames[i] < tableNames[j]
	})

	head := tables["head"]
	if head != nil {
		if len(head) < 12 {
			return nil, errors.New("head table too short")
		}
		binary.BigEndian.PutUint32(head[8:12], 0)
	}

	entrySelector := bits.Len(uint(numTables)) - 1
	hdr := sfntHeader{
		ScalerType:    scalerType,
		NumTables:     uint16(numTables),
		SearchRange:   1 << (entrySelector + 4),
		EntrySelector: uint16(entrySelector),
		RangeShift:    uint16(16 * (numTables - 1<<entrySelector)),
	}

	var totalSum uint32
	offset := uint32(12 + 16*numTables)
	records := make([]tableRecord, numTables)
	for i, name := range tableNames {
		body := tables[name]
		sum := checksum(body)
		copy(records[i].Tag[:], name)
		records[i].CheckSum = sum
		records[i].Offset = offset
		records[i].Length = uint32(len(body))

		totalSum += sum
		offset += 4 * ((uint32(len(body)) + 3) / 4)
	}
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Tag[:], records[j].Tag[:]) < 0
	})

	buf := bytes.NewBuffer(make([]byte, 0, size))
	_ = binary.Write(buf, binary.BigEndian, hdr)
	_ = binary.Write(buf, binary.BigEndian, records)
	totalSum += checksum(buf.Bytes())

	if head != nil {
		binary.BigEndian.PutUint32(head[8:12], 0xB1B0AFBA-totalSum)
	}

	var pad [3]byte
	for _, name := range tableNames {
		body := tables[name]
		buf.Write(body)
		if k := len(body) % 4; k != 0 {
			buf.Write(pad[:4-k])
		}
	}
	return buf.Bytes(), nil
}

func checksum(data []byte) uint32 {
	var sum uint32
	for len(data) >= 4 {
		sum += binary.BigEndian.Uint32(data)
		data = data[4:]
	}
	if len(data) > 0 {
		var last [4]byte
		copy(last[:], data)
		sum += binary.BigEndian.Uint32(last[:])
	}
	return sum
}

func isPrintable(tag string) bool {
	for i := 0; i < len(tag); i++ {
		if tag[i] < 0x20 || tag[i] > 0x7E {
			return false
		}
	}
	return true
}

type sfntHeader struct {
	ScalerType    uint32
	NumTables     uint16
	SearchRange   uint16
	EntrySelector uint16
	RangeShift    uint16
}

type tableRecord struct {
	Tag      [4]byte
	CheckSum uint32
	Offset   uint32
	Length   uint32
}

// https://docs.microsoft.com/en-us/typography/opentype/spec/recom#optimized-table-ordering
var tableOrder = map[string]int{
	"head": 95,
	"hhea": 90,
	"maxp": 85,
	"OS/2": 80,
	"hmtx": 75,
	"LTSH": 70,
	"VDMX": 65,
	"hdmx": 60,
	"cmap": 55,
	"fpgm": 50,
	"prep": 45,
	"cvt ": 40,
	"loca": 35,
	"glyf": 30,
	"kern": 25,
	"name": 20,
	"post": 15,
	"gasp": 10,
	"DSIG": 5,
}
