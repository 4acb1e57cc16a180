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

	"github.com/klauspost/compress/zlib"
)

// maxSFNTSize limits the memory used when expanding compressed fonts.
const maxSFNTSize = 1 << 28

const (
	woffHeaderSize   = 44
	woffDirEntrySize = 20
)

// decodeWOFF converts a WOFF 1.0 file into an sfnt file.
// Errors are reported as [*MalformedContainerError] or
// [*UnsupportedFormatError].
func decodeWOFF(data []byte) ([]byte, error) {
	p := newParser("WOFF header", data)

	signature, err := p.ReadUint32()
	if err != nil {
		return nil, malformed(FormatWOFF, err)
	}
	if signature != signatureWOFF {
		return nil, malformed(FormatWOFF, errors.New("bad signature"))
	}
	flavor, err := p.ReadUint32()
	if err != nil {
		return nil, malformed(FormatWOFF, err)
	}
	length, err := p.ReadUint32()
	if err != nil {
		return nil, malformed(FormatWOFF, err)
	}
	numTables, err := p.ReadUint16()
	if err != nil {
		return nil, malformed(FormatWOFF, err)
	}
	reserved, err := p.ReadUint16()
	if err != nil {
		return nil, malformed(FormatWOFF, err)
	}
	// totalSfntSize, version, metadata and private data are not needed
	err = p.Discard(woffHeaderSize - p.Pos())
	if err != nil {
		return nil, malformed(FormatWOFF, err)
	}

	if err := checkFlavor(FormatWOFF, flavor); err != nil {
		return nil, err
	}
	if int64(length) > int64(len(data)) {
		return nil, malformed(FormatWOFF, fmt.Errorf("file truncated (%d < %d bytes)", len(data), length))
	}
	if reserved != 0 {
		return nil, malformed(FormatWOFF, errors.New("reserved header field is not zero"))
	}
	if numTables == 0 {
		return nil, malformed(FormatWOFF, errors.New("no tables"))
	}

	p.tableName = "WOFF table directory"
	tables := make(map[string][]byte, numTables)
	var total int64
	for i := 0; i < int(numTables); i++ {
		tag, err := p.ReadUint32()
		if err != nil {
			return nil, malformed(FormatWOFF, err)
		}
		offset, err := p.ReadUint32()
		if err != nil {
			return nil, malformed(FormatWOFF, err)
		}
		compLength, err := p.ReadUint32()
		if err != nil {
			return nil, malformed(FormatWOFF, err)
		}
		origLength, err := p.ReadUint32()
		if err != nil {
			return nil, malformed(FormatWOFF, err)
		}
		_, err = p.ReadUint32() // origChecksum
		if err != nil {
			return nil, malformed(FormatWOFF, err)
		}

		name := tagString(tag)
		if _, dup := tables[name]; dup {
			return nil, malformed(FormatWOFF, fmt.Errorf("duplicate table %q", name))
		}
		if int64(offset)+int64(compLength) > int64(len(data)) {
			return nil, malformed(FormatWOFF, fmt.Errorf("table %q extends beyond end of file", name))
		}
		if compLength > origLength {
			return nil, malformed(FormatWOFF, fmt.Errorf("table %q: compressed size exceeds original size", name))
		}
		total += int64(origLength)
		if total > maxSFNTSize {
			return nil, malformed(FormatWOFF, errors.New("decoded font too large"))
		}

		raw := data[offset : offset+compLength]
		if compLength == origLength {
			tables[name] = bytes.Clone(raw)
			continue
		}
		body, err := inflate(raw, int(origLength))
		if err != nil {
			return nil, malformed(FormatWOFF, fmt.Errorf("table %q: %w", name, err))
		}
		tables[name] = body
	}

	body, err := writeSFNT(flavor, tables)
	if err != nil {
		return nil, malformed(FormatWOFF, err)
	}
	return body, nil
}

// inflate decompresses a zlib stream which must expand to exactly size
// bytes.
func inflate(compressed []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	res := make([]byte, size)
	_, err = io.ReadFull(zr, res)
	if err != nil {
		return nil, err
	}
	n, _ := zr.Read(make([]byte, 1))
	if n > 0 {
		return nil, errors.New("decompressed data longer than declared")
	}
	return res, nil
}
