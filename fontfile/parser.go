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
	"errors"
	"fmt"
)

var errTruncated = errors.New("unexpected end of data")

// parser reads big-endian values from a font table held in memory.
type parser struct {
	tableName string
	data      []byte
	pos       int
	lastRead  int
}

func newParser(tableName string, data []byte) *parser {
	return &parser{
		tableName: tableName,
		data:      data,
	}
}

// Pos returns the current reading position.
func (p *parser) Pos() int {
	return p.pos
}

// Remaining returns the number of unread bytes.
func (p *parser) Remaining() int {
	return len(p.data) - p.pos
}

// Discard skips the next n bytes of input.
func (p *parser) Discard(n int) error {
	_, err := p.ReadBytes(n)
	return err
}

// ReadBytes returns the next n bytes.  The returned slice points into the
// underlying data and must not be modified.
func (p *parser) ReadBytes(n int) ([]byte, error) {
	p.lastRead = p.pos
	if n < 0 || n > len(p.data)-p.pos {
		return nil, p.Error("read of %d bytes failed: %w", n, errTruncated)
	}
	res := p.data[p.pos : p.pos+n]
	p.pos += n
	return res, nil
}

// ReadUint8 reads a single uint8 value from the current position.
func (p *parser) ReadUint8() (uint8, error) {
	buf, err := p.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads a single uint16 value from the current position.
func (p *parser) ReadUint16() (uint16, error) {
	buf, err := p.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ReadInt16 reads a single int16 value from the current position.
func (p *parser) ReadInt16() (int16, error) {
	val, err := p.ReadUint16()
	return int16(val), err
}

// ReadUint32 reads a single uint32 value from the current position.
func (p *parser) ReadUint32() (uint32, error) {
	buf, err := p.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}

// ReadUintBase128 reads a variable-length WOFF2 UIntBase128 value.
func (p *parser) ReadUintBase128() (uint32, error) {
	var accum uint32
	for i := 0; i < 5; i++ {
		b, err := p.ReadUint8()
		if err != nil {
			return 0, err
		}
		if i == 0 && b == 0x80 {
			return 0, p.Error("UIntBase128 with leading zeros")
		}
		if accum&0xFE000000 != 0 {
			return 0, p.Error("UIntBase128 overflow")
		}
		accum = accum<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return accum, nil
		}
	}
	return 0, p.Error("UIntBase128 longer than 5 bytes")
}

// Read255Uint16 reads a variable-length WOFF2 255UInt16 value.
func (p *parser) Read255Uint16() (uint16, error) {
	const (
		oneMoreByteCode1 = 255
		oneMoreByteCode2 = 254
		wordCode         = 253
		lowestUCode      = 253
	)

	code, err := p.ReadUint8()
	if err != nil {
		return 0, err
	}
	switch code {
	case wordCode:
		return p.ReadUint16()
	case oneMoreByteCode1:
		b, err := p.ReadUint8()
		if err != nil {
			return 0, err
		}
		return uint16(b) + lowestUCode, nil
	case oneMoreByteCode2:
		b, err := p.ReadUint8()
		if err != nil {
			return 0, err
		}
		return uint16(b) + 2*lowestUCode, nil
	default:
		return uint16(code), nil
	}
}

// Error returns an error which records the table name and the position of
// the last read.
func (p *parser) Error(format string, a ...interface{}) error {
	tableName := p.tableName
	if tableName == "" {
		tableName = "header"
	}
	a = append([]interface{}{tableName, p.lastRead}, a...)
	return fmt.Errorf("%s%+d: "+format, a...)
}
