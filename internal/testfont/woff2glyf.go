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
	"encoding/binary"
	"math"
)

// transformedGlyf holds the output of the WOFF2 glyf table transform.
type transformedGlyf struct {
	data  []byte
	xMins []int16
}

// transformGlyf applies the WOFF2 glyf table transform (version 0) to
// the glyf and loca tables of a font.  Bounding boxes are stored
// explicitly only where they cannot be computed from the points.
func transformGlyf(glyfData, loca []byte, numGlyphs int, indexFormat uint16) *transformedGlyf {
	offset := func(i int) int {
		if indexFormat == 0 {
			return 2 * int(binary.BigEndian.Uint16(loca[2*i:]))
		}
		return int(binary.BigEndian.Uint32(loca[4*i:]))
	}

	var nContourStream, nPointsStream, flagStream, glyphStream []byte
	var compositeStream, bboxValues, instructionStream []byte
	bboxBitmap := make([]byte, 4*((numGlyphs+31)/32))
	overlapBitmap := make([]byte, (numGlyphs+7)/8)
	hasOverlap := false

	xMins := make([]int16, numGlyphs)
	for i := 0; i < numGlyphs; i++ {
		start, end := offset(i), offset(i+1)
		if end <= start {
			nContourStream = binary.BigEndian.AppendUint16(nContourStream, 0)
			continue
		}
		g := glyfData[start:end]
		nContours := int16(binary.BigEndian.Uint16(g))
		box := g[2:10]
		xMins[i] = int16(binary.BigEndian.Uint16(box))
		nContourStream = binary.BigEndian.AppendUint16(nContourStream, uint16(nContours))

		switch {
		case nContours == 0:
			// nothing to store

		case nContours > 0:
			pos := 10
			var numPoints int
			prevEnd := -1
			for c := 0; c < int(nContours); c++ {
				endPt := int(binary.BigEndian.Uint16(g[pos:]))
				pos += 2
				nPointsStream = append255Uint16(nPointsStream, uint16(endPt-prevEnd))
				prevEnd = endPt
				numPoints = endPt + 1
			}
			instrLen := int(binary.BigEndian.Uint16(g[pos:]))
			pos += 2
			instructions := g[pos : pos+instrLen]
			pos += instrLen

			flags := make([]byte, 0, numPoints)
			for len(flags) < numPoints {
				flag := g[pos]
				pos++
				flags = append(flags, flag)
				if flag&0x08 != 0 {
					repeat := int(g[pos])
					pos++
					for k := 0; k < repeat; k++ {
						flags = append(flags, flag)
					}
				}
			}
			dxs, pos := readCoordinates(g, pos, flags, 0x02, 0x10)
			dys, _ := readCoordinates(g, pos, flags, 0x04, 0x20)

			if flags[0]&0x40 != 0 {
				overlapBitmap[i>>3] |= 0x80 >> (i & 7)
				hasOverlap = true
			}

			x, y := 0, 0
			xMin, yMin := math.MaxInt, math.MaxInt
			xMax, yMax := math.MinInt, math.MinInt
			for j, flag := range flags {
				x += dxs[j]
				y += dys[j]
				xMin, xMax = min(xMin, x), max(xMax, x)
				yMin, yMax = min(yMin, y), max(yMax, y)

				tFlag, tData := encodeTriplet(dxs[j], dys[j], flag&0x01 != 0)
				flagStream = append(flagStream, tFlag)
				glyphStream = append(glyphStream, tData...)
			}
			glyphStream = append255Uint16(glyphStream, uint16(instrLen))
			instructionStream = append(instructionStream, instructions...)

			computed := make([]byte, 0, 8)
			for _, v := range []int{xMin, yMin, xMax, yMax} {
				computed = binary.BigEndian.AppendUint16(computed, uint16(int16(v)))
			}
			if string(computed) != string(box) {
				bboxBitmap[i>>3] |= 0x80 >> (i & 7)
				bboxValues = append(bboxValues, box...)
			}

		default:
			pos := 10
			hasInstructions := false
			for {
				flags := binary.BigEndian.Uint16(g[pos:])
				if flags&0x0100 != 0 {
					hasInstructions = true
				}
				size := 4
				if flags&0x0001 != 0 {
					size += 4
				} else {
					size += 2
				}
				switch {
				case flags&0x0008 != 0:
					size += 2
				case flags&0x0040 != 0:
					size += 4
				case flags&0x0080 != 0:
					size += 8
				}
				compositeStream = append(compositeStream, g[pos:pos+size]...)
				pos += size
				if flags&0x0020 == 0 {
					break
				}
			}
			if hasInstructions {
				instrLen := int(binary.BigEndian.Uint16(g[pos:]))
				glyphStream = append255Uint16(glyphStream, uint16(instrLen))
				instructionStream = append(instructionStream, g[pos+2:pos+2+instrLen]...)
			}
			bboxBitmap[i>>3] |= 0x80 >> (i & 7)
			bboxValues = append(bboxValues, box...)
		}
	}

	var optionFlags uint16
	if hasOverlap {
		optionFlags |= 1
	}
	bboxStream := append(bboxBitmap, bboxValues...)
	streams := [][]byte{
		nContourStream, nPointsStream, flagStream, glyphStream,
		compositeStream, bboxStream, instructionStream,
	}

	var res []byte
	res = binary.BigEndian.AppendUint16(res, 0) // version
	res = binary.BigEndian.AppendUint16(res, optionFlags)
	res = binary.BigEndian.AppendUint16(res, uint16(numGlyphs))
	res = binary.BigEndian.AppendUint16(res, indexFormat)
	for _, s := range streams {
		res = binary.BigEndian.AppendUint32(res, uint32(len(s)))
	}
	for _, s := range streams {
		res = append(res, s...)
	}
	if hasOverlap {
		res = append(res, overlapBitmap...)
	}
	return &transformedGlyf{data: res, xMins: xMins}
}

// readCoordinates decodes one coordinate array of a simple glyph.  The
// result holds the deltas between consecutive points.
func readCoordinates(g []byte, pos int, flags []byte, short, same byte) ([]int, int) {
	res := make([]int, len(flags))
	for j, flag := range flags {
		switch {
		case flag&short != 0:
			d := int(g[pos])
			pos++
			if flag&same == 0 {
				d = -d
			}
			res[j] = d
		case flag&same != 0:
			res[j] = 0
		default:
			res[j] = int(int16(binary.BigEndian.Uint16(g[pos:])))
			pos += 2
		}
	}
	return res, pos
}

// encodeTriplet returns the WOFF2 flag byte and data bytes for a point
// with the given coordinate deltas.
func encodeTriplet(dx, dy int, onCurve bool) (byte, []byte) {
	ax, ay := abs(dx), abs(dy)
	var signs int
	if dx >= 0 {
		signs |= 1
	}
	if dy >= 0 {
		signs |= 2
	}

	var flag int
	var data []byte
	switch {
	case dx == 0 && ay < 1280:
		flag = (ay>>8)<<1 + signs>>1
		data = []byte{byte(ay)}
	case dy == 0 && ax < 1280:
		flag = 10 + (ax>>8)<<1 + signs&1
		data = []byte{byte(ax)}
	case ax < 65 && ay < 65:
		flag = 20 + (ax-1)&0x30 + ((ay-1)&0x30)>>2 + signs
		data = []byte{byte((ax-1)&0x0F<<4 | (ay-1)&0x0F)}
	case ax < 769 && ay < 769:
		flag = 84 + 12*(((ax-1)&0x300)>>8) + ((ay-1)&0x300)>>6 + signs
		data = []byte{byte(ax - 1), byte(ay - 1)}
	case ax < 4096 && ay < 4096:
		flag = 120 + signs
		data = []byte{byte(ax >> 4), byte(ax&0x0F<<4 | ay>>8), byte(ay)}
	default:
		flag = 124 + signs
		data = []byte{byte(ax >> 8), byte(ax), byte(ay >> 8), byte(ay)}
	}
	if !onCurve {
		flag |= 0x80
	}
	return byte(flag), data
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// append255Uint16 appends the WOFF2 255UInt16 encoding of x to buf.
func append255Uint16(buf []byte, x uint16) []byte {
	if x < 253 {
		return append(buf, byte(x))
	}
	buf = append(buf, 253)
	return binary.BigEndian.AppendUint16(buf, x)
}

// transformHmtx applies the WOFF2 hmtx table transform (version 1).  Left
// side bearings which equal the xMin of the glyph are omitted.  If no
// bearings can be omitted, nil is returned.
func transformHmtx(hmtx []byte, numHMetrics int, xMins []int16) []byte {
	numGlyphs := len(xMins)
	lsb := func(i int) int16 {
		if i < numHMetrics {
			return int16(binary.BigEndian.Uint16(hmtx[4*i+2:]))
		}
		return int16(binary.BigEndian.Uint16(hmtx[4*numHMetrics+2*(i-numHMetrics):]))
	}

	omitProportional, omitMonospaced := true, numGlyphs > numHMetrics
	for i := 0; i < numGlyphs; i++ {
		if lsb(i) == xMins[i] {
			continue
		}
		if i < numHMetrics {
			omitProportional = false
		} else {
			omitMonospaced = false
		}
	}

	var flags byte
	if omitProportional {
		flags |= 0x01
	}
	if omitMonospaced {
		flags |= 0x02
	}
	if flags == 0 {
		return nil
	}

	res := []byte{flags}
	for i := 0; i < numHMetrics; i++ {
		res = append(res, hmtx[4*i:4*i+2]...)
	}
	for i := 0; i < numGlyphs; i++ {
		if i < numHMetrics && omitProportional || i >= numHMetrics && omitMonospaced {
			continue
		}
		res = binary.BigEndian.AppendUint16(res, uint16(lsb(i)))
	}
	return res
}
