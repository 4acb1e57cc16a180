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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Flags used in composite glyph descriptions.
const (
	argsAreWords    = 0x0001
	haveScale       = 0x0008
	moreComponents  = 0x0020
	haveXYScale     = 0x0040
	haveTwoByTwo    = 0x0080
	haveInstruction = 0x0100
)

// Flags used in simple glyph descriptions.
const (
	flagOnCurve      = 0x01
	flagXShort       = 0x02
	flagYShort       = 0x04
	flagXSame        = 0x10
	flagYSame        = 0x20
	flagOverlapSimpl = 0x40
)

type glyfResult struct {
	glyf  []byte
	loca  []byte
	xMins []int16
}

type glyfPoint struct {
	x, y    int
	onCurve bool
}

type bbox struct {
	xMin, yMin, xMax, yMax int16
}

// reconstructGlyf reverses the WOFF2 glyf table transform.
// The result contains the glyf and loca tables, together with the xMin
// value of every glyph.
func reconstructGlyf(data []byte) (*glyfResult, error) {
	p := newParser("glyf", data)

	var head [4]uint16
	for i := range head {
		val, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		head[i] = val
	}
	optionFlags, numGlyphs, indexFormat := head[1], int(head[2]), head[3]
	if head[0] != 0 {
		return nil, p.Error("unknown transform version %d", head[0])
	}

	var sizes [7]uint32
	for i := range sizes {
		val, err := p.ReadUint32()
		if err != nil {
			return nil, err
		}
		sizes[i] = val
	}
	var streams [7]*parser
	names := [7]string{"nContour", "nPoints", "flag", "glyph", "composite", "bbox", "instruction"}
	for i, size := range sizes {
		if int64(size) > int64(p.Remaining()) {
			return nil, p.Error("%s stream extends beyond end of table", names[i])
		}
		buf, _ := p.ReadBytes(int(size))
		streams[i] = newParser("glyf "+names[i]+" stream", buf)
	}
	nContourStream, nPointsStream, flagStream, glyphStream := streams[0], streams[1], streams[2], streams[3]
	compositeStream, bboxStream, instructionStream := streams[4], streams[5], streams[6]

	bboxBitmap, err := bboxStream.ReadBytes(4 * ((numGlyphs + 31) / 32))
	if err != nil {
		return nil, err
	}
	var overlapBitmap []byte
	if optionFlags&1 != 0 {
		overlapBitmap, err = p.ReadBytes((numGlyphs + 7) / 8)
		if err != nil {
			return nil, err
		}
	}
	bitSet := func(bitmap []byte, i int) bool {
		return bitmap != nil && bitmap[i>>3]&(0x80>>(i&7)) != 0
	}

	res := &glyfResult{
		xMins: make([]int16, numGlyphs),
	}
	offsets := make([]int, 0, numGlyphs+1)
	var glyfData []byte
	for i := 0; i < numGlyphs; i++ {
		offsets = append(offsets, len(glyfData))

		nContours, err := nContourStream.ReadInt16()
		if err != nil {
			return nil, err
		}
		haveBBox := bitSet(bboxBitmap, i)

		var glyphData []byte
		switch {
		case nContours == 0:
			if haveBBox {
				return nil, fmt.Errorf("glyph %d: empty glyph with bounding box", i)
			}

		case nContours > 0:
			endPts := make([]uint16, nContours)
			total := 0
			for c := range endPts {
				n, err := nPointsStream.Read255Uint16()
				if err != nil {
					return nil, err
				}
				total += int(n)
				if total > math.MaxUint16+1 {
					return nil, fmt.Errorf("glyph %d: too many points", i)
				}
				if total == 0 {
					return nil, fmt.Errorf("glyph %d: contour without points", i)
				}
				endPts[c] = uint16(total - 1)
			}

			points := make([]glyfPoint, total)
			x, y := 0, 0
			for j := range points {
				flag, err := flagStream.ReadUint8()
				if err != nil {
					return nil, err
				}
				onCurve := flag&0x80 == 0
				flag &= 0x7F
				in, err := glyphStream.ReadBytes(tripletSize(flag))
				if err != nil {
					return nil, err
				}
				dx, dy := decodeTriplet(flag, in)
				x += dx
				y += dy
				points[j] = glyfPoint{x: x, y: y, onCurve: onCurve}
			}

			instrLen, err := glyphStream.Read255Uint16()
			if err != nil {
				return nil, err
			}
			instructions, err := instructionStream.ReadBytes(int(instrLen))
			if err != nil {
				return nil, err
			}

			var box bbox
			if haveBBox {
				box, err = readBBox(bboxStream)
				if err != nil {
					return nil, err
				}
			} else {
				box, err = pointsBBox(points)
				if err != nil {
					return nil, fmt.Errorf("glyph %d: %w", i, err)
				}
			}

			glyphData, err = encodeSimpleGlyph(endPts, instructions, points, box, bitSet(overlapBitmap, i))
			if err != nil {
				return nil, fmt.Errorf("glyph %d: %w", i, err)
			}
			res.xMins[i] = box.xMin

		case nContours == -1:
			if !haveBBox {
				return nil, fmt.Errorf("glyph %d: composite glyph without bounding box", i)
			}
			components, hasInstructions, err := readComposite(compositeStream)
			if err != nil {
				return nil, err
			}
			box, err := readBBox(bboxStream)
			if err != nil {
				return nil, err
			}

			glyphData = appendGlyphHeader(nil, -1, box)
			glyphData = append(glyphData, components...)
			if hasInstructions {
				instrLen, err := glyphStream.Read255Uint16()
				if err != nil {
					return nil, err
				}
				instructions, err := instructionStream.ReadBytes(int(instrLen))
				if err != nil {
					return nil, err
				}
				glyphData = binary.BigEndian.AppendUint16(glyphData, instrLen)
				glyphData = append(glyphData, instructions...)
			}
			res.xMins[i] = box.xMin

		default:
			return nil, fmt.Errorf("glyph %d: invalid number of contours %d", i, nContours)
		}

		glyfData = append(glyfData, glyphData...)
		for len(glyfData)%4 != 0 {
			glyfData = append(glyfData, 0)
		}
	}
	offsets = append(offsets, len(glyfData))

	res.glyf = glyfData
	res.loca, err = encodeLoca(offsets, indexFormat)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// tripletSize returns the number of data bytes used by a point triplet
// with the given flag value.
func tripletSize(flag uint8) int {
	switch {
	case flag < 84:
		return 1
	case flag < 120:
		return 2
	case flag < 124:
		return 3
	default:
		return 4
	}
}

// decodeTriplet decodes the coordinate deltas of a WOFF2 point triplet.
// The on-curve bit must already have been removed from flag.
func decodeTriplet(flag uint8, in []byte) (dx, dy int) {
	withSign := func(flag uint8, base int) int {
		if flag&1 != 0 {
			return base
		}
		return -base
	}

	f := int(flag)
	switch {
	case flag < 10:
		dx = 0
		dy = withSign(flag, (f&14)<<7+int(in[0]))
	case flag < 20:
		dx = withSign(flag, ((f-10)&14)<<7+int(in[0]))
		dy = 0
	case flag < 84:
		b0 := f - 20
		b1 := int(in[0])
		dx = withSign(flag, 1+(b0&0x30)+(b1>>4))
		dy = withSign(flag>>1, 1+(b0&0x0C)<<2+(b1&0x0F))
	case flag < 120:
		b0 := f - 84
		dx = withSign(flag, 1+(b0/12)<<8+int(in[0]))
		dy = withSign(flag>>1, 1+((b0%12)>>2)<<8+int(in[1]))
	case flag < 124:
		b2 := int(in[1])
		dx = withSign(flag, int(in[0])<<4+b2>>4)
		dy = withSign(flag>>1, (b2&0x0F)<<8+int(in[2]))
	default:
		dx = withSign(flag, int(in[0])<<8+int(in[1]))
		dy = withSign(flag>>1, int(in[2])<<8+int(in[3]))
	}
	return dx, dy
}

// readComposite copies the component records of one composite glyph.
func readComposite(p *parser) ([]byte, bool, error) {
	start := p.Pos()
	hasInstructions := false
	for {
		flags, err := p.ReadUint16()
		if err != nil {
			return nil, false, err
		}
		if flags&haveInstruction != 0 {
			hasInstructions = true
		}
		skip := 2 // glyph index
		if flags&argsAreWords != 0 {
			skip += 4
		} else {
			skip += 2
		}
		switch {
		case flags&haveScale != 0:
			skip += 2
		case flags&haveXYScale != 0:
			skip += 4
		case flags&haveTwoByTwo != 0:
			skip += 8
		}
		err = p.Discard(skip)
		if err != nil {
			return nil, false, err
		}
		if flags&moreComponents == 0 {
			break
		}
	}
	return p.data[start:p.Pos()], hasInstructions, nil
}

func readBBox(p *parser) (bbox, error) {
	var vals [4]int16
	for i := range vals {
		val, err := p.ReadInt16()
		if err != nil {
			return bbox{}, err
		}
		vals[i] = val
	}
	return bbox{xMin: vals[0], yMin: vals[1], xMax: vals[2], yMax: vals[3]}, nil
}

func pointsBBox(points []glyfPoint) (bbox, error) {
	if len(points) == 0 {
		return bbox{}, nil
	}
	xMin, yMin := points[0].x, points[0].y
	xMax, yMax := xMin, yMin
	for _, pt := range points[1:] {
		xMin = min(xMin, pt.x)
		xMax = max(xMax, pt.x)
		yMin = min(yMin, pt.y)
		yMax = max(yMax, pt.y)
	}
	for _, v := range []int{xMin, yMin, xMax, yMax} {
		if v < math.MinInt16 || v > math.MaxInt16 {
			return bbox{}, errors.New("coordinate out of range")
		}
	}
	return bbox{xMin: int16(xMin), yMin: int16(yMin), xMax: int16(xMax), yMax: int16(yMax)}, nil
}

func appendGlyphHeader(buf []byte, nContours int16, box bbox) []byte {
	for _, v := range []int16{nContours, box.xMin, box.yMin, box.xMax, box.yMax} {
		buf = binary.BigEndian.AppendUint16(buf, uint16(v))
	}
	return buf
}

// encodeSimpleGlyph writes a glyph description in the format used by the
// glyf table.
func encodeSimpleGlyph(endPts []uint16, instructions []byte, points []glyfPoint, box bbox, overlap bool) ([]byte, error) {
	buf := appendGlyphHeader(nil, int16(len(endPts)), box)
	for _, e := range endPts {
		buf = binary.BigEndian.AppendUint16(buf, e)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(instructions)))
	buf = append(buf, instructions...)

	flags := make([]byte, len(points))
	var xs, ys []byte
	prevX, prevY := 0, 0
	for i, pt := range points {
		var flag byte
		if pt.onCurve {
			flag |= flagOnCurve
		}
		if i == 0 && overlap {
			flag |= flagOverlapSimpl
		}

		dx, dy := pt.x-prevX, pt.y-prevY
		prevX, prevY = pt.x, pt.y

		var err error
		flag, xs, err = appendCoordinate(flag, xs, dx, flagXShort, flagXSame)
		if err != nil {
			return nil, err
		}
		flag, ys, err = appendCoordinate(flag, ys, dy, flagYShort, flagYSame)
		if err != nil {
			return nil, err
		}
		flags[i] = flag
	}
	buf = append(buf, flags...)
	buf = append(buf, xs...)
	buf = append(buf, ys...)
	return buf, nil
}

func appendCoordinate(flag byte, buf []byte, delta int, short, same byte) (byte, []byte, error) {
	switch {
	case delta == 0:
		flag |= same
	case delta > -256 && delta < 256:
		flag |= short
		if delta > 0 {
			flag |= same
		} else {
			delta = -delta
		}
		buf = append(buf, byte(delta))
	case delta >= math.MinInt16 && delta <= math.MaxInt16:
		buf = binary.BigEndian.AppendUint16(buf, uint16(int16(delta)))
	default:
		return 0, nil, errors.New("coordinate delta out of range")
	}
	return flag, buf, nil
}

func encodeLoca(offsets []int, indexFormat uint16) ([]byte, error) {
	var buf []byte
	switch indexFormat {
	case 0:
		buf = make([]byte, 0, 2*len(offsets))
		for _, o := range offsets {
			if o/2 > math.MaxUint16 {
				return nil, errors.New("glyf table too large for short loca format")
			}
			buf = binary.BigEndian.AppendUint16(buf, uint16(o/2))
		}
	case 1:
		buf = make([]byte, 0, 4*len(offsets))
		for _, o := range offsets {
			buf = binary.BigEndian.AppendUint32(buf, uint32(o))
		}
	default:
		return nil, fmt.Errorf("invalid loca index format %d", indexFormat)
	}
	return buf, nil
}

// hmtxCounts reads the number of glyphs from the maxp table and the number
// of horizontal metrics from the hhea table.
func hmtxCounts(tables map[string][]byte) (numGlyphs, numHMetrics int, err error) {
	maxp, hhea := tables["maxp"], tables["hhea"]
	if len(maxp) < 6 {
		return 0, 0, errors.New("missing or truncated maxp table")
	}
	if len(hhea) < 36 {
		return 0, 0, errors.New("missing or truncated hhea table")
	}
	numGlyphs = int(binary.BigEndian.Uint16(maxp[4:]))
	numHMetrics = int(binary.BigEndian.Uint16(hhea[34:]))
	if numHMetrics < 1 || numHMetrics > numGlyphs {
		return 0, 0, fmt.Errorf("invalid number of horizontal metrics %d", numHMetrics)
	}
	return numGlyphs, numHMetrics, nil
}

// glyphXMins reads the xMin values of all glyphs from untransformed glyf
// and loca tables.
func glyphXMins(tables map[string][]byte, numGlyphs int) ([]int16, error) {
	head, glyfData, loca := tables["head"], tables["glyf"], tables["loca"]
	if glyfData == nil || loca == nil {
		return nil, errors.New("transformed hmtx table requires glyf outlines")
	}
	if len(head) < 54 {
		return nil, errors.New("missing or truncated head table")
	}
	longOffsets := binary.BigEndian.Uint16(head[50:]) != 0

	offset := func(i int) (int, error) {
		if longOffsets {
			if 4*i+4 > len(loca) {
				return 0, errors.New("loca table too short")
			}
			return int(binary.BigEndian.Uint32(loca[4*i:])), nil
		}
		if 2*i+2 > len(loca) {
			return 0, errors.New("loca table too short")
		}
		return 2 * int(binary.BigEndian.Uint16(loca[2*i:])), nil
	}

	xMins := make([]int16, numGlyphs)
	for i := range xMins {
		start, err := offset(i)
		if err != nil {
			return nil, err
		}
		end, err := offset(i + 1)
		if err != nil {
			return nil, err
		}
		if end <= start {
			continue
		}
		if start+10 > len(glyfData) {
			return nil, fmt.Errorf("glyph %d extends beyond end of glyf table", i)
		}
		xMins[i] = int16(binary.BigEndian.Uint16(glyfData[start+2:]))
	}
	return xMins, nil
}

// reconstructHmtx reverses the WOFF2 hmtx table transform.
func reconstructHmtx(data []byte, numGlyphs, numHMetrics int, xMins []int16) ([]byte, error) {
	p := newParser("hmtx", data)
	flags, err := p.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&0xFC != 0 || flags&0x03 == 0 {
		return nil, p.Error("invalid transform flags 0x%02x", flags)
	}
	if len(xMins) < numGlyphs {
		return nil, errors.New("hmtx: missing glyph bounding boxes")
	}

	advances := make([]uint16, numHMetrics)
	for i := range advances {
		advances[i], err = p.ReadUint16()
		if err != nil {
			return nil, err
		}
	}
	lsbs := make([]int16, numGlyphs)
	for i := range lsbs {
		absent := flags&0x01 != 0
		if i >= numHMetrics {
			absent = flags&0x02 != 0
		}
		if absent {
			lsbs[i] = xMins[i]
			continue
		}
		lsbs[i], err = p.ReadInt16()
		if err != nil {
			return nil, err
		}
	}

	buf := make([]byte, 0, 4*numHMetrics+2*(numGlyphs-numHMetrics))
	for i, lsb := range lsbs {
		if i < numHMetrics {
			buf = binary.BigEndian.AppendUint16(buf, advances[i])
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(lsb))
	}
	return buf, nil
}
