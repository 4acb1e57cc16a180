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

// Format describes the container format of a font file.
type Format int

// These are the container formats recognised by [DetectFormat].
const (
	FormatUnknown Format = iota
	FormatTrueType
	FormatOpenType
	FormatWOFF
	FormatWOFF2
	FormatCollection
)

func (f Format) String() string {
	switch f {
	case FormatTrueType:
		return "TrueType"
	case FormatOpenType:
		return "OpenType"
	case FormatWOFF:
		return "WOFF"
	case FormatWOFF2:
		return "WOFF2"
	case FormatCollection:
		return "font collection"
	default:
		return "unknown"
	}
}

// Magic numbers at the start of font files, and the sfnt flavors which
// can be stored inside WOFF and WOFF2 files.
const (
	scalerTrueType   uint32 = 0x00010000
	scalerApple      uint32 = 0x74727565 // "true"
	scalerCFF        uint32 = 0x4F54544F // "OTTO"
	signatureWOFF    uint32 = 0x774F4646 // "wOFF"
	signatureWOFF2   uint32 = 0x774F4632 // "wOF2"
	signatureCollect uint32 = 0x74746366 // "ttcf"
)

// DetectFormat determines the container format from the first four bytes
// of a font file.
func DetectFormat(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}
	return formatFromTag(uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]))
}

func formatFromTag(tag uint32) Format {
	switch tag {
	case scalerTrueType, scalerApple:
		return FormatTrueType
	case scalerCFF:
		return FormatOpenType
	case signatureWOFF:
		return FormatWOFF
	case signatureWOFF2:
		return FormatWOFF2
	case signatureCollect:
		return FormatCollection
	default:
		return FormatUnknown
	}
}

// checkFlavor verifies that a WOFF or WOFF2 file wraps a single sfnt font.
func checkFlavor(container Format, flavor uint32) error {
	switch formatFromTag(flavor) {
	case FormatTrueType, FormatOpenType:
		return nil
	case FormatCollection:
		return &UnsupportedFormatError{Format: container, Reason: "font collections are not supported"}
	default:
		return &UnsupportedFormatError{Format: container, Reason: "unknown sfnt flavor " + tagString(flavor)}
	}
}

func tagString(tag uint32) string {
	b := []byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)}
	for i, c := range b {
		if c < 0x20 || c > 0x7E {
			b[i] = '?'
		}
	}
	return string(b)
}
