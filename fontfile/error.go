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

// MalformedContainerError indicates that a font file could not be decoded.
type MalformedContainerError struct {
	Format Format
	Err    error
}

func (err *MalformedContainerError) Error() string {
	middle := ""
	if err.Err != nil {
		middle = ": " + err.Err.Error()
	}
	return "malformed " + err.Format.String() + " font" + middle
}

func (err *MalformedContainerError) Unwrap() error {
	return err.Err
}

// UnsupportedFormatError indicates that a font file uses a container
// format which cannot be handled.
type UnsupportedFormatError struct {
	Format Format
	Reason string
}

func (err *UnsupportedFormatError) Error() string {
	msg := "unsupported font format " + err.Format.String()
	if err.Reason != "" {
		msg += ": " + err.Reason
	}
	return msg
}

// DecompressionFailedError indicates that the compressed data inside a
// WOFF2 file could not be expanded into an sfnt font.
type DecompressionFailedError struct {
	Err error
}

func (err *DecompressionFailedError) Error() string {
	return "WOFF2 decompression failed: " + err.Err.Error()
}

func (err *DecompressionFailedError) Unwrap() error {
	return err.Err
}

func malformed(format Format, err error) error {
	return &MalformedContainerError{Format: format, Err: err}
}
