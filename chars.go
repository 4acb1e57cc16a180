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

package glyphcov

import (
	"slices"
	"unicode/utf8"
)

// Characters returns the distinct code points of s in increasing order.
// Invalid UTF-8 sequences are skipped.
func Characters(s string) []rune {
	seen := make(map[rune]struct{}, len(s))
	var res []rune
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		res = append(res, r)
	}
	slices.Sort(res)
	return res
}

// IsCanonical reports whether chars is strictly increasing, i.e. whether it
// is sorted and free of duplicates.
func IsCanonical(chars []rune) bool {
	for i := 1; i < len(chars); i++ {
		if chars[i-1] >= chars[i] {
			return false
		}
	}
	return true
}
