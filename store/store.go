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

// Package store provides key-value stores for cached detection results.
//
// All stores are safe for concurrent use.  Values passed to Put and
// returned from Get are owned by the caller.
package store

import "context"

// Store is a key-value store with byte slice values.
type Store interface {
	// Get returns the value stored under key.  The second return value is
	// false if there is no such key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a value, replacing any previous value for key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key.  Deleting a key which does not exist is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys in the store, in no particular order.
	Keys(ctx context.Context) ([]string, error)
}
