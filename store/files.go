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

package store

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	fileSuffix  = ".entry"
	tempPattern = ".tmp-*"
)

// Files stores every entry in a separate file inside a directory.
//
// Values are first written to a temporary file, which is then renamed.
// Readers therefore see either the old or the new value, but never a
// partially written one.
type Files struct {
	fs  afero.Fs
	dir string
}

// NewFiles returns a store which keeps its entries in directory dir of fs.
// The directory is created if needed.
func NewFiles(fs afero.Fs, dir string) (*Files, error) {
	err := fs.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "create store directory %q", dir)
	}
	return &Files{fs: fs, dir: dir}, nil
}

func (s *Files) fileName(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+fileSuffix)
}

// Get implements the [Store] interface.
func (s *Files) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := afero.ReadFile(s.fs, s.fileName(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "read entry %q", key)
	}
	return data, true, nil
}

// Put implements the [Store] interface.
func (s *Files) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := afero.TempFile(s.fs, s.dir, tempPattern)
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(value)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return errors.Wrapf(err, "write entry %q", key)
	}

	err = s.fs.Rename(tmpName, s.fileName(key))
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return errors.Wrapf(err, "store entry %q", key)
	}
	return nil
}

// Delete implements the [Store] interface.
func (s *Files) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.fs.Remove(s.fileName(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete entry %q", key)
	}
	return nil
}

// Keys implements the [Store] interface.
func (s *Files) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %q", s.dir)
	}

	var keys []string
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			// not written by this store
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
