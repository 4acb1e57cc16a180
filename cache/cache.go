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

// Package cache stores glyph detection results in a key-value store.
//
// Results are stored per bundle: one entry holds the results for one font
// and one exact set of code points.  Failures of the underlying store never
// reach the caller.  A failed lookup is a miss and a failed write is
// skipped.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/golang/snappy"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
	"golang.org/x/crypto/blake2b"

	"seehuhn.de/go/glyphcov"
	"seehuhn.de/go/glyphcov/store"
)

const (
	// KeyPrefix is the prefix of all store keys used by the cache.
	// Keys with other prefixes are never read, written or deleted.
	KeyPrefix = "glyph-detection/"

	// envelopeVersion must be increased every time the stored format
	// changes.
	envelopeVersion = 1
)

// The first byte of every stored value gives the encoding of the rest.
const (
	encodingJSON   byte = 'j'
	encodingSnappy byte = 's'
)

// Config is the configuration of a [Cache].
type Config struct {
	Compress bool `yaml:"compress"`
}

// RegisterFlags registers flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix(f, "cache.")
}

// RegisterFlagsWithPrefix registers flags with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(f *flag.FlagSet, prefix string) {
	f.BoolVar(&cfg.Compress, prefix+"compress", false, "Compress cached detection results with snappy.")
}

// Stats summarises the cache entries in a store.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Cache stores detection results for bundles of code points.
// It is safe for concurrent use if the underlying store is.
type Cache struct {
	cfg    Config
	store  store.Store
	logger log.Logger

	requests prometheus.Counter
	hits     prometheus.Counter
	writes   prometheus.Counter
	failures *prometheus.CounterVec
}

// New creates a cache on top of the given store.  If reg is nil, the
// metrics are not registered.
func New(cfg Config, s store.Store, logger log.Logger, reg prometheus.Registerer) *Cache {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Cache{
		cfg:    cfg,
		store:  s,
		logger: logger,

		requests: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "glyphcov_cache_requests_total",
			Help: "Total number of detection bundles looked up in the cache.",
		}),
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "glyphcov_cache_hits_total",
			Help: "Total number of detection bundles found in the cache.",
		}),
		writes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "glyphcov_cache_writes_total",
			Help: "Total number of detection bundles written to the cache.",
		}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "glyphcov_cache_failures_total",
			Help: "Total number of failed cache operations.",
		}, []string{"operation"}),
	}
}

// Key returns the store key for the results of a font and a set of code
// points.  The order of chars and repeated code points do not affect the
// key.
func Key(fontID string, chars []rune) string {
	h, _ := blake2b.New256(nil)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(fontID)))
	h.Write(buf[:])
	h.Write([]byte(fontID))
	for _, r := range canonical(chars) {
		binary.BigEndian.PutUint32(buf[:4], uint32(r))
		h.Write(buf[:4])
	}

	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// canonical returns the code points in increasing order, without
// duplicates.  The argument is not modified.
func canonical(chars []rune) []rune {
	if glyphcov.IsCanonical(chars) {
		return chars
	}
	res := slices.Clone(chars)
	slices.Sort(res)
	return slices.Compact(res)
}

// Get returns the cached results for a font and a set of code points.
// The results are in increasing code point order.
func (c *Cache) Get(ctx context.Context, fontID string, chars []rune) ([]glyphcov.DetectionResult, bool) {
	chars = canonical(chars)
	key := Key(fontID, chars)

	c.requests.Inc()
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.failures.WithLabelValues("get").Inc()
		level.Warn(c.logger).Log("msg", "cache lookup failed", "font", fontID, "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	env, err := c.decode(data)
	if err != nil {
		c.failures.WithLabelValues("decode").Inc()
		level.Warn(c.logger).Log("msg", "ignoring unreadable cache entry", "font", fontID, "key", key, "err", err)
		return nil, false
	}
	if !env.matches(fontID, chars) {
		c.failures.WithLabelValues("mismatch").Inc()
		level.Warn(c.logger).Log("msg", "ignoring cache entry for a different request", "font", fontID, "key", key, "entry_font", env.FontID)
		return nil, false
	}

	c.hits.Inc()
	return env.Results, true
}

// Put stores the results for a font and a set of code points.
// Write failures are logged and otherwise ignored.
func (c *Cache) Put(ctx context.Context, fontID string, chars []rune, results []glyphcov.DetectionResult) {
	chars = canonical(chars)
	key := Key(fontID, chars)

	env := &envelope{
		Version:    envelopeVersion,
		FontID:     fontID,
		CodePoints: chars,
		Results:    results,
	}
	if !env.matches(fontID, chars) {
		c.failures.WithLabelValues("put").Inc()
		level.Error(c.logger).Log("msg", "not caching results which do not match the code points", "font", fontID, "key", key)
		return
	}

	data, err := c.encode(env)
	if err != nil {
		c.failures.WithLabelValues("encode").Inc()
		level.Warn(c.logger).Log("msg", "cannot encode cache entry", "font", fontID, "key", key, "err", err)
		return
	}

	err = c.store.Put(ctx, key, data)
	if err != nil {
		c.failures.WithLabelValues("put").Inc()
		level.Warn(c.logger).Log("msg", "cache write failed", "font", fontID, "key", key, "err", err)
		return
	}
	c.writes.Inc()
}

// InvalidateAll deletes all cache entries from the store and returns the
// number of deleted entries.  Other keys in the store are left alone.
// Deletion continues after errors, and all errors are returned together.
func (c *Cache) InvalidateAll(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}

	var errs error
	deleted := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		err := c.store.Delete(ctx, key)
		if err != nil {
			c.failures.WithLabelValues("delete").Inc()
			errs = multierr.Append(errs, err)
			continue
		}
		deleted++
	}

	level.Info(c.logger).Log("msg", "invalidated glyph detection cache", "deleted", deleted, "failed", len(multierr.Errors(errs)))
	return deleted, errs
}

// Stats counts the cache entries in the store and their total size.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list cache entries: %w", err)
	}

	var stats Stats
	for _, key := range keys {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		data, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return Stats{}, fmt.Errorf("read cache entry %q: %w", key, err)
		}
		if !ok {
			// deleted since the listing
			continue
		}
		stats.Entries++
		stats.Bytes += int64(len(data))
	}
	return stats, nil
}

type envelope struct {
	Version    int                        `json:"version"`
	FontID     string                     `json:"fontId"`
	CodePoints []rune                     `json:"codePoints"`
	Results    []glyphcov.DetectionResult `json:"results"`
}

// matches checks that the envelope holds one result for every code point
// of the request, in order.
func (env *envelope) matches(fontID string, chars []rune) bool {
	if env.Version != envelopeVersion || env.FontID != fontID {
		return false
	}
	if !slices.Equal(env.CodePoints, chars) || len(env.Results) != len(chars) {
		return false
	}
	for i, r := range env.Results {
		if r.CodePoint != chars[i] || r.Character != string(chars[i]) {
			return false
		}
	}
	return true
}

func (c *Cache) encode(env *envelope) ([]byte, error) {
	body, err := jsoniter.Marshal(env)
	if err != nil {
		return nil, err
	}
	if !c.cfg.Compress {
		return append([]byte{encodingJSON}, body...), nil
	}
	out := make([]byte, 1, 1+snappy.MaxEncodedLen(len(body)))
	out[0] = encodingSnappy
	return append(out, snappy.Encode(nil, body)...), nil
}

// decode reads both compressed and uncompressed entries, independent of
// the current configuration.
func (c *Cache) decode(data []byte) (*envelope, error) {
	if len(data) == 0 {
		return nil, errors.New("empty cache entry")
	}
	body := data[1:]
	switch data[0] {
	case encodingJSON:
		// pass
	case encodingSnappy:
		var err error
		body, err = snappy.Decode(nil, body)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown cache entry encoding 0x%02x", data[0])
	}

	env := &envelope{}
	err := jsoniter.Unmarshal(body, env)
	if err != nil {
		return nil, err
	}
	return env, nil
}
