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

// Package batch runs glyph detection for all combinations of fonts and
// languages.
//
// Every (font, language) pair is processed independently.  If a font cannot
// be parsed, or if detection fails for some other reason, the results for
// the affected pairs are replaced by [glyphcov.Unresolvable] and the
// remaining pairs are processed as usual.
package batch

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"seehuhn.de/go/glyphcov"
	"seehuhn.de/go/glyphcov/cache"
	"seehuhn.de/go/glyphcov/detect"
	"seehuhn.de/go/glyphcov/fontfile"
)

// Config is the configuration of a [Runner].
type Config struct {
	// Concurrency is the number of pairs processed at the same time.
	Concurrency int `yaml:"concurrency"`
}

// RegisterFlags registers flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix(f, "batch.")
}

// RegisterFlagsWithPrefix registers flags with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(f *flag.FlagSet, prefix string) {
	f.IntVar(&cfg.Concurrency, prefix+"concurrency", 4, "Number of (font, language) pairs to process in parallel.")
}

var errInvalidConcurrency = errors.New("invalid batch concurrency")

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w %d: must be at least 1", errInvalidConcurrency, cfg.Concurrency)
	}
	return nil
}

// Outcome describes how the results for a pair were obtained.
type Outcome string

// These are the possible outcomes for a pair.
const (
	OutcomeCached   Outcome = "cached"   // results were found in the cache
	OutcomeDetected Outcome = "detected" // the font was inspected
	OutcomeFailed   Outcome = "failed"   // detection failed, results are unresolvable
	OutcomeEmpty    Outcome = "empty"    // the language has no characters
)

// Event reports the completion of one (font, language) pair.
type Event struct {
	FontID     string
	LanguageID string
	Outcome    Outcome
	Err        error // set if Outcome is OutcomeFailed

	Completed int
	Total     int
}

// Option changes the behaviour of a [Runner].
type Option func(*Runner)

// WithProgress sets a function which is called after every completed pair.
// Calls are never concurrent, and Completed increases by one with every
// call.
func WithProgress(fn func(Event)) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithDetector replaces the default [detect.TableInspector].
func WithDetector(d detect.Detector) Option {
	return func(r *Runner) {
		r.detector = d
	}
}

// Runner runs detection batches.  A Runner can be used for any number of
// batches, also concurrently.
type Runner struct {
	cfg      Config
	cache    *cache.Cache
	detector detect.Detector
	progress func(Event)
	logger   log.Logger

	pairs        *prometheus.CounterVec
	pairDuration prometheus.Histogram
}

// New creates a new Runner.  If c is nil, results are not cached.
// If reg is nil, the metrics are not registered.
func New(cfg Config, c *cache.Cache, logger log.Logger, reg prometheus.Registerer, opts ...Option) *Runner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	cfg.Concurrency = max(cfg.Concurrency, 1)

	r := &Runner{
		cfg:      cfg,
		cache:    c,
		detector: detect.TableInspector{},
		logger:   logger,

		pairs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "glyphcov_batch_pairs_total",
			Help: "Total number of processed (font, language) pairs.",
		}, []string{"outcome"}),
		pairDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "glyphcov_batch_pair_duration_seconds",
			Help:    "Time taken to process one (font, language) pair.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// font is a font asset together with the memoised parse result.
type font struct {
	asset *glyphcov.FontAsset
	parse func() (*fontfile.Font, error)
}

type language struct {
	lang  *glyphcov.Language
	chars []rune
}

// Run detects which characters of every language are missing from every
// font.
//
// Pairs are started in order, with the fonts in the outer loop.  If a font
// or language ID occurs more than once, only the first occurrence is used.
// If bypassCache is set, cached results are ignored, but fresh results are
// still written to the cache.
//
// If ctx is cancelled, no new pairs are started and Run returns the results
// collected so far together with the context error.
func (r *Runner) Run(ctx context.Context, fonts []glyphcov.FontAsset, langs []glyphcov.Language, bypassCache bool) (glyphcov.BatchResult, error) {
	start := time.Now()

	fontList := r.uniqueFonts(fonts)
	langList := r.uniqueLanguages(langs)

	res := make(glyphcov.BatchResult, len(fontList))
	for _, f := range fontList {
		res[f.asset.ID] = make(map[string][]glyphcov.DetectionResult, len(langList))
	}

	var (
		mu        sync.Mutex
		completed int
		counts    = make(map[Outcome]int)
	)
	total := len(fontList) * len(langList)
	record := func(f *font, l *language, results []glyphcov.DetectionResult, outcome Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()

		res[f.asset.ID][l.lang.ID] = results
		completed++
		counts[outcome]++
		if r.progress != nil {
			r.progress(Event{
				FontID:     f.asset.ID,
				LanguageID: l.lang.ID,
				Outcome:    outcome,
				Err:        err,
				Completed:  completed,
				Total:      total,
			})
		}
	}

	g := &errgroup.Group{}
	g.SetLimit(r.cfg.Concurrency)
pairs:
	for _, f := range fontList {
		for _, l := range langList {
			if ctx.Err() != nil {
				break pairs
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				pairStart := time.Now()
				results, outcome, err := r.runPair(ctx, f, l, bypassCache)
				r.pairDuration.Observe(time.Since(pairStart).Seconds())
				r.pairs.WithLabelValues(string(outcome)).Inc()
				record(f, l, results, outcome, err)
				return nil
			})
		}
	}
	_ = g.Wait()

	err := ctx.Err()
	level.Info(r.logger).Log(
		"msg", "detection batch finished",
		"fonts", len(fontList),
		"languages", len(langList),
		"pairs", total,
		"completed", completed,
		"cached", counts[OutcomeCached],
		"detected", counts[OutcomeDetected],
		"failed", counts[OutcomeFailed],
		"empty", counts[OutcomeEmpty],
		"duration", time.Since(start),
		"err", err,
	)
	return res, err
}

func (r *Runner) runPair(ctx context.Context, f *font, l *language, bypassCache bool) ([]glyphcov.DetectionResult, Outcome, error) {
	logger := log.With(r.logger, "font", f.asset.ID, "language", l.lang.ID)

	if len(l.chars) == 0 {
		level.Debug(logger).Log("msg", "no characters to check")
		return []glyphcov.DetectionResult{}, OutcomeEmpty, nil
	}

	if !bypassCache && r.cache != nil {
		if results, ok := r.cache.Get(ctx, f.asset.ID, l.chars); ok {
			level.Debug(logger).Log("msg", "using cached results", "characters", len(l.chars))
			return results, OutcomeCached, nil
		}
	}

	results, err := r.resolve(f, l)
	if err != nil {
		level.Warn(logger).Log("msg", "detection failed, reporting characters as unresolvable", "file", f.asset.FileName, "err", err)
		return glyphcov.Unresolvable(l.chars), OutcomeFailed, err
	}

	if r.cache != nil {
		r.cache.Put(ctx, f.asset.ID, l.chars, results)
	}
	level.Debug(logger).Log("msg", "detected missing glyphs", "characters", len(l.chars))
	return results, OutcomeDetected, nil
}

// resolve parses the font and runs the detector for all characters of the
// language.  Panics are turned into errors.
func (r *Runner) resolve(f *font, l *language) (results []glyphcov.DetectionResult, err error) {
	defer func() {
		if v := recover(); v != nil {
			results = nil
			err = fmt.Errorf("panic during detection: %v", v)
		}
	}()

	info, err := f.parse()
	if err != nil {
		return nil, err
	}
	return detect.DetectAll(r.detector, info, l.chars), nil
}

func (r *Runner) uniqueFonts(fonts []glyphcov.FontAsset) []*font {
	seen := make(map[string]bool, len(fonts))
	res := make([]*font, 0, len(fonts))
	for i := range fonts {
		asset := &fonts[i]
		if seen[asset.ID] {
			level.Warn(r.logger).Log("msg", "ignoring duplicate font", "font", asset.ID, "file", asset.FileName)
			continue
		}
		seen[asset.ID] = true

		// Each font is parsed at most once per run, the first time a
		// pair needs it.
		res = append(res, &font{
			asset: asset,
			parse: sync.OnceValues(func() (*fontfile.Font, error) {
				return fontfile.Parse(asset.Data)
			}),
		})
	}
	return res
}

func (r *Runner) uniqueLanguages(langs []glyphcov.Language) []*language {
	seen := make(map[string]bool, len(langs))
	res := make([]*language, 0, len(langs))
	for i := range langs {
		lang := &langs[i]
		if seen[lang.ID] {
			level.Warn(r.logger).Log("msg", "ignoring duplicate language", "language", lang.ID)
			continue
		}
		seen[lang.ID] = true
		res = append(res, &language{
			lang:  lang,
			chars: glyphcov.Characters(lang.Coverage),
		})
	}
	return res
}
