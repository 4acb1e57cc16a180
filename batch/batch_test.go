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

package batch

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"seehuhn.de/go/glyphcov"
	"seehuhn.de/go/glyphcov/cache"
	"seehuhn.de/go/glyphcov/detect"
	"seehuhn.de/go/glyphcov/fontfile"
	"seehuhn.de/go/glyphcov/internal/testfont"
	"seehuhn.de/go/glyphcov/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingDetector counts the calls to the underlying detector.
type countingDetector struct {
	calls atomic.Int64
	next  detect.Detector
}

func (d *countingDetector) Detect(f *fontfile.Font, r rune) detect.Presence {
	d.calls.Add(1)
	return d.next.Detect(f, r)
}

// panicDetector panics for one code point.
type panicDetector struct {
	r rune
}

func (d panicDetector) Detect(f *fontfile.Font, r rune) detect.Presence {
	if r == d.r {
		panic("boom")
	}
	return detect.TableInspector{}.Detect(f, r)
}

func testFonts() []glyphcov.FontAsset {
	return []glyphcov.FontAsset{
		{ID: "go", FileName: "Go-Regular.ttf", Data: testfont.GoRegular()},
		{ID: "square", FileName: "Square.woff2", Data: testfont.WOFF2(testfont.Square(nil))},
	}
}

func testLanguages() []glyphcov.Language {
	return []glyphcov.Language{
		{ID: "latin", Coverage: "AB A"},
		{ID: "none", Coverage: ""},
		{ID: "cjk", Coverage: "中"},
	}
}

func result(r rune, missing bool) glyphcov.DetectionResult {
	return glyphcov.DetectionResult{
		Character:  string(r),
		CodePoint:  r,
		IsMissing:  missing,
		Confidence: 1,
	}
}

func TestRun(t *testing.T) {
	r := New(Config{Concurrency: 2}, nil, nil, nil)
	res, err := r.Run(context.Background(), testFonts(), testLanguages(), false)
	require.NoError(t, err)

	want := glyphcov.BatchResult{
		"go": {
			"latin": {result(' ', true), result('A', false), result('B', false)},
			"none":  {},
			"cjk":   {result('中', true)},
		},
		"square": {
			"latin": {result(' ', true), result('A', false), result('B', true)},
			"none":  {},
			"cjk":   {result('中', true)},
		},
	}
	assert.Equal(t, want, res)
}

func TestRunEmpty(t *testing.T) {
	r := New(Config{Concurrency: 1}, nil, nil, nil)

	res, err := r.Run(context.Background(), nil, testLanguages(), false)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = r.Run(context.Background(), testFonts(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, glyphcov.BatchResult{"go": {}, "square": {}}, res)
}

func TestCacheHit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(0)
	c := cache.New(cache.Config{}, s, nil, nil)
	d := &countingDetector{next: detect.TableInspector{}}
	reg := prometheus.NewPedanticRegistry()
	r := New(Config{Concurrency: 3}, c, nil, reg, WithDetector(d))

	langs := []glyphcov.Language{{ID: "abc", Coverage: "ABC"}}
	first, err := r.Run(ctx, testFonts(), langs, false)
	require.NoError(t, err)
	assert.Equal(t, int64(6), d.calls.Load())
	assert.Equal(t, 2, s.Len())

	second, err := r.Run(ctx, testFonts(), langs, false)
	require.NoError(t, err)
	assert.Equal(t, int64(6), d.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.pairs.WithLabelValues(string(OutcomeCached))))

	// a smaller set of characters is a different bundle
	langs = []glyphcov.Language{{ID: "abc", Coverage: "AB"}}
	_, err = r.Run(ctx, testFonts(), langs, false)
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.calls.Load())
	assert.Equal(t, 4, s.Len())

	// bypassing the cache runs detection again
	third, err := r.Run(ctx, testFonts(), []glyphcov.Language{{ID: "abc", Coverage: "CBA"}}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(16), d.calls.Load())
	assert.Equal(t, first, third)
}

func TestPartialFailure(t *testing.T) {
	s := store.NewMemory(0)
	c := cache.New(cache.Config{}, s, nil, nil)
	var events []Event
	r := New(Config{Concurrency: 1}, c, nil, nil, WithProgress(func(e Event) {
		events = append(events, e)
	}))

	fonts := []glyphcov.FontAsset{
		{ID: "one", Data: testfont.GoRegular()},
		{ID: "two", Data: testfont.Corrupt()},
		{ID: "three", Data: testfont.WOFF(testfont.GoRegular())},
	}
	langs := []glyphcov.Language{{ID: "latin", Coverage: "aß"}}
	res, err := r.Run(context.Background(), fonts, langs, false)
	require.NoError(t, err)

	good := []glyphcov.DetectionResult{result('a', false), result('ß', false)}
	assert.Equal(t, good, res["one"]["latin"])
	assert.Equal(t, good, res["three"]["latin"])
	assert.Equal(t, glyphcov.Unresolvable([]rune{'a', 'ß'}), res["two"]["latin"])

	require.Len(t, events, 3)
	assert.Equal(t, OutcomeDetected, events[0].Outcome)
	assert.Equal(t, OutcomeFailed, events[1].Outcome)
	assert.Equal(t, "two", events[1].FontID)
	var malformed *fontfile.MalformedContainerError
	assert.ErrorAs(t, events[1].Err, &malformed)
	assert.Equal(t, OutcomeDetected, events[2].Outcome)

	// failures are not cached
	assert.Equal(t, 2, s.Len())
}

func TestPanicIsolation(t *testing.T) {
	r := New(Config{Concurrency: 2}, nil, nil, nil, WithDetector(panicDetector{r: 'x'}))
	langs := []glyphcov.Language{
		{ID: "bad", Coverage: "wxy"},
		{ID: "good", Coverage: "wy"},
	}
	res, err := r.Run(context.Background(), testFonts()[:1], langs, false)
	require.NoError(t, err)

	assert.Equal(t, glyphcov.Unresolvable([]rune{'w', 'x', 'y'}), res["go"]["bad"])
	assert.Equal(t, []glyphcov.DetectionResult{result('w', false), result('y', false)}, res["go"]["good"])
}

func TestDuplicates(t *testing.T) {
	var events []Event
	r := New(Config{Concurrency: 1}, nil, nil, nil, WithProgress(func(e Event) {
		events = append(events, e)
	}))

	fonts := []glyphcov.FontAsset{
		{ID: "f", Data: testfont.GoRegular()},
		{ID: "f", Data: testfont.Corrupt()},
	}
	langs := []glyphcov.Language{
		{ID: "l", Coverage: "aaaa"},
		{ID: "l", Coverage: "b"},
	}
	res, err := r.Run(context.Background(), fonts, langs, false)
	require.NoError(t, err)

	want := glyphcov.BatchResult{
		"f": {"l": {result('a', false)}},
	}
	assert.Equal(t, want, res)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Total)
}

func TestProgress(t *testing.T) {
	var (
		events     []Event
		active     atomic.Int32
		overlapped atomic.Bool
	)
	r := New(Config{Concurrency: 4}, nil, nil, nil, WithProgress(func(e Event) {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		events = append(events, e)
		active.Add(-1)
	}))

	langs := []glyphcov.Language{
		{ID: "1", Coverage: "a"},
		{ID: "2", Coverage: "b"},
		{ID: "3", Coverage: "c"},
		{ID: "4", Coverage: "d"},
	}
	_, err := r.Run(context.Background(), testFonts(), langs, false)
	require.NoError(t, err)

	assert.False(t, overlapped.Load())
	require.Len(t, events, 8)
	seen := make(map[[2]string]bool)
	for i, e := range events {
		assert.Equal(t, i+1, e.Completed)
		assert.Equal(t, 8, e.Total)
		seen[[2]string{e.FontID, e.LanguageID}] = true
	}
	assert.Len(t, seen, 8)
}

func TestCancel(t *testing.T) {
	s := store.NewMemory(0)
	c := cache.New(cache.Config{}, s, nil, nil)
	langs := []glyphcov.Language{
		{ID: "a", Coverage: "a"},
		{ID: "b", Coverage: "b"},
		{ID: "c", Coverage: "c"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(Config{Concurrency: 1}, c, nil, nil, WithProgress(func(Event) {
		cancel()
	}))
	res, err := r.Run(ctx, testFonts(), langs, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, glyphcov.BatchResult{
		"go":     {"a": {result('a', false)}},
		"square": {},
	}, res)
	assert.Equal(t, 1, s.Len())

	// a second run reuses the cached pair
	var outcomes []Outcome
	r = New(Config{Concurrency: 1}, c, nil, nil, WithProgress(func(e Event) {
		outcomes = append(outcomes, e.Outcome)
	}))
	_, err = r.Run(context.Background(), testFonts(), langs, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 6)
	assert.Equal(t, OutcomeCached, outcomes[0])
	for _, o := range outcomes[1:] {
		assert.Equal(t, OutcomeDetected, o)
	}
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &countingDetector{next: detect.TableInspector{}}
	r := New(Config{Concurrency: 2}, nil, nil, nil, WithDetector(d))
	_, err := r.Run(ctx, testFonts(), testLanguages(), false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, d.calls.Load())
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Concurrency: 0}
	assert.ErrorIs(t, cfg.Validate(), errInvalidConcurrency)

	cfg.Concurrency = 1
	assert.NoError(t, cfg.Validate())
}
