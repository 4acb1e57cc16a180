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

// Command glyphcov reports which characters of a set of languages are
// missing from font files.
//
// Usage:
//
//	glyphcov [options] font.ttf font.woff2 ...
//
// The languages are read from a YAML file:
//
//	languages:
//	  - id: de
//	    coverage: "ÄÖÜäöüß"
//	  - id: el
//	    name: Greek
//	    coverage: "ΑΒΓΔΕΖΗΘΙΚΛΜΝΞΟΠΡΣΤΥΦΧΨΩ"
//
// The report is written as JSON.
package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/term"

	"seehuhn.de/go/glyphcov"
	"seehuhn.de/go/glyphcov/batch"
	"seehuhn.de/go/glyphcov/cache"
	"seehuhn.de/go/glyphcov/report"
	"seehuhn.de/go/glyphcov/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, afero.NewOsFs(), os.Args[1:], os.Stdout, os.Stderr)
	if err == flag.ErrHelp {
		os.Exit(0)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "glyphcov: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command with the given arguments.  All files are
// accessed through fsys.
func run(ctx context.Context, fsys afero.Fs, args []string, stdout, stderr io.Writer) error {
	cfg := &config{}
	flags := flag.NewFlagSet("glyphcov", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cfg.RegisterFlags(flags)
	_ = flags.String(configFileOption, "", "YAML configuration file to load.")
	bypassCache := flags.Bool("bypass-cache", false, "Ignore cached results and run detection again.")
	invalidate := flags.Bool("cache.invalidate", false, "Delete all cached detection results and exit.")
	showStats := flags.Bool("cache.stats", false, "Print statistics about the cached detection results and exit.")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: glyphcov [options] font...\n\n")
		flags.PrintDefaults()
	}

	// Values from the config file become the new defaults, the command
	// line takes precedence.
	if configFile := parseConfigFileParameter(args); configFile != "" {
		if err := loadConfig(fsys, configFile, cfg); err != nil {
			return err
		}
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(stderr, cfg.LogLevel)
	reg := prometheus.NewRegistry()

	var s store.Store
	if cfg.CacheDir != "" {
		files, err := store.NewFiles(fsys, cfg.CacheDir)
		if err != nil {
			return err
		}
		s = files
	} else {
		s = store.NewMemory(0)
	}
	c := cache.New(cfg.Cache, s, logger, reg)

	switch {
	case *invalidate:
		n, err := c.InvalidateAll(ctx)
		level.Info(logger).Log("msg", "cache cleared", "entries", n)
		return err
	case *showStats:
		stats, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		return writeJSON(stdout, stats)
	}

	if flags.NArg() == 0 {
		flags.Usage()
		return fmt.Errorf("no font files given")
	}
	fonts, err := readFonts(fsys, flags.Args())
	if err != nil {
		return err
	}
	langs, err := loadLanguages(fsys, cfg.LanguagesFile)
	if err != nil {
		return err
	}

	var opts []batch.Option
	if f, ok := stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		opts = append(opts, batch.WithProgress(progressLine(f)))
	}
	runner := batch.New(cfg.Batch, c, logger, reg, opts...)

	res, err := runner.Run(ctx, fonts, langs, *bypassCache)
	if err != nil {
		return err
	}
	data := report.Aggregate(fonts, langs, res, time.Now())
	if data.Metadata.UndetectableCount > 0 {
		level.Warn(logger).Log("msg", "some fonts could not be checked", "results", data.Metadata.UndetectableCount)
	}

	out := stdout
	if cfg.OutputFile != "" {
		f, err := fsys.Create(cfg.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := writeJSON(out, data); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		err := writeMetrics(fsys, cfg.MetricsFile, reg)
		if err != nil {
			return err
		}
	}
	return nil
}

// writeMetrics stores the gathered metrics in the Prometheus text format.
func writeMetrics(fsys afero.Fs, name string, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, mf := range mfs {
		_, err := expfmt.MetricFamilyToText(&buf, mf)
		if err != nil {
			return err
		}
	}
	return afero.WriteFile(fsys, name, buf.Bytes(), 0o644)
}

// readFonts loads font files.  The font ID combines the file name with a
// hash of the contents, so that cached results are not reused after a
// font file is changed.
func readFonts(fsys afero.Fs, names []string) ([]glyphcov.FontAsset, error) {
	fonts := make([]glyphcov.FontAsset, 0, len(names))
	for _, name := range names {
		data, err := afero.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		sum := blake2b.Sum256(data)
		base := filepath.Base(name)
		fonts = append(fonts, glyphcov.FontAsset{
			ID:       base + "@" + hex.EncodeToString(sum[:8]),
			FileName: base,
			Data:     data,
		})
	}
	return fonts, nil
}

func progressLine(w io.Writer) func(batch.Event) {
	return func(e batch.Event) {
		fmt.Fprintf(w, "\r%d/%d pairs checked", e.Completed, e.Total)
		if e.Completed == e.Total {
			fmt.Fprintln(w)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	_, err = w.Write(buf)
	return err
}
