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

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"seehuhn.de/go/glyphcov"
	"seehuhn.de/go/glyphcov/batch"
	"seehuhn.de/go/glyphcov/cache"
)

const configFileOption = "config.file"

// config is the configuration of the command line tool.  Values are
// read from an optional YAML file first, command line flags take
// precedence.
type config struct {
	Batch batch.Config `yaml:"batch"`
	Cache cache.Config `yaml:"cache"`

	// CacheDir is the directory for cached results.  If empty, results
	// are only cached while the program runs.
	CacheDir string `yaml:"cache_dir"`

	LanguagesFile string `yaml:"languages_file"`
	OutputFile    string `yaml:"output_file"`
	MetricsFile   string `yaml:"metrics_file"`
	LogLevel      string `yaml:"log_level"`
}

func (cfg *config) RegisterFlags(f *flag.FlagSet) {
	cfg.Batch.RegisterFlags(f)
	cfg.Cache.RegisterFlags(f)
	f.StringVar(&cfg.CacheDir, "cache.dir", "", "Directory for cached detection results. Results are not kept between runs if empty.")
	f.StringVar(&cfg.LanguagesFile, "languages", "languages.yaml", "YAML file with the character sets to check.")
	f.StringVar(&cfg.OutputFile, "output", "", "File for the JSON report. The report is written to stdout if empty.")
	f.StringVar(&cfg.MetricsFile, "metrics.file", "", "If set, write Prometheus metrics in text format to this file when done.")
	f.StringVar(&cfg.LogLevel, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
}

func (cfg *config) Validate() error {
	if err := cfg.Batch.Validate(); err != nil {
		return err
	}
	if _, err := levelFilter(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.LanguagesFile == "" {
		return errors.New("no languages file given")
	}
	return nil
}

// parseConfigFileParameter finds the -config.file option using a separate
// flag set, so that the main flag set is only parsed once.
func parseConfigFileParameter(args []string) (configFile string) {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")

	// Parsing stops at the first unknown flag, so we retry with the
	// remaining arguments.
	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}
	return configFile
}

// loadConfig reads a YAML configuration file into cfg.
func loadConfig(fs afero.Fs, filename string, cfg *config) error {
	buf, err := afero.ReadFile(fs, filename)
	if err != nil {
		return errors.Wrap(err, "Error reading config file")
	}

	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.Wrap(err, "Error parsing config file")
	}
	return nil
}

type languageFile struct {
	Languages []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		NativeName string `yaml:"native_name"`
		Coverage   string `yaml:"coverage"`
	} `yaml:"languages"`
}

// loadLanguages reads the character sets to check from a YAML file.
func loadLanguages(fs afero.Fs, filename string) ([]glyphcov.Language, error) {
	buf, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, errors.Wrap(err, "Error reading languages file")
	}

	var file languageFile
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "Error parsing languages file")
	}

	res := make([]glyphcov.Language, 0, len(file.Languages))
	for i, l := range file.Languages {
		if l.ID == "" {
			return nil, fmt.Errorf("%s: language %d has no id", filename, i+1)
		}
		res = append(res, glyphcov.Language{
			ID:         l.ID,
			Name:       l.Name,
			NativeName: l.NativeName,
			Coverage:   l.Coverage,
		})
	}
	return res, nil
}

func levelFilter(name string) (level.Option, error) {
	switch strings.ToLower(name) {
	case "debug":
		return level.AllowDebug(), nil
	case "info", "":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, fmt.Errorf("unknown log level %q", name)
	}
}

func newLogger(w io.Writer, levelName string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	filter, err := levelFilter(levelName)
	if err != nil {
		filter = level.AllowInfo()
	}
	logger = level.NewFilter(logger, filter)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}
