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
	"context"
	"flag"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seehuhn.de/go/glyphcov/cache"
	"seehuhn.de/go/glyphcov/internal/testfont"
	"seehuhn.de/go/glyphcov/report"
)

const testLanguages = `
languages:
  - id: de
    coverage: "AaÄäß"
  - id: zh
    name: Chinese
    coverage: "中文"
  - id: blank
    coverage: " "
`

func setup(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/fonts/Go-Regular.ttf", testfont.GoRegular(), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/fonts/Go-Regular.woff", testfont.WOFF(testfont.GoRegular()), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/fonts/broken.otf", testfont.Corrupt(), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/languages.yaml", []byte(testLanguages), 0o644))
	return fs
}

func TestRun(t *testing.T) {
	fs := setup(t)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	args := []string{
		"-languages", "/languages.yaml",
		"-log.level", "error",
		"/fonts/Go-Regular.ttf", "/fonts/broken.otf",
	}
	err := run(context.Background(), fs, args, stdout, stderr)
	require.NoError(t, err, stderr.String())

	var data report.ReportData
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &data))

	assert.Equal(t, 2, data.Metadata.FontCount)
	assert.Equal(t, 3, data.Metadata.LanguageCount)
	assert.Equal(t, 6, data.Metadata.ResultCount)
	assert.Equal(t, 3, data.Metadata.UndetectableCount)
	assert.Equal(t, 3, data.Metadata.TotalMissingGlyphs)

	require.Len(t, data.Results, 6)
	de := data.Results[0]
	assert.Equal(t, "de", de.LanguageID)
	assert.Equal(t, "German", de.LanguageName)
	assert.Equal(t, "Go-Regular.ttf", de.FontName)
	assert.Equal(t, 5, de.TotalCharacters)
	assert.Equal(t, 0, de.MissingCount)
	assert.Equal(t, 100, de.CoveragePercent)

	zh := data.Results[1]
	assert.Equal(t, 2, zh.MissingCount)
	assert.Equal(t, 0, zh.CoveragePercent)
	require.Len(t, zh.MissingGlyphs, 2)
	assert.Equal(t, "4E2D", zh.MissingGlyphs[0].HexCode)
	assert.Equal(t, "6587", zh.MissingGlyphs[1].HexCode)

	blank := data.Results[2]
	assert.Equal(t, 1, blank.MissingCount)

	for _, row := range data.Results[3:] {
		assert.True(t, row.Undetectable)
		assert.Equal(t, 100, row.CoveragePercent)
	}
}

func TestRunMetricsFile(t *testing.T) {
	fs := setup(t)
	args := []string{
		"-languages", "/languages.yaml",
		"-output", "/report.json",
		"-metrics.file", "/metrics.prom",
		"/fonts/Go-Regular.ttf",
	}
	require.NoError(t, run(context.Background(), fs, args, &bytes.Buffer{}, &bytes.Buffer{}))

	buf, err := afero.ReadFile(fs, "/metrics.prom")
	require.NoError(t, err)
	metrics := string(buf)
	assert.Contains(t, metrics, `glyphcov_batch_pairs_total{outcome="detected"} 3`)
	assert.Contains(t, metrics, "glyphcov_cache_requests_total 3")
}

func TestRunConfigFile(t *testing.T) {
	fs := setup(t)
	config := `
batch:
  concurrency: 2
cache:
  compress: true
cache_dir: /var/cache/glyphcov
languages_file: /languages.yaml
output_file: /report.json
log_level: warn
`
	require.NoError(t, afero.WriteFile(fs, "/glyphcov.yaml", []byte(config), 0o644))

	args := []string{
		"-config.file", "/glyphcov.yaml",
		"/fonts/Go-Regular.ttf", "/fonts/Go-Regular.woff",
	}
	err := run(context.Background(), fs, args, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	buf, err := afero.ReadFile(fs, "/report.json")
	require.NoError(t, err)
	var data report.ReportData
	require.NoError(t, json.Unmarshal(buf, &data))
	assert.Equal(t, 6, data.Metadata.ResultCount)
	assert.Zero(t, data.Metadata.UndetectableCount)

	// both fonts have the same glyphs
	for i := 0; i < 3; i++ {
		a, b := data.Results[i], data.Results[i+3]
		assert.Equal(t, a.MissingGlyphs, b.MissingGlyphs)
	}

	stdout := &bytes.Buffer{}
	args = []string{"-config.file", "/glyphcov.yaml", "-cache.stats"}
	require.NoError(t, run(context.Background(), fs, args, stdout, &bytes.Buffer{}))
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	assert.Equal(t, 6, stats.Entries)

	args = []string{"-config.file", "/glyphcov.yaml", "-cache.invalidate"}
	require.NoError(t, run(context.Background(), fs, args, &bytes.Buffer{}, &bytes.Buffer{}))

	stdout.Reset()
	args = []string{"-config.file", "/glyphcov.yaml", "-cache.stats"}
	require.NoError(t, run(context.Background(), fs, args, stdout, &bytes.Buffer{}))
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	assert.Equal(t, 0, stats.Entries)
}

func TestRunErrors(t *testing.T) {
	fs := setup(t)
	cases := [][]string{
		{"-languages", "/languages.yaml"},
		{"-languages", "/missing.yaml", "/fonts/Go-Regular.ttf"},
		{"-languages", "/languages.yaml", "/fonts/missing.ttf"},
		{"-batch.concurrency", "0", "/fonts/Go-Regular.ttf"},
		{"-log.level", "loud", "/fonts/Go-Regular.ttf"},
		{"-no-such-flag"},
		{"-config.file", "/missing.yaml"},
	}
	for _, args := range cases {
		err := run(context.Background(), fs, args, &bytes.Buffer{}, &bytes.Buffer{})
		assert.Error(t, err, "%q", args)
	}

	err := run(context.Background(), fs, []string{"-help"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestParseConfigFileParameter(t *testing.T) {
	assert.Equal(t, "", parseConfigFileParameter(nil))
	assert.Equal(t, "a.yaml", parseConfigFileParameter([]string{"-config.file", "a.yaml"}))
	assert.Equal(t, "b.yaml", parseConfigFileParameter([]string{"-unknown", "-config.file=b.yaml", "font.ttf"}))
}

func TestLoadLanguages(t *testing.T) {
	fs := setup(t)
	langs, err := loadLanguages(fs, "/languages.yaml")
	require.NoError(t, err)
	require.Len(t, langs, 3)
	assert.Equal(t, "zh", langs[1].ID)
	assert.Equal(t, "Chinese", langs[1].Name)
	assert.Equal(t, "中文", langs[1].Coverage)

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("languages:\n  - coverage: abc\n"), 0o644))
	_, err = loadLanguages(fs, "/bad.yaml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/unknown.yaml", []byte("languages:\n  - id: x\n    chars: abc\n"), 0o644))
	_, err = loadLanguages(fs, "/unknown.yaml")
	assert.Error(t, err)
}
