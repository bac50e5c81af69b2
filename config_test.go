// EMETER - A receiver for SMA Energy Meter multicast telemetry.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/emeter/emeter"
)

func testCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd.Flags())
	RegisterNetFlags(cmd.Flags())
	cmd.Flags().String("capture", "", "")
	require.NoError(t, cmd.ParseFlags(args))

	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(testCommand(t), "")
	require.NoError(t, err)

	require.Equal(t, "auto", cfg.Dialect)
	require.Equal(t, DefaultLength, cfg.Length)
	require.Equal(t, []string{"meas:1", "meas:2"}, cfg.Query)
	require.Equal(t, DefaultGroup, cfg.Group)
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 10, cfg.Log.MaxSizeMB)
	require.Zero(t, cfg.Duration)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "emeter.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
dialect: legacy
length: 600
duration: 1m30s
format: csv
query:
  - cntr:1
  - cntr:2
filterid:
  - "003491900123456"
loglevel: debug
`), 0o644))

	t.Setenv("EMETER_LENGTH", "612")
	t.Setenv("EMETER_UNIQUE", "true")

	cfg, err := loadConfig(testCommand(t, "--format", "json"), file)
	require.NoError(t, err)

	require.Equal(t, "legacy", cfg.Dialect)
	require.Equal(t, 612, cfg.Length)
	require.Equal(t, 90*time.Second, cfg.Duration)
	require.Equal(t, "json", cfg.Format)
	require.Equal(t, []string{"cntr:1", "cntr:2"}, cfg.Query)
	require.Equal(t, []string{"003491900123456"}, cfg.FilterID)
	require.True(t, cfg.Unique)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(testCommand(t), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestQueries(t *testing.T) {
	cfg := Config{Query: []string{"meas:1, meas:2", "", "cntr:21"}}

	queries, err := cfg.Queries()
	require.NoError(t, err)
	require.Equal(t, []emeter.Query{
		{Type: emeter.Measurement, Index: 1},
		{Type: emeter.Measurement, Index: 2},
		{Type: emeter.Counter, Index: 21},
	}, queries)

	cfg.Query = []string{"meas:x"}
	_, err = cfg.Queries()
	require.Error(t, err)
}

func TestNewEncoder(t *testing.T) {
	for _, format := range []string{"plain", "CSV", "json", "xml"} {
		_, err := NewEncoder(format, &bytes.Buffer{})
		require.NoError(t, err, format)
	}

	_, err := NewEncoder("gob", &bytes.Buffer{})
	require.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)
	defer logrus.SetLevel(logrus.InfoLevel)

	require.NoError(t, setupLogging(LogConfig{Level: "warn", Format: "json"}))
	require.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	file := filepath.Join(t.TempDir(), "emeter.log")
	require.NoError(t, setupLogging(LogConfig{Level: "info", Format: "text", File: file, MaxSizeMB: 1}))
	logrus.Info("hello")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")

	require.Error(t, setupLogging(LogConfig{Level: "loud", Format: "text"}))
	require.Error(t, setupLogging(LogConfig{Level: "info", Format: "yaml"}))
}

func TestDecodeHex(t *testing.T) {
	buf, err := decodeHex(" 53:4D 41-00|0004_02A0\n")
	require.NoError(t, err)
	require.Equal(t, []byte{'S', 'M', 'A', 0, 0, 4, 2, 0xA0}, buf)

	_, err = decodeHex("ABC")
	require.Error(t, err)
}
