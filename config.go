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
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bemasher/emeter/csv"
	"github.com/bemasher/emeter/emeter"
	"github.com/bemasher/emeter/parse"
)

const envPrefix = "EMETER"

type Config struct {
	Dialect  string        `mapstructure:"dialect"`
	Length   int           `mapstructure:"length"`
	Query    []string      `mapstructure:"query"`
	Format   string        `mapstructure:"format"`
	FilterID []string      `mapstructure:"filterid"`
	Unique   bool          `mapstructure:"unique"`
	Single   bool          `mapstructure:"single"`
	Duration time.Duration `mapstructure:"duration"`
	Quiet    bool          `mapstructure:"quiet"`

	Group     string `mapstructure:"group"`
	Port      int    `mapstructure:"port"`
	Interface string `mapstructure:"iface"`
	Capture   string `mapstructure:"capture"`

	Interval time.Duration `mapstructure:"interval"`
	Serial   uint32        `mapstructure:"serial"`

	Log LogConfig `mapstructure:",squash"`
}

type LogConfig struct {
	Level      string `mapstructure:"loglevel"`
	Format     string `mapstructure:"logformat"`
	File       string `mapstructure:"logfile"`
	MaxSizeMB  int    `mapstructure:"logmaxsize"`
	MaxBackups int    `mapstructure:"logmaxbackups"`
	MaxAgeDays int    `mapstructure:"logmaxage"`
}

// loadConfig layers the config file, EMETER_* environment variables and
// command line flags, in increasing order of precedence.
func loadConfig(cmd *cobra.Command, configFile string) (cfg Config, err error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err = v.BindPFlags(cmd.Flags()); err != nil {
		return cfg, errors.Wrap(err, "bind flags")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err = v.ReadInConfig(); err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
	}

	if err = v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "unmarshal config")
	}

	return cfg, nil
}

// Queries parses the configured list of quantities to report.
func (c Config) Queries() (queries []emeter.Query, err error) {
	for _, s := range c.Query {
		for _, field := range strings.Split(s, ",") {
			if strings.TrimSpace(field) == "" {
				continue
			}
			q, err := emeter.ParseQuery(field)
			if err != nil {
				return nil, err
			}
			queries = append(queries, q)
		}
	}
	return queries, nil
}

func (c Config) ParserConfig() (pc parse.Config, err error) {
	pc.ExpectedLength = c.Length
	pc.Queries, err = c.Queries()
	return pc, err
}

func (c Config) LogState() {
	if c.Quiet {
		return
	}

	logrus.Info("Dialect: ", c.Dialect)
	logrus.Info("ExpectedLength: ", c.Length)
	logrus.Info("Queries: ", strings.Join(c.Query, ","))
	logrus.Info("Format: ", c.Format)
	logrus.Info("Group: ", fmt.Sprintf("%s:%d", c.Group, c.Port))
	if c.Interface != "" {
		logrus.Info("Interface: ", c.Interface)
	}
	if c.Capture != "" {
		logrus.Info("Capture: ", c.Capture)
	}
	logrus.Info("TimeLimit: ", c.Duration)
}

func setupLogging(cfg LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: parse.TimeFormat,
			FullTimestamp:   true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: parse.TimeFormat,
		})
	default:
		return errors.Errorf("invalid log format: %q", cfg.Format)
	}

	if cfg.File == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}

	logrus.SetOutput(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})

	return nil
}

// JSON, XML and CSV all implement this interface so we can simplify
// message output formatting.
type Encoder interface {
	Encode(interface{}) error
}

func NewEncoder(format string, w io.Writer) (Encoder, error) {
	switch strings.ToLower(format) {
	case "plain":
		return PlainEncoder{w}, nil
	case "csv":
		return csv.NewEncoder(w, true), nil
	case "json":
		return json.NewEncoder(w), nil
	case "xml":
		return xmlEncoder{xml.NewEncoder(w), w}, nil
	}
	return nil, errors.Errorf("invalid format: %q", format)
}

type PlainEncoder struct {
	w io.Writer
}

func (pe PlainEncoder) Encode(msg interface{}) (err error) {
	if m, ok := msg.(parse.LogMessage); ok && m.Source == "" {
		_, err = fmt.Fprintln(pe.w, m.StringNoSource())
	} else {
		_, err = fmt.Fprintln(pe.w, msg)
	}
	return
}

// xmlEncoder writes one element per line.
type xmlEncoder struct {
	enc *xml.Encoder
	w   io.Writer
}

func (xe xmlEncoder) Encode(msg interface{}) error {
	if err := xe.enc.Encode(msg); err != nil {
		return err
	}
	_, err := io.WriteString(xe.w, "\n")
	return err
}
