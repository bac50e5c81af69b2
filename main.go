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
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bemasher/emeter/capture"
	"github.com/bemasher/emeter/emeter"
)

var (
	buildTag   = "dev"     // v#.#.#
	buildDate  = "unknown" // date -u '+%Y-%m-%d'
	commitHash = "unknown" // git rev-parse HEAD
)

// setup loads configuration, configures logging and returns a context
// that ends on interrupt or when the time limit expires.
func setup(cmd *cobra.Command) (Config, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig(cmd, configFile)
	if err != nil {
		return cfg, nil, nil, err
	}

	if err := setupLogging(cfg.Log); err != nil {
		return cfg, nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	if cfg.Duration != 0 {
		var timeout context.CancelFunc
		ctx, timeout = context.WithTimeout(ctx, cfg.Duration)
		return cfg, ctx, func() { timeout(); cancel() }, nil
	}

	return cfg, ctx, cancel, nil
}

func newReceiver(cfg Config) (*Receiver, error) {
	enc, err := NewEncoder(cfg.Format, os.Stdout)
	if err != nil {
		return nil, err
	}
	return NewReceiver(cfg, enc)
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	rcvr, err := newReceiver(cfg)
	if err != nil {
		return err
	}

	if cfg.Capture != "" {
		c, err := rcvr.OpenCapture(cfg.Capture)
		if err != nil {
			return err
		}
		defer c.Close()
	}

	cfg.LogState()

	return rcvr.Listen(ctx)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	rcvr, err := newReceiver(cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "open capture")
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return err
	}

	return rcvr.Replay(ctx, r)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, ctx, cancel, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	return Simulate(ctx, cfg)
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, configFile)
	if err != nil {
		return err
	}

	buf, err := decodeHex(args[0])
	if err != nil {
		return err
	}

	return Dump(cmd.OutOrStdout(), buf, cfg)
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Build Tag: ", buildTag)
	fmt.Fprintln(out, "Build Date:", buildDate)
	fmt.Fprintln(out, "Commit:    ", commitHash)
	return nil
}

// decodeHex ignores whitespace and the separators commonly found in packet
// dumps.
func decodeHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ':' || r == '|' || r == '_' || r == '-' {
			return -1
		}
		return r
	}, s)

	buf, err := hex.DecodeString(clean)
	return buf, errors.Wrap(err, "decode hex")
}

// resolveDialect maps auto to the dialect detected in buf.
func resolveDialect(name string, buf []byte) (emeter.Dialect, error) {
	if strings.EqualFold(name, "auto") {
		return emeter.Detect(buf), nil
	}
	return emeter.ParseDialect(name)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logrus.Fatal(err)
	}
}
