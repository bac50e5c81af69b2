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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bemasher/emeter/parse"
)

const (
	DefaultGroup  = "239.12.255.254"
	DefaultPort   = 9522
	DefaultLength = 588
)

var configFile string

// RegisterFlags adds the decoding and output flags shared by every command
// that consumes frames.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configFile, "config", "", "yaml config file, flags and EMETER_* environment variables take precedence")

	fs.String("dialect", "auto", "frame header layout: legacy, em2 or auto")
	fs.Int("length", DefaultLength, "expected declared length of the tag stream")
	fs.StringSlice("query", []string{"meas:1", "meas:2"}, "comma-separated quantities to report as type:index, type is meas or cntr")
	fs.String("format", "plain", "decoded message output format: plain, csv, json, or xml")
	fs.StringSlice("filterid", nil, "display only messages matching a serial in a comma-separated list of serials")
	fs.Bool("unique", false, "suppress duplicate messages from each meter")
	fs.Bool("single", false, "one shot execution, if used with -filterid, will wait for exactly one message from each serial")
	fs.Duration("duration", 0, "time to run for, 0 for infinite, ex. 1h5m10s")
	fs.Bool("quiet", false, "suppress state information logged at startup")

	fs.String("loglevel", "info", "log level: debug, info, warn or error")
	fs.String("logformat", "text", "log format: text or json")
	fs.String("logfile", "", "rotated log file, empty for stderr")
	fs.Int("logmaxsize", 10, "log file size in megabytes before it is rotated")
	fs.Int("logmaxbackups", 3, "rotated log files to keep")
	fs.Int("logmaxage", 28, "days to keep rotated log files")
}

// RegisterNetFlags adds multicast group flags.
func RegisterNetFlags(fs *pflag.FlagSet) {
	fs.String("group", DefaultGroup, "multicast group address")
	fs.Int("port", DefaultPort, "multicast port")
	fs.String("iface", "", "network interface to join the group on, empty for the system default")
}

var rootCmd = &cobra.Command{
	Use:           "emeter",
	Short:         "Receive and decode SMA Energy Meter telemetry",
	Long:          "emeter joins the SMA Energy Meter multicast group and prints the readings of every frame received.",
	Args:          cobra.NoArgs,
	RunE:          runListen,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Receive and decode frames from the multicast group",
	Args:  cobra.NoArgs,
	RunE:  runListen,
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode frames from a capture file",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Multicast synthetic frames for testing without a meter",
	Args:  cobra.NoArgs,
	RunE:  runSimulate,
}

var dumpCmd = &cobra.Command{
	Use:   "dump HEX",
	Short: "Decode a single hex encoded frame and print every record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display build date and commit hash",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	RegisterFlags(rootCmd.PersistentFlags())

	RegisterNetFlags(rootCmd.Flags())
	rootCmd.Flags().String("capture", "", "lz4 compressed file to record received datagrams to")

	RegisterNetFlags(listenCmd.Flags())
	listenCmd.Flags().String("capture", "", "lz4 compressed file to record received datagrams to")

	RegisterNetFlags(simulateCmd.Flags())
	simulateCmd.Flags().Duration("interval", time.Second, "time between frames")
	simulateCmd.Flags().Uint32("serial", 1900123456, "serial number of the simulated meter")

	rootCmd.AddCommand(listenCmd, replayCmd, simulateCmd, dumpCmd, versionCmd)
}

type StringSet map[string]bool

func NewStringSet(values []string) StringSet {
	s := make(StringSet)
	for _, v := range values {
		s[v] = true
	}
	return s
}

type MeterIDFilter struct {
	StringSet
}

func (m MeterIDFilter) Filter(msg parse.Message) bool {
	return m.StringSet[msg.MeterID()]
}

type UniqueFilter map[string][]byte

func NewUniqueFilter() UniqueFilter {
	return make(UniqueFilter)
}

func (uf UniqueFilter) Filter(msg parse.Message) bool {
	checksum := msg.Checksum()
	mid := msg.MeterID()

	if val, ok := uf[mid]; ok && bytes.Equal(val, checksum) {
		return false
	}

	uf[mid] = make([]byte, len(checksum))
	copy(uf[mid], checksum)
	return true
}
