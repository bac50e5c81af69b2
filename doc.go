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

/*
EMETER is a receiver for the multicast telemetry broadcast by SMA Energy
Meters. Meters send one frame per second to 239.12.255.254:9522; each frame
carries instantaneous power, current, voltage and cumulative energy for the
grid connection as a whole and for each phase.

Commands:

	emeter [listen]

Joins the multicast group and prints the configured readings of every frame.

	emeter replay FILE

Decodes datagrams previously recorded with -capture.

	emeter simulate

Multicasts synthetic frames, useful for testing without a meter.

	emeter dump HEX

Decodes a single frame and prints every record it contains.

	emeter version

Displays build tag, date and commit hash.

Flags:

	-config=""

YAML file to read flag values from. Every flag may also be set from an
environment variable named EMETER_ followed by the upper case flag name, ex.
EMETER_LENGTH=600. Flags given on the command line take precedence over the
environment, which takes precedence over the config file.

	-dialect="auto"

Frame header layout: legacy, em2 or auto. Auto inspects each frame's
identifier and protocol id.

	-length=588

Expected declared length of the tag stream. Frames declaring any other
length are discarded.

	-query=meas:1,meas:2

Quantities to report, as type:index. Type is meas for instantaneous values
or cntr for cumulative counters. Indices:

	 1  active power import        2  active power export
	 3  reactive power import      4  reactive power export
	 9  apparent power import     10  apparent power export
	13  power factor

Indices 21-32, 41-52 and 61-72 repeat 1-10 for phases L1 to L3, with
current at 31, 51, 71 and voltage at 32, 52, 72.

Power is reported in W, energy in kWh, current in A and voltage in V.
Quantities missing from a frame are reported as absent, quantities without a
known scale as unsupported. Neither is ever reported as zero.

	-format="plain"

Output format: plain, csv, json or xml. Messages are encoded one per line.
CSV output begins with a header line.

	-filterid=""

Display only messages from the given comma-separated serial numbers. Serials
are printed as the 5 digit SUSy ID followed by the 10 digit serial number.

	-unique=false

Suppress messages whose tag stream is identical to the previous message from
the same meter.

	-single=false

Exit after the first message, or after one message from each meter given to
-filterid.

	-duration=0

Time to run for, 0 for infinite.

	-capture=""

Record every received datagram to an lz4 compressed capture file.

	-loglevel="info", -logformat="text", -logfile=""

Log messages go to stderr unless a log file is given, which is rotated by
size (-logmaxsize, -logmaxbackups, -logmaxage).
*/
package main
