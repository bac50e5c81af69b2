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
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bemasher/emeter/emeter"
)

// Dump decodes buf and writes its header and every record to w.
func Dump(w io.Writer, buf []byte, cfg Config) error {
	d, err := resolveDialect(cfg.Dialect, buf)
	if err != nil {
		return err
	}

	f, err := emeter.Decode(buf, d, cfg.Length)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Header:", f.Header)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tINDEX\tTYPE\tTARIFF\tRAW\tVALUE\tQUANTITY")

	s := f.Tags()
	for s.Scan() {
		tag := s.Tag()
		if tag.IsVersion() {
			fmt.Fprintf(tw, "%d\t\tversion\t\t%X\t%d.%d.%d.%c\t\n",
				tag.Channel, []byte(tag.Value), tag.Value[0], tag.Value[1], tag.Value[2], tag.Value[3],
			)
			continue
		}

		raw, err := tag.Raw()
		if err != nil {
			return err
		}
		r, err := emeter.DecodeTag(tag)
		if err != nil {
			return err
		}

		value := r.Status.String()
		if r.Valid() {
			value = fmt.Sprintf("%g %s", r.Value, r.Unit)
		}

		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%s\t%s\n",
			tag.Channel, tag.Index, tag.Type, tag.Tariff, raw, value, emeter.Describe(tag.Index),
		)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	return s.Err()
}
