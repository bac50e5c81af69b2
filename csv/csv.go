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

// Package csv writes decoded messages as comma separated records, one per
// line.
package csv

import (
	"encoding/csv"
	"io"

	"golang.org/x/xerrors"
)

// Recorder is implemented by values that can be flattened to a record.
type Recorder interface {
	Record() []string
}

// Headerer is implemented by values that can name the fields of their
// record. The header is written once, before the first record.
type Headerer interface {
	Header() []string
}

// An Encoder writes CSV records to an output stream.
type Encoder struct {
	w      *csv.Writer
	header bool
}

// NewEncoder returns a new encoder that writes to w. If header is true,
// the first value encoded that implements Headerer also emits a header
// line.
func NewEncoder(w io.Writer, header bool) *Encoder {
	return &Encoder{w: csv.NewWriter(w), header: header}
}

// Encode writes a CSV record representing v to the stream followed by a
// newline character. Value given must implement the Recorder interface.
func (enc *Encoder) Encode(v interface{}) (err error) {
	defer func() {
		if r, _ := recover().(error); r != nil {
			err = xerrors.Errorf("recovered: %w", r)
		}
	}()

	rec := v.(Recorder)

	if h, ok := v.(Headerer); ok && enc.header {
		if header := h.Header(); len(header) > 0 {
			if err = enc.w.Write(header); err != nil {
				return xerrors.Errorf("write header: %w", err)
			}
		}
		enc.header = false
	}

	if err = enc.w.Write(rec.Record()); err != nil {
		return xerrors.Errorf("write record: %w", err)
	}
	enc.w.Flush()

	return enc.w.Error()
}
