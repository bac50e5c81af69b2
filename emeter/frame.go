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

package emeter

import (
	"fmt"

	"github.com/pkg/errors"
)

// Frame is one decoded datagram. It refers to, but never modifies, the
// buffer it was decoded from.
type Frame struct {
	Header
	view View
}

// Decode parses the header of buf and validates its declared length against
// expectedLength. Records are located lazily by Reading.
func Decode(buf []byte, d Dialect, expectedLength int) (*Frame, error) {
	h, err := ParseHeader(buf, d)
	if err != nil {
		return nil, err
	}

	if int(h.DeclaredLength) != expectedLength {
		return nil, errors.Wrapf(ErrLengthMismatch, "expected %d, got %d", expectedLength, h.DeclaredLength)
	}

	return &Frame{Header: h, view: View(buf)}, nil
}

// Tags returns a scanner over every record in the frame.
func (f *Frame) Tags() *Scanner {
	return NewScanner(f.view, f.StreamOffset(), int(f.DeclaredLength))
}

// Stream returns the tag stream bytes present in the buffer, which may be
// fewer than declared.
func (f *Frame) Stream() []byte {
	start, end := f.StreamOffset(), f.StreamOffset()+int(f.DeclaredLength)
	if end > len(f.view) {
		end = len(f.view)
	}
	return f.view[start:end]
}

// Reading locates and scales the record for typ and idx. Missing records
// and records without a scaling rule are reported through the reading's
// Status, never as a zero value.
func (f *Frame) Reading(typ TagType, idx uint8) (Reading, error) {
	q := Query{typ, idx}

	tag, ok, err := Find(f.view, f.StreamOffset(), int(f.DeclaredLength), typ, idx)
	if err != nil {
		return Reading{Query: q}, errors.WithMessagef(err, "reading %s", q)
	}
	if !ok {
		return Reading{Query: q, Status: Absent}, nil
	}

	return DecodeTag(tag)
}

// Readings evaluates each query in order, stopping at the first error.
func (f *Frame) Readings(queries ...Query) ([]Reading, error) {
	readings := make([]Reading, 0, len(queries))
	for _, q := range queries {
		r, err := f.Reading(q.Type, q.Index)
		if err != nil {
			return readings, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// Version returns the meter firmware version, formatted major.minor.build.R,
// if the frame carries a version record.
func (f *Frame) Version() (string, bool, error) {
	s := f.Tags()
	for s.Scan() {
		if t := s.Tag(); t.IsVersion() {
			return fmt.Sprintf("%d.%d.%d.%c", t.Value[0], t.Value[1], t.Value[2], t.Value[3]), true, nil
		}
	}
	return "", false, s.Err()
}
