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

// TagType is the record type byte. It alone determines a record's width.
type TagType uint8

const (
	Measurement TagType = 4 // instantaneous value, 4 byte payload
	Counter     TagType = 8 // cumulative value, 8 byte payload
)

// Meters close the stream with a firmware version record on channel 144.
// Its type byte is zero and its payload is 4 bytes wide.
const (
	versionChannel = 144
	versionType    = TagType(0)
)

const recordHeaderLength = 4

// Valid reports whether t is a queryable record type.
func (t TagType) Valid() bool {
	return t == Measurement || t == Counter
}

func (t TagType) String() string {
	switch t {
	case Measurement:
		return "meas"
	case Counter:
		return "cntr"
	}
	return fmt.Sprintf("TagType(%d)", uint8(t))
}

func (t TagType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// width returns the full record width for type t, or 0 if unknown.
func (t TagType) width() int {
	switch t {
	case Measurement:
		return recordHeaderLength + 4
	case Counter:
		return recordHeaderLength + 8
	}
	return 0
}

// Tag is one record of the tag stream. Value aliases the frame buffer and
// must not be retained beyond the frame's lifetime.
type Tag struct {
	Channel uint8
	Index   uint8
	Type    TagType
	Tariff  uint8
	Value   View
}

// Raw returns the unscaled payload: the 64-bit counter for Counter
// records, the 32-bit value for everything else.
func (t Tag) Raw() (uint64, error) {
	if t.Type == Counter {
		return t.Value.U64(0)
	}
	v, err := t.Value.U32(0)
	return uint64(v), err
}

// IsVersion reports whether t is the firmware version record.
func (t Tag) IsVersion() bool {
	return t.Channel == versionChannel && t.Type == versionType
}

func (t Tag) String() string {
	return fmt.Sprintf("{Channel:%d Index:%d Type:%s Tariff:%d Value:%X}",
		t.Channel, t.Index, t.Type, t.Tariff, []byte(t.Value),
	)
}

// Scanner walks the records of a tag stream in order. Use it like
// bufio.Scanner:
//
//	s := NewScanner(v, start, length)
//	for s.Scan() {
//		tag := s.Tag()
//	}
//	if err := s.Err(); err != nil {
//		...
//	}
type Scanner struct {
	view      View
	pos       int
	remaining int

	tag Tag
	err error
}

// NewScanner returns a scanner over the length bytes of v starting at start.
func NewScanner(v View, start, length int) *Scanner {
	return &Scanner{view: v, pos: start, remaining: length}
}

// Scan advances to the next record. It returns false at the end of the
// stream, at the end-of-data marker, or on error.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.remaining <= 0 {
		return false
	}

	hdr, err := s.view.Slice(s.pos, recordHeaderLength)
	if err != nil {
		s.err = err
		return false
	}

	// A zeroed record header marks the end of data.
	if hdr[0] == 0 && hdr[1] == 0 && hdr[2] == 0 && hdr[3] == 0 {
		s.remaining = 0
		return false
	}

	tag := Tag{Channel: hdr[0], Index: hdr[1], Type: TagType(hdr[2]), Tariff: hdr[3]}

	width := tag.Type.width()
	if tag.IsVersion() {
		width = recordHeaderLength + 4
	}
	if width == 0 {
		s.err = errors.Wrapf(ErrMalformedStream, "record type %d at offset %d", hdr[2], s.pos)
		return false
	}

	tag.Value, err = s.view.Slice(s.pos+recordHeaderLength, width-recordHeaderLength)
	if err != nil {
		s.err = err
		return false
	}

	s.tag = tag
	s.pos += width
	s.remaining -= width

	return true
}

// Tag returns the record produced by the most recent call to Scan.
func (s *Scanner) Tag() Tag {
	return s.tag
}

// Err returns the first error encountered by Scan.
func (s *Scanner) Err() error {
	return s.err
}

// Find returns the first record in the stream matching typ and idx. A
// missing record is reported with ok false and a nil error.
func Find(v View, start, length int, typ TagType, idx uint8) (tag Tag, ok bool, err error) {
	if !typ.Valid() {
		return tag, false, nil
	}

	s := NewScanner(v, start, length)
	for s.Scan() {
		if t := s.Tag(); t.Type == typ && t.Index == idx {
			return t, true, nil
		}
	}

	return tag, false, s.Err()
}
