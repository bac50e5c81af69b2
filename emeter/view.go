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
	"encoding/binary"

	"github.com/pkg/errors"
)

// View is a read-only window over a frame buffer. All multi-byte fields are
// big-endian unsigned integers.
type View []byte

func (v View) check(offset, width int) error {
	if offset < 0 || offset+width > len(v) {
		return errors.Wrapf(ErrOutOfBounds, "%d byte read at offset %d of %d", width, offset, len(v))
	}
	return nil
}

func (v View) U8(offset int) (uint8, error) {
	if err := v.check(offset, 1); err != nil {
		return 0, err
	}
	return v[offset], nil
}

func (v View) U16(offset int) (uint16, error) {
	if err := v.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(v[offset:]), nil
}

func (v View) U32(offset int) (uint32, error) {
	if err := v.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(v[offset:]), nil
}

// U64 reads two consecutive 32-bit words, high word first.
func (v View) U64(offset int) (uint64, error) {
	hi, err := v.U32(offset)
	if err != nil {
		return 0, err
	}
	lo, err := v.U32(offset + 4)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// Slice returns the n bytes at offset without copying.
func (v View) Slice(offset, n int) (View, error) {
	if err := v.check(offset, n); err != nil {
		return nil, err
	}
	return v[offset : offset+n : offset+n], nil
}
