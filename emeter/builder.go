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

import "encoding/binary"

// Builder assembles frames. It's used to generate synthetic telemetry for
// tests and the simulator.
type Builder struct {
	Dialect      Dialect
	Group        uint32
	SerialPrefix uint16
	SerialNumber uint32
	Ticker       uint32

	// DeclaredLength overrides the declared length when non-zero. The
	// stream is zero padded up to it.
	DeclaredLength int

	stream []byte
}

// Record appends a raw record to the stream.
func (b *Builder) Record(channel, idx uint8, typ TagType, tariff uint8, value []byte) *Builder {
	b.stream = append(b.stream, channel, idx, uint8(typ), tariff)
	b.stream = append(b.stream, value...)
	return b
}

func (b *Builder) Measurement(idx uint8, raw uint32) *Builder {
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, raw)
	return b.Record(0, idx, Measurement, 0, value)
}

func (b *Builder) Counter(idx uint8, raw uint64) *Builder {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, raw)
	return b.Record(0, idx, Counter, 0, value)
}

// Version appends a firmware version record.
func (b *Builder) Version(major, minor, build uint8, release byte) *Builder {
	return b.Record(versionChannel, 0, versionType, 0, []byte{major, minor, build, release})
}

// Reset discards all records.
func (b *Builder) Reset() {
	b.stream = b.stream[:0]
}

// Bytes returns the encoded frame.
func (b *Builder) Bytes() []byte {
	length := len(b.stream)
	if b.DeclaredLength != 0 {
		length = b.DeclaredLength
	}

	streamLen := len(b.stream)
	if length > streamLen {
		streamLen = length
	}

	buf := make([]byte, HeaderLength+streamLen)
	copy(buf, identifier)

	if b.Dialect == EnergyMeter2 {
		binary.BigEndian.PutUint16(buf[4:], 0x0004)
		binary.BigEndian.PutUint16(buf[6:], 0x02A0)
		binary.BigEndian.PutUint32(buf[8:], b.Group)
		binary.BigEndian.PutUint16(buf[14:], 0x0010)
		binary.BigEndian.PutUint16(buf[16:], ProtocolEnergyMeter)
	}

	binary.BigEndian.PutUint16(buf[12:], uint16(length))
	binary.BigEndian.PutUint16(buf[18:], b.SerialPrefix)
	binary.BigEndian.PutUint32(buf[20:], b.SerialNumber)
	binary.BigEndian.PutUint32(buf[24:], b.Ticker)
	copy(buf[HeaderLength:], b.stream)

	return buf
}
