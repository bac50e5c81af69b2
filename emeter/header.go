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
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Dialect selects one of the historical header layouts. The tag stream
// encoding is shared by all dialects.
type Dialect uint8

const (
	Legacy Dialect = iota
	EnergyMeter2
)

func (d Dialect) String() string {
	switch d {
	case Legacy:
		return "legacy"
	case EnergyMeter2:
		return "em2"
	}
	return fmt.Sprintf("Dialect(%d)", uint8(d))
}

func (d Dialect) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDialect returns the dialect with the given name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "legacy":
		return Legacy, nil
	case "em2", "emeter2", "energymeter2":
		return EnergyMeter2, nil
	}
	return 0, errors.Errorf("invalid dialect: %q", name)
}

// HeaderLength is the size of the fixed header preceding the tag stream.
const HeaderLength = 28

// ProtocolEnergyMeter is the protocol id carried by Energy Meter 2 frames.
const ProtocolEnergyMeter = 0x6069

var identifier = []byte("SMA\x00")

// Detect guesses the dialect of buf from its leading identifier and
// protocol id. Anything not positively identified is treated as Legacy.
func Detect(buf []byte) Dialect {
	v := View(buf)
	if len(v) < HeaderLength || !bytes.Equal(v[:4], identifier) {
		return Legacy
	}
	if pid, err := v.U16(16); err == nil && pid == ProtocolEnergyMeter {
		return EnergyMeter2
	}
	return Legacy
}

// layout holds the offsets of the fields every dialect carries.
type layout struct {
	length, serialPrefix, serialNumber, ticker, stream int
}

var layouts = map[Dialect]layout{
	Legacy:       {length: 12, serialPrefix: 18, serialNumber: 20, ticker: 24, stream: 28},
	EnergyMeter2: {length: 12, serialPrefix: 18, serialNumber: 20, ticker: 24, stream: 28},
}

// Header is the fixed part of a frame. ID through Group, NetVersion and
// ProtocolID are only populated for EnergyMeter2.
type Header struct {
	Dialect Dialect

	ID       [4]byte
	Reserved uint16
	Tag      uint16
	Group    uint32

	DeclaredLength uint16

	NetVersion uint16
	ProtocolID uint16

	SerialPrefix uint16 // SUSy ID
	SerialNumber uint32
	Ticker       uint32

	stream int
}

// ParseHeader reads the header of buf according to dialect d.
func ParseHeader(buf []byte, d Dialect) (h Header, err error) {
	l, ok := layouts[d]
	if !ok {
		return h, errors.Errorf("invalid dialect: %s", d)
	}

	v := View(buf)
	if err = v.check(0, l.stream); err != nil {
		return h, errors.WithMessage(err, "header")
	}

	h.Dialect = d
	h.stream = l.stream
	h.DeclaredLength, _ = v.U16(l.length)
	h.SerialPrefix, _ = v.U16(l.serialPrefix)
	h.SerialNumber, _ = v.U32(l.serialNumber)
	h.Ticker, _ = v.U32(l.ticker)

	if d == EnergyMeter2 {
		copy(h.ID[:], v[0:4])
		h.Reserved, _ = v.U16(4)
		h.Tag, _ = v.U16(6)
		h.Group, _ = v.U32(8)
		h.NetVersion, _ = v.U16(14)
		h.ProtocolID, _ = v.U16(16)
	}

	return h, nil
}

// Serial returns the meter's serial number as printed on its label: the
// SUSy ID followed by the serial number.
func (h Header) Serial() string {
	return fmt.Sprintf("%05d%010d", h.SerialPrefix, h.SerialNumber)
}

// TickCounterMillis returns the tick counter divided by 1000.
func (h Header) TickCounterMillis() uint32 {
	return h.Ticker / 1000
}

// StreamOffset returns the offset of the first tag record.
func (h Header) StreamOffset() int {
	return h.stream
}

func (h Header) String() string {
	var fields []string

	fields = append(fields, fmt.Sprintf("Dialect:%s", h.Dialect))
	if h.Dialect == EnergyMeter2 {
		fields = append(fields, fmt.Sprintf("Group:%d", h.Group))
		fields = append(fields, fmt.Sprintf("ProtocolID:0x%04X", h.ProtocolID))
	}
	fields = append(fields, fmt.Sprintf("DeclaredLength:%d", h.DeclaredLength))
	fields = append(fields, fmt.Sprintf("Serial:%s", h.Serial()))
	fields = append(fields, fmt.Sprintf("Ticker:%d", h.TickCounterMillis()))

	return "{" + strings.Join(fields, " ") + "}"
}
