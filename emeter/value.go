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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Unit uint8

const (
	NoUnit Unit = iota
	KilowattHour
	Watt
	Ampere
	Volt
	PowerFactor
)

func (u Unit) String() string {
	switch u {
	case KilowattHour:
		return "kWh"
	case Watt:
		return "W"
	case Ampere:
		return "A"
	case Volt:
		return "V"
	case PowerFactor:
		return "cosφ"
	}
	return ""
}

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// Status distinguishes a decoded value from the two ways a query can come
// up empty without the frame being broken.
type Status uint8

const (
	Valid       Status = iota
	Absent             // no record with the queried type and index
	Unsupported        // record present, but no scaling rule for its index
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Absent:
		return "absent"
	case Unsupported:
		return "unsupported"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Query names one quantity within a frame.
type Query struct {
	Type  TagType
	Index uint8
}

// ParseQuery parses queries of the form "meas:1", "cntr:21" or "4:1".
func ParseQuery(s string) (q Query, err error) {
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) != 2 {
		return q, errors.Errorf("invalid query: %q", s)
	}

	switch strings.ToLower(fields[0]) {
	case "meas", "measurement", "4":
		q.Type = Measurement
	case "cntr", "counter", "8":
		q.Type = Counter
	default:
		return q, errors.Errorf("invalid query type: %q", fields[0])
	}

	idx, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return q, errors.Wrapf(err, "invalid query index: %q", fields[1])
	}
	q.Index = uint8(idx)

	return q, nil
}

func (q Query) String() string {
	return fmt.Sprintf("%s:%d", q.Type, q.Index)
}

// Reading is the decoded result of a Query. Value and Unit are only
// meaningful when Status is Valid.
type Reading struct {
	Query
	Status Status
	Value  float64
	Unit   Unit
}

func (r Reading) Valid() bool {
	return r.Status == Valid
}

func (r Reading) String() string {
	if r.Status != Valid {
		return fmt.Sprintf("%s:%s", r.Query, r.Status)
	}
	return fmt.Sprintf("%s:%g%s", r.Query, r.Value, r.Unit)
}

type indexSet [256]bool

func newIndexSet(indices ...uint8) (s indexSet) {
	for _, idx := range indices {
		s[idx] = true
	}
	return s
}

var (
	// Active, reactive and apparent power, total and per phase.
	energyIndices = newIndexSet(
		1, 2, 3, 4, 9, 10,
		21, 22, 23, 24, 29, 30,
		41, 42, 43, 44, 49, 50,
		61, 62, 63, 64, 69, 70,
	)
	currentIndices = newIndexSet(31, 51, 71)
	voltageIndices = newIndexSet(32, 52, 72)
)

const powerFactorIndex = 13

// Scale converts a raw record value into physical units. It returns false
// when no scaling rule exists for typ and idx.
func Scale(typ TagType, idx uint8, raw uint64) (float64, Unit, bool) {
	switch typ {
	case Counter:
		if energyIndices[idx] {
			return float64(raw) / 3600000.0, KilowattHour, true // Ws
		}
	case Measurement:
		switch {
		case energyIndices[idx]:
			return float64(raw) * 0.1, Watt, true
		case currentIndices[idx]:
			return float64(raw) / 1000.0, Ampere, true // mA
		case voltageIndices[idx]:
			return float64(raw) / 1000.0, Volt, true // mV
		case idx == powerFactorIndex:
			return float64(raw) * 0.001, PowerFactor, true
		}
	}
	return 0, NoUnit, false
}

// DecodeTag scales the value of tag.
func DecodeTag(tag Tag) (Reading, error) {
	r := Reading{Query: Query{tag.Type, tag.Index}}

	raw, err := tag.Raw()
	if err != nil {
		return r, err
	}

	var ok bool
	r.Value, r.Unit, ok = Scale(tag.Type, tag.Index, raw)
	if !ok {
		r.Status = Unsupported
	}

	return r, nil
}

var phaseQuantities = map[uint8]string{
	1:  "active power import",
	2:  "active power export",
	3:  "reactive power import",
	4:  "reactive power export",
	9:  "apparent power import",
	10: "apparent power export",
	11: "current",
	12: "voltage",
}

// Describe returns a human readable name for the quantity at idx, or the
// empty string if unknown. Indices 21-32, 41-52 and 61-72 repeat 1-12 for
// phases L1 to L3.
func Describe(idx uint8) string {
	if idx == powerFactorIndex {
		return "power factor"
	}

	phase := 0
	switch {
	case idx > 60:
		phase, idx = 3, idx-60
	case idx > 40:
		phase, idx = 2, idx-40
	case idx > 20:
		phase, idx = 1, idx-20
	}

	name, ok := phaseQuantities[idx]
	if !ok {
		return ""
	}
	// Current and voltage only exist per phase.
	if phase == 0 && (idx == 11 || idx == 12) {
		return ""
	}
	if phase != 0 {
		name += fmt.Sprintf(" L%d", phase)
	}
	return name
}
