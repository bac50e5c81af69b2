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

package sma

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/emeter/emeter"
	"github.com/bemasher/emeter/parse"
)

var queries = []emeter.Query{
	{Type: emeter.Measurement, Index: 1},
	{Type: emeter.Measurement, Index: 2},
	{Type: emeter.Counter, Index: 1},
	{Type: emeter.Measurement, Index: 9},
}

func frame(d emeter.Dialect) []byte {
	b := &emeter.Builder{
		Dialect:        d,
		Group:          1,
		SerialPrefix:   349,
		SerialNumber:   1900123456,
		Ticker:         5000,
		DeclaredLength: 588,
	}
	b.Measurement(1, 12345).Measurement(2, 0).Counter(1, 7200000)
	return b.Bytes()
}

func TestParsers(t *testing.T) {
	cases := []struct {
		name    string
		dialect emeter.Dialect
	}{
		{"legacy", emeter.Legacy},
		{"em2", emeter.EnergyMeter2},
		{"auto", emeter.Legacy},
		{"auto", emeter.EnergyMeter2},
	}

	for _, c := range cases {
		t.Run(c.name+"/"+c.dialect.String(), func(t *testing.T) {
			p, err := parse.NewParser(c.name, parse.Config{ExpectedLength: 588, Queries: queries})
			require.NoError(t, err)

			msg, err := p.Parse(frame(c.dialect))
			require.NoError(t, err)

			tm, ok := msg.(Telemetry)
			require.True(t, ok)
			require.Equal(t, c.dialect, tm.Dialect)
			require.Equal(t, "003491900123456", tm.MeterID())
			require.Equal(t, uint32(5), tm.Ticker)
			require.Len(t, tm.Readings, len(queries))

			r, ok := tm.Reading(queries[0])
			require.True(t, ok)
			require.Equal(t, 1234.5, r.Value)

			r, ok = tm.Reading(queries[3])
			require.True(t, ok)
			require.Equal(t, emeter.Absent, r.Status)

			_, ok = tm.Reading(emeter.Query{Type: emeter.Counter, Index: 2})
			require.False(t, ok)
		})
	}
}

func TestParseLengthMismatch(t *testing.T) {
	p, err := parse.NewParser("legacy", parse.Config{ExpectedLength: 600, Queries: queries})
	require.NoError(t, err)

	msg, err := p.Parse(frame(emeter.Legacy))
	require.Nil(t, msg)
	require.True(t, errors.Is(err, emeter.ErrLengthMismatch), "%+v", err)
}

func TestTelemetryRecord(t *testing.T) {
	p, err := parse.NewParser("em2", parse.Config{ExpectedLength: 588, Queries: queries})
	require.NoError(t, err)

	msg, err := p.Parse(frame(emeter.EnergyMeter2))
	require.NoError(t, err)
	tm := msg.(Telemetry)

	require.Equal(t, []string{"dialect", "serial", "ticker", "meas:1", "meas:2", "cntr:1", "meas:9"}, tm.Header())
	require.Equal(t, []string{"em2", "003491900123456", "5", "1234.5", "0", "2", "absent"}, tm.Record())
	require.Contains(t, tm.String(), "meas:1:1234.5W")
	require.Contains(t, tm.String(), "meas:9:absent")
}

func TestTelemetryChecksum(t *testing.T) {
	p, err := parse.NewParser("auto", parse.Config{ExpectedLength: 588, Queries: queries})
	require.NoError(t, err)

	a, err := p.Parse(frame(emeter.Legacy))
	require.NoError(t, err)
	b, err := p.Parse(frame(emeter.EnergyMeter2))
	require.NoError(t, err)

	// Same stream, different headers.
	require.Equal(t, a.Checksum(), b.Checksum())
	require.Len(t, a.Checksum(), 2)
}

func TestTelemetryJSON(t *testing.T) {
	tm := Telemetry{
		Dialect: emeter.EnergyMeter2,
		Serial:  "003491900123456",
		Readings: []emeter.Reading{
			{Query: queries[0], Status: emeter.Valid, Value: 1234.5, Unit: emeter.Watt},
			{Query: queries[3], Status: emeter.Absent},
		},
	}

	data, err := json.Marshal(tm)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"Dialect": "em2",
		"Serial": "003491900123456",
		"Ticker": 0,
		"Readings": [
			{"Type": "meas", "Index": 1, "Status": "valid", "Value": 1234.5, "Unit": "W"},
			{"Type": "meas", "Index": 9, "Status": "absent", "Value": 0, "Unit": ""}
		],
		"StreamCRC": 0
	}`, string(data))
}
