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
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/emeter/emeter"
)

func TestMeterModel(t *testing.T) {
	m := newMeterModel(1)
	b := &emeter.Builder{Dialect: emeter.EnergyMeter2, DeclaredLength: DefaultLength}

	for i := 0; i < 100; i++ {
		m.step(time.Second)
		m.build(b)

		f, err := emeter.Decode(b.Bytes(), emeter.EnergyMeter2, DefaultLength)
		require.NoError(t, err)

		imp, err := f.Reading(emeter.Measurement, 1)
		require.NoError(t, err)
		exp, err := f.Reading(emeter.Measurement, 2)
		require.NoError(t, err)
		require.True(t, imp.Valid())
		require.True(t, exp.Valid())
		require.True(t, imp.Value == 0 || exp.Value == 0, "import and export at once")

		var phaseSum float64
		for _, idx := range []uint8{21, 41, 61} {
			pi, err := f.Reading(emeter.Measurement, idx)
			require.NoError(t, err)
			pe, err := f.Reading(emeter.Measurement, idx+1)
			require.NoError(t, err)
			phaseSum += pi.Value - pe.Value

			v, err := f.Reading(emeter.Measurement, idx+11)
			require.NoError(t, err)
			require.Equal(t, emeter.Volt, v.Unit)
			require.InDelta(t, nominalVoltage, v.Value, 20)
		}
		require.InDelta(t, imp.Value-exp.Value, phaseSum, 1)

		total, err := f.Reading(emeter.Counter, 1)
		require.NoError(t, err)
		require.Equal(t, float64(m.imported[0])/3600000.0, total.Value)

		version, ok, err := f.Version()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "2.0.18.R", version)
	}
}

func TestSimulateInvalidConfig(t *testing.T) {
	ctx := context.Background()

	cfg := Config{Dialect: "auto", Length: DefaultLength, Group: DefaultGroup, Port: DefaultPort}
	require.Error(t, Simulate(ctx, cfg), "zero interval")

	cfg.Interval = time.Second
	cfg.Group = "192.168.1.1"
	require.Error(t, Simulate(ctx, cfg), "unicast group")

	cfg.Group = DefaultGroup
	cfg.Dialect = "em3"
	require.Error(t, Simulate(ctx, cfg), "dialect")
}

func TestDump(t *testing.T) {
	b := &emeter.Builder{Dialect: emeter.EnergyMeter2, Group: 1, SerialPrefix: 349, SerialNumber: 1900123456, DeclaredLength: DefaultLength}
	b.Measurement(1, 12345).Counter(1, 3600000).Measurement(33, 1).Version(2, 0, 18, 'R')

	frame, err := decodeHex(strings.ToUpper(hex.EncodeToString(b.Bytes())))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	require.NoError(t, Dump(out, frame, Config{Dialect: "auto", Length: DefaultLength}))

	s := out.String()
	require.Contains(t, s, "Dialect:em2")
	require.Contains(t, s, "Serial:003491900123456")
	require.Contains(t, s, "1234.5 W")
	require.Contains(t, s, "active power import")
	require.Contains(t, s, "1 kWh")
	require.Contains(t, s, "unsupported")
	require.Contains(t, s, "2.0.18.R")
}

func TestDumpErrors(t *testing.T) {
	b := &emeter.Builder{DeclaredLength: DefaultLength}
	b.Measurement(1, 1).Record(0, 2, emeter.TagType(2), 0, []byte{0, 0, 0, 0})

	err := Dump(&bytes.Buffer{}, b.Bytes(), Config{Dialect: "legacy", Length: DefaultLength})
	require.True(t, errors.Is(err, emeter.ErrMalformedStream), "%+v", err)

	err = Dump(&bytes.Buffer{}, b.Bytes(), Config{Dialect: "legacy", Length: 600})
	require.True(t, errors.Is(err, emeter.ErrLengthMismatch), "%+v", err)

	err = Dump(&bytes.Buffer{}, b.Bytes(), Config{Dialect: "nope", Length: DefaultLength})
	require.Error(t, err)
}
