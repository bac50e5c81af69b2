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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func stream(b *Builder) (View, int, int) {
	buf := b.Bytes()
	return View(buf), HeaderLength, len(buf) - HeaderLength
}

func TestScannerOrder(t *testing.T) {
	b := &Builder{}
	b.Measurement(1, 100).Counter(1, 200).Measurement(2, 300).Version(2, 0, 18, 'R')

	v, start, length := stream(b)
	s := NewScanner(v, start, length)

	var got []Query
	for s.Scan() {
		got = append(got, Query{s.Tag().Type, s.Tag().Index})
	}
	require.NoError(t, s.Err())
	require.Equal(t, []Query{
		{Measurement, 1},
		{Counter, 1},
		{Measurement, 2},
		{versionType, 0},
	}, got)
}

func TestFind(t *testing.T) {
	b := &Builder{}
	b.Measurement(1, 100).Counter(1, 200).Measurement(2, 300)
	v, start, length := stream(b)

	tag, ok, err := Find(v, start, length, Counter, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, View{0, 0, 0, 0, 0, 0, 0, 200}, tag.Value)

	tag, ok, err = Find(v, start, length, Measurement, 2)
	require.NoError(t, err)
	require.True(t, ok)
	raw, err := tag.Raw()
	require.NoError(t, err)
	require.Equal(t, uint64(300), raw)
}

func TestFindFirstMatch(t *testing.T) {
	b := &Builder{}
	b.Measurement(1, 111).Measurement(1, 222)
	v, start, length := stream(b)

	tag, ok, err := Find(v, start, length, Measurement, 1)
	require.NoError(t, err)
	require.True(t, ok)
	raw, _ := tag.Raw()
	require.Equal(t, uint64(111), raw)
}

func TestFindAbsent(t *testing.T) {
	b := &Builder{}
	b.Measurement(1, 100).Counter(9, 200)
	v, start, length := stream(b)

	_, ok, err := Find(v, start, length, Measurement, 9)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindUndefinedType(t *testing.T) {
	b := &Builder{}
	b.Measurement(1, 100)
	v, start, length := stream(b)

	_, ok, err := Find(v, start, length, TagType(2), 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindMalformed(t *testing.T) {
	b := &Builder{}
	b.Measurement(1, 100).Record(0, 5, TagType(2), 0, []byte{0, 0, 0, 1}).Measurement(9, 1)
	v, start, length := stream(b)

	_, ok, err := Find(v, start, length, Measurement, 9)
	require.False(t, ok)
	require.True(t, errors.Is(err, ErrMalformedStream), "%+v", err)

	// Records before the malformed one are still reachable.
	_, ok, err = Find(v, start, length, Measurement, 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFindTypeZeroOffVersionChannel(t *testing.T) {
	b := &Builder{}
	b.Record(1, 5, TagType(0), 0, []byte{0, 0, 0, 1}).Measurement(9, 1)
	v, start, length := stream(b)

	_, _, err := Find(v, start, length, Measurement, 9)
	require.True(t, errors.Is(err, ErrMalformedStream), "%+v", err)
}

func TestFindEndMarker(t *testing.T) {
	b := &Builder{DeclaredLength: 64}
	b.Measurement(1, 100)
	v, start, length := stream(b)
	require.Equal(t, 64, length)

	_, ok, err := Find(v, start, length, Measurement, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindTruncated(t *testing.T) {
	b := &Builder{}
	b.Measurement(1, 100).Counter(2, 200)
	buf := b.Bytes()
	buf = buf[:len(buf)-3]

	_, _, err := Find(View(buf), HeaderLength, 20, Counter, 2)
	require.True(t, errors.Is(err, ErrOutOfBounds), "%+v", err)
}

func TestScannerStopsAfterError(t *testing.T) {
	b := &Builder{}
	b.Record(0, 1, TagType(0xFF), 0xFF, nil)
	v, start, length := stream(b)

	s := NewScanner(v, start, length)
	require.False(t, s.Scan())
	require.False(t, s.Scan())
	require.True(t, errors.Is(s.Err(), ErrMalformedStream))
}
