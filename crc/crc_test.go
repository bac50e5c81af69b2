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

package crc

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

const Trials = 512

func TestCheckValue(t *testing.T) {
	if sum := CCITT.Checksum([]byte("123456789")); sum != 0x29B1 {
		t.Fatalf("check value: got 0x%04X, want 0x29B1", sum)
	}
}

func TestChunked(t *testing.T) {
	data := []byte("SMA\x00\x00\x04\x02\xA0")
	whole := CCITT.Checksum(data)
	if chunked := CCITT.Checksum(data[:3], data[3:5], data[5:]); chunked != whole {
		t.Fatalf("chunked 0x%04X != whole 0x%04X", chunked, whole)
	}
}

func TestIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	crcs := []CRC{
		NewCRC("IBM", 0, 0x8005, 0),
		CCITT,
	}

	for _, crc := range crcs {
		t.Logf("%+v\n", crc)
		for trial := 0; trial < Trials; trial++ {
			length := rng.Intn(32)&0xFE + 8

			buf := make([]byte, length)
			rng.Read(buf[:length-2])

			intermediate := crc.Checksum(buf[:length-2])
			binary.BigEndian.PutUint16(buf[length-2:], intermediate)

			if check := crc.Checksum(buf); check != 0 {
				t.Fatalf("%s failed: %02X %04X %04X\n", crc.Name, buf, intermediate, check)
			}
		}
	}
}
