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

// Package crc implements table driven, MSB-first 16-bit cyclic redundancy
// checks. Messages use it to fingerprint tag streams for duplicate
// suppression.
package crc

import "fmt"

type CRC struct {
	Name    string
	Init    uint16
	Poly    uint16
	Residue uint16

	tbl Table
}

// CCITT is CRC-16/CCITT-FALSE.
var CCITT = NewCRC("CCITT", 0xFFFF, 0x1021, 0x1D0F)

func NewCRC(name string, init, poly, residue uint16) (crc CRC) {
	crc.Name = name
	crc.Init = init
	crc.Poly = poly
	crc.Residue = residue
	crc.tbl = NewTable(crc.Poly)

	return
}

func (crc CRC) String() string {
	return fmt.Sprintf("{Name:%s Init:0x%04X Poly:0x%04X Residue:0x%04X}", crc.Name, crc.Init, crc.Poly, crc.Residue)
}

// Checksum returns the crc of the concatenation of chunks.
func (crc CRC) Checksum(chunks ...[]byte) uint16 {
	sum := crc.Init
	for _, data := range chunks {
		sum = Update(sum, data, crc.tbl)
	}
	return sum
}

type Table [256]uint16

func NewTable(poly uint16) (table Table) {
	for tIdx := range table {
		crc := uint16(tIdx) << 8
		for bIdx := 0; bIdx < 8; bIdx++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc = crc << 1
			}
		}
		table[tIdx] = crc
	}
	return table
}

// Update continues a running checksum over data.
func Update(crc uint16, data []byte, table Table) uint16 {
	for _, v := range data {
		crc = crc<<8 ^ table[crc>>8^uint16(v)]
	}
	return crc
}
