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

// Package emeter decodes the multicast telemetry frames broadcast by SMA
// Energy Meters. A frame is a fixed header followed by a packed stream of
// OBIS records, each identifying one measured quantity by channel, index,
// type and tariff.
//
// Decoding never copies or mutates the caller's buffer and keeps no state
// between calls, so frames from any number of sources may be decoded
// concurrently.
package emeter

import "github.com/pkg/errors"

var (
	// ErrOutOfBounds is returned when a field lies beyond the end of the buffer.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrLengthMismatch is returned when a frame's declared length disagrees
	// with the configured length.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrMalformedStream is returned when a record's type does not determine
	// its width.
	ErrMalformedStream = errors.New("malformed tag stream")
)
