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

// Package sma registers parsers for SMA Energy Meter telemetry frames.
package sma

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/bemasher/emeter/crc"
	"github.com/bemasher/emeter/emeter"
	"github.com/bemasher/emeter/parse"
)

func init() {
	parse.Register("legacy", NewParserFunc(emeter.Legacy))
	parse.Register("em2", NewParserFunc(emeter.EnergyMeter2))
	parse.Register("auto", NewAutoParser)
}

type Parser struct {
	cfg     parse.Config
	dialect emeter.Dialect
	detect  bool
}

// NewParserFunc returns a constructor for parsers of a fixed dialect.
func NewParserFunc(d emeter.Dialect) parse.NewParserFunc {
	return func(cfg parse.Config) parse.Parser {
		return &Parser{cfg: cfg, dialect: d}
	}
}

// NewAutoParser returns a parser that detects the dialect of every frame.
func NewAutoParser(cfg parse.Config) parse.Parser {
	return &Parser{cfg: cfg, detect: true}
}

func (p *Parser) Cfg() parse.Config {
	return p.cfg
}

func (p *Parser) Parse(buf []byte) (parse.Message, error) {
	d := p.dialect
	if p.detect {
		d = emeter.Detect(buf)
	}

	f, err := emeter.Decode(buf, d, p.cfg.ExpectedLength)
	if err != nil {
		return nil, err
	}

	readings, err := f.Readings(p.cfg.Queries...)
	if err != nil {
		return nil, err
	}

	return Telemetry{
		Dialect:   d,
		Serial:    f.Serial(),
		Ticker:    f.TickCounterMillis(),
		Readings:  readings,
		StreamCRC: crc.CCITT.Checksum(f.Stream()),
	}, nil
}

// Telemetry is the set of queried readings from one frame.
type Telemetry struct {
	Dialect   emeter.Dialect
	Serial    string
	Ticker    uint32
	Readings  []emeter.Reading
	StreamCRC uint16
}

func (t Telemetry) MsgType() string {
	return "EM"
}

func (t Telemetry) MeterID() string {
	return t.Serial
}

func (t Telemetry) Checksum() []byte {
	checksum := make([]byte, 2)
	binary.BigEndian.PutUint16(checksum, t.StreamCRC)
	return checksum
}

// Reading returns the reading for q, if it was queried.
func (t Telemetry) Reading(q emeter.Query) (emeter.Reading, bool) {
	for _, r := range t.Readings {
		if r.Query == q {
			return r, true
		}
	}
	return emeter.Reading{}, false
}

func (t Telemetry) String() string {
	var fields []string

	fields = append(fields, fmt.Sprintf("Dialect:%s", t.Dialect))
	fields = append(fields, fmt.Sprintf("Serial:%s", t.Serial))
	fields = append(fields, fmt.Sprintf("Ticker:%d", t.Ticker))
	for _, r := range t.Readings {
		fields = append(fields, r.String())
	}
	fields = append(fields, fmt.Sprintf("StreamCRC:0x%04X", t.StreamCRC))

	return "{" + strings.Join(fields, " ") + "}"
}

func (t Telemetry) Header() (h []string) {
	h = append(h, "dialect", "serial", "ticker")
	for _, r := range t.Readings {
		h = append(h, r.Query.String())
	}
	return h
}

// Record renders valid readings as plain numbers and all others by status,
// so an absent value is never mistaken for zero.
func (t Telemetry) Record() (r []string) {
	r = append(r, t.Dialect.String())
	r = append(r, t.Serial)
	r = append(r, strconv.FormatUint(uint64(t.Ticker), 10))
	for _, reading := range t.Readings {
		if reading.Valid() {
			r = append(r, strconv.FormatFloat(reading.Value, 'f', -1, 64))
		} else {
			r = append(r, reading.Status.String())
		}
	}
	return r
}
