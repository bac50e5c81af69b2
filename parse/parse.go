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

package parse

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bemasher/emeter/csv"
	"github.com/bemasher/emeter/emeter"
)

const (
	TimeFormat = "2006-01-02T15:04:05.000"
)

var (
	parserMutex sync.Mutex
	parsers     = make(map[string]NewParserFunc)
)

// Config is shared by every parser.
type Config struct {
	ExpectedLength int
	Queries        []emeter.Query
}

type NewParserFunc func(cfg Config) Parser

func Register(name string, parserFn NewParserFunc) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	if parserFn == nil {
		panic("parser: new parser func is nil")
	}
	if _, dup := parsers[name]; dup {
		panic(fmt.Sprintf("parser: parser already registered (%s)", name))
	}
	parsers[name] = parserFn
}

func NewParser(name string, cfg Config) (Parser, error) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	if parserFn, exists := parsers[name]; exists {
		return parserFn(cfg), nil
	} else {
		return nil, fmt.Errorf("invalid dialect: %q", name)
	}
}

// Names returns the registered parser names in sorted order.
func Names() (names []string) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

type Parser interface {
	Parse(buf []byte) (Message, error)
	Cfg() Config
}

type Message interface {
	csv.Recorder
	MsgType() string
	MeterID() string
	Checksum() []byte
}

type LogMessage struct {
	Time   time.Time
	Source string
	Length int
	Message
}

func (msg LogMessage) String() string {
	return fmt.Sprintf("{Time:%s Source:%s Length:%d %s:%s}",
		msg.Time.Format(TimeFormat), msg.Source, msg.Length, msg.MsgType(), msg.Message,
	)
}

func (msg LogMessage) StringNoSource() string {
	return fmt.Sprintf("{Time:%s %s:%s}", msg.Time.Format(TimeFormat), msg.MsgType(), msg.Message)
}

func (msg LogMessage) Record() (r []string) {
	r = append(r, msg.Time.Format(time.RFC3339Nano))
	r = append(r, msg.Source)
	r = append(r, strconv.FormatInt(int64(msg.Length), 10))
	r = append(r, msg.Message.Record()...)
	return r
}

// Header names the fields of Record. It is empty if the underlying
// message cannot name its own fields.
func (msg LogMessage) Header() (h []string) {
	inner, ok := msg.Message.(csv.Headerer)
	if !ok {
		return nil
	}
	h = append(h, "time", "source", "length")
	h = append(h, inner.Header()...)
	return h
}

type FilterChain []MessageFilter

func (fc *FilterChain) Add(filter MessageFilter) {
	*fc = append(*fc, filter)
}

func (fc FilterChain) Match(msg Message) bool {
	if len(fc) == 0 {
		return true
	}

	for _, filter := range fc {
		if !filter.Filter(msg) {
			return false
		}
	}

	return true
}

type MessageFilter interface {
	Filter(Message) bool
}
