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
	"context"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/bemasher/emeter/emeter"
)

const (
	nominalVoltage = 230.0 // V
	phases         = 3
)

// meterModel is a three phase meter whose load wanders randomly between
// drawing from and feeding into the grid.
type meterModel struct {
	rng *rand.Rand

	power    [phases]float64 // W, negative when exporting
	voltage  [phases]float64 // V
	imported [phases + 1]uint64
	exported [phases + 1]uint64 // Ws, index 0 is the total
}

func newMeterModel(seed int64) *meterModel {
	m := &meterModel{rng: rand.New(rand.NewSource(seed))}
	for i := range m.power {
		m.power[i] = 200 + m.rng.Float64()*400
		m.voltage[i] = nominalVoltage
	}
	return m
}

// step advances the model by dt, integrating energy.
func (m *meterModel) step(dt time.Duration) {
	for i := range m.power {
		m.power[i] += m.rng.NormFloat64() * 50
		m.power[i] = math.Max(-3000, math.Min(3000, m.power[i]))
		m.voltage[i] = nominalVoltage + m.rng.NormFloat64()*2

		ws := uint64(math.Abs(m.power[i]) * dt.Seconds())
		if m.power[i] >= 0 {
			m.imported[i+1] += ws
			m.imported[0] += ws
		} else {
			m.exported[i+1] += ws
			m.exported[0] += ws
		}
	}
}

func split(w float64) (imp, exp float64) {
	if w >= 0 {
		return w, 0
	}
	return 0, -w
}

// build writes the model's current state to b.
func (m *meterModel) build(b *emeter.Builder) {
	b.Reset()

	var total float64
	for _, w := range m.power {
		total += w
	}
	imp, exp := split(total)

	b.Measurement(1, uint32(imp*10))
	b.Counter(1, m.imported[0])
	b.Measurement(2, uint32(exp*10))
	b.Counter(2, m.exported[0])
	b.Measurement(13, 980)

	for i, w := range m.power {
		base := uint8(20 * (i + 1))
		imp, exp := split(w)

		b.Measurement(base+1, uint32(imp*10))
		b.Counter(base+1, m.imported[i+1])
		b.Measurement(base+2, uint32(exp*10))
		b.Counter(base+2, m.exported[i+1])
		b.Measurement(base+11, uint32(math.Abs(w)/m.voltage[i]*1000))
		b.Measurement(base+12, uint32(m.voltage[i]*1000))
	}

	b.Version(2, 0, 18, 'R')
}

// Simulate multicasts a synthetic frame every interval until ctx is done.
func Simulate(ctx context.Context, cfg Config) error {
	d := emeter.EnergyMeter2
	if !strings.EqualFold(cfg.Dialect, "auto") {
		var err error
		if d, err = emeter.ParseDialect(cfg.Dialect); err != nil {
			return err
		}
	}

	if cfg.Interval <= 0 {
		return errors.Errorf("invalid interval: %s", cfg.Interval)
	}

	group := net.ParseIP(cfg.Group)
	if group == nil || !group.IsMulticast() {
		return errors.Errorf("invalid multicast group: %q", cfg.Group)
	}
	dst := &net.UDPAddr{IP: group, Port: cfg.Port}

	c, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	defer c.Close()

	p := ipv4.NewPacketConn(c)
	if cfg.Interface != "" {
		ifi, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return errors.Wrapf(err, "interface %q", cfg.Interface)
		}
		if err := p.SetMulticastInterface(ifi); err != nil {
			return errors.Wrap(err, "set multicast interface")
		}
	}
	if err := p.SetMulticastTTL(1); err != nil {
		return errors.Wrap(err, "set multicast ttl")
	}
	if err := p.SetMulticastLoopback(true); err != nil {
		return errors.Wrap(err, "set multicast loopback")
	}

	b := &emeter.Builder{
		Dialect:        d,
		Group:          1,
		SerialPrefix:   349,
		SerialNumber:   cfg.Serial,
		DeclaredLength: cfg.Length,
	}
	m := newMeterModel(time.Now().UnixNano())

	log := logrus.WithFields(logrus.Fields{
		"dialect": d,
		"group":   dst.String(),
		"serial":  fmt.Sprintf("%05d%010d", b.SerialPrefix, b.SerialNumber),
	})
	log.Info("simulating meter")

	start := time.Now()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.step(cfg.Interval)
			m.build(b)
			b.Ticker = uint32(now.Sub(start).Microseconds()) // wraps like the meter's counter

			frame := b.Bytes()
			if _, err := p.WriteTo(frame, nil, dst); err != nil {
				return errors.Wrap(err, "send")
			}
			log.WithField("bytes", len(frame)).Debug("sent frame")
		}
	}
}
