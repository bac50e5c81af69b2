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
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/bemasher/emeter/capture"
	"github.com/bemasher/emeter/parse"

	_ "github.com/bemasher/emeter/sma"
)

// Large enough for any datagram the meters send.
const maxDatagramSize = 1500

type Receiver struct {
	cfg Config
	p   parse.Parser
	fc  parse.FilterChain
	enc Encoder

	capture *capture.Writer

	// Serials still awaited in single shot mode.
	pending StringSet
	seen    bool
}

func NewReceiver(cfg Config, enc Encoder) (*Receiver, error) {
	pc, err := cfg.ParserConfig()
	if err != nil {
		return nil, err
	}

	p, err := parse.NewParser(cfg.Dialect, pc)
	if err != nil {
		return nil, err
	}

	rcvr := &Receiver{cfg: cfg, p: p, enc: enc}

	if len(cfg.FilterID) > 0 {
		ids := NewStringSet(cfg.FilterID)
		rcvr.fc.Add(MeterIDFilter{ids})
		rcvr.pending = NewStringSet(cfg.FilterID)
	}
	if cfg.Unique {
		rcvr.fc.Add(NewUniqueFilter())
	}

	return rcvr, nil
}

// Handle decodes and reports one datagram. It returns true once single
// shot execution is satisfied. Undecodable datagrams are logged and
// skipped.
func (rcvr *Receiver) Handle(t time.Time, source string, buf []byte) (done bool, err error) {
	log := logrus.WithFields(logrus.Fields{"source": source, "bytes": len(buf)})

	msg, err := rcvr.p.Parse(buf)
	if err != nil {
		log.WithError(err).Warn("discarding datagram")
		return false, nil
	}

	if !rcvr.seen {
		rcvr.seen = true
		log.WithField("serial", msg.MeterID()).Info("first frame received")
	}

	if !rcvr.fc.Match(msg) {
		log.Debug("filtered")
		return false, nil
	}

	logMsg := parse.LogMessage{
		Time:    t,
		Source:  source,
		Length:  len(buf),
		Message: msg,
	}
	if err := rcvr.enc.Encode(logMsg); err != nil {
		return false, errors.Wrap(err, "encode message")
	}

	if !rcvr.cfg.Single {
		return false, nil
	}
	if len(rcvr.pending) == 0 {
		return true, nil
	}
	delete(rcvr.pending, msg.MeterID())
	return len(rcvr.pending) == 0, nil
}

// OpenCapture starts recording every received datagram to filename.
func (rcvr *Receiver) OpenCapture(filename string) (io.Closer, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrap(err, "create capture file")
	}

	rcvr.capture, err = capture.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	logrus.WithField("session", rcvr.capture.Session).Info("capturing to ", filename)

	return closerFunc(func() error {
		err := rcvr.capture.Close()
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}), nil
}

type closerFunc func() error

func (fn closerFunc) Close() error {
	return fn()
}

// Listen joins the multicast group and handles datagrams until ctx is done
// or single shot execution is satisfied.
func (rcvr *Receiver) Listen(ctx context.Context) error {
	group := net.ParseIP(rcvr.cfg.Group)
	if group == nil || !group.IsMulticast() {
		return errors.Errorf("invalid multicast group: %q", rcvr.cfg.Group)
	}

	var ifi *net.Interface
	if rcvr.cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(rcvr.cfg.Interface); err != nil {
			return errors.Wrapf(err, "interface %q", rcvr.cfg.Interface)
		}
	}

	c, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", rcvr.cfg.Port))
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	defer c.Close()

	p := ipv4.NewPacketConn(c)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		return errors.Wrapf(err, "join group %s", group)
	}
	defer p.LeaveGroup(ifi, &net.UDPAddr{IP: group})

	// Lets us drop unicast and other groups' traffic sharing the port.
	if err := p.SetControlMessage(ipv4.FlagDst, true); err != nil {
		logrus.WithError(err).Debug("destination control messages unavailable")
	}

	// Unblock ReadFrom when the context ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	logrus.Info("Running...")

	buf := make([]byte, maxDatagramSize)
	for {
		n, cm, src, err := p.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logrus.WithError(err).Warn("read timeout")
				continue
			}
			return errors.Wrap(err, "read")
		}

		if cm != nil && cm.Dst != nil && !cm.Dst.Equal(group) {
			continue
		}

		now := time.Now()
		if rcvr.capture != nil {
			rec := capture.Record{Time: now, Source: src.String(), Data: buf[:n]}
			if err := rcvr.capture.Write(rec); err != nil {
				return err
			}
		}

		done, err := rcvr.Handle(now, src.String(), buf[:n])
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Replay handles every datagram in a capture.
func (rcvr *Receiver) Replay(ctx context.Context, r *capture.Reader) error {
	logrus.WithFields(logrus.Fields{
		"session": r.Session,
		"created": r.Created.Format(parse.TimeFormat),
	}).Info("replaying capture")

	for ctx.Err() == nil {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		done, err := rcvr.Handle(rec.Time, rec.Source, rec.Data)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	return nil
}
