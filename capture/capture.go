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

// Package capture records raw datagrams to an lz4 compressed file so they
// can be replayed through the decoder later.
//
// A capture is an lz4 frame holding a header followed by records:
//
//	header: magic[8] session[16] created[8]
//	record: time[8] sourceLength[1] source[sourceLength] dataLength[2] data[dataLength]
//
// Times are Unix nanoseconds. All integers are big-endian.
package capture

import (
	"bufio"
	"encoding/binary"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

var magic = [8]byte{'E', 'M', 'C', 'A', 'P', 0, 0, 1}

const maxSourceLength = 255

var ErrBadMagic = errors.New("capture: bad magic")

// Header identifies a capture session.
type Header struct {
	Session uuid.UUID
	Created time.Time
}

// Record is one received datagram.
type Record struct {
	Time   time.Time
	Source string
	Data   []byte
}

type Writer struct {
	Header

	zw  *lz4.Writer
	buf []byte
}

// NewWriter starts a new capture session on w.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := &Writer{
		Header: Header{Session: uuid.New(), Created: time.Now()},
		zw:     lz4.NewWriter(w),
	}

	hdr := make([]byte, 0, 32)
	hdr = append(hdr, magic[:]...)
	hdr = append(hdr, cw.Session[:]...)
	hdr = appendTime(hdr, cw.Created)

	if _, err := cw.zw.Write(hdr); err != nil {
		return nil, errors.Wrap(err, "capture: write header")
	}

	return cw, nil
}

func appendTime(b []byte, t time.Time) []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(t.UnixNano()))
	return append(b, ts[:]...)
}

func (w *Writer) Write(rec Record) error {
	if len(rec.Source) > maxSourceLength {
		rec.Source = rec.Source[:maxSourceLength]
	}
	if len(rec.Data) > 0xFFFF {
		return errors.Errorf("capture: datagram too long: %d bytes", len(rec.Data))
	}

	w.buf = appendTime(w.buf[:0], rec.Time)
	w.buf = append(w.buf, byte(len(rec.Source)))
	w.buf = append(w.buf, rec.Source...)
	w.buf = append(w.buf, byte(len(rec.Data)>>8), byte(len(rec.Data)))
	w.buf = append(w.buf, rec.Data...)

	_, err := w.zw.Write(w.buf)
	return errors.Wrap(err, "capture: write record")
}

// Flush compresses and writes any buffered records.
func (w *Writer) Flush() error {
	return errors.Wrap(w.zw.Flush(), "capture: flush")
}

// Close ends the lz4 frame. It does not close the underlying writer.
func (w *Writer) Close() error {
	return errors.Wrap(w.zw.Close(), "capture: close")
}

type Reader struct {
	Header

	r *bufio.Reader
}

// NewReader reads the capture header from r.
func NewReader(r io.Reader) (*Reader, error) {
	cr := &Reader{r: bufio.NewReader(lz4.NewReader(r))}

	var hdr [32]byte
	if _, err := io.ReadFull(cr.r, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "capture: read header")
	}
	if [8]byte(hdr[:8]) != magic {
		return nil, ErrBadMagic
	}

	session, err := uuid.FromBytes(hdr[8:24])
	if err != nil {
		return nil, errors.Wrap(err, "capture: session")
	}
	cr.Session = session
	cr.Created = time.Unix(0, int64(binary.BigEndian.Uint64(hdr[24:32])))

	return cr, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (rec Record, err error) {
	var ts [9]byte
	if _, err = io.ReadFull(r.r, ts[:]); err != nil {
		if err == io.EOF {
			return rec, io.EOF
		}
		return rec, errors.Wrap(err, "capture: read record")
	}
	rec.Time = time.Unix(0, int64(binary.BigEndian.Uint64(ts[:8])))

	source := make([]byte, ts[8])
	if _, err = io.ReadFull(r.r, source); err != nil {
		return rec, errors.Wrap(err, "capture: read source")
	}
	rec.Source = string(source)

	var length [2]byte
	if _, err = io.ReadFull(r.r, length[:]); err != nil {
		return rec, errors.Wrap(err, "capture: read length")
	}

	rec.Data = make([]byte, binary.BigEndian.Uint16(length[:]))
	if _, err = io.ReadFull(r.r, rec.Data); err != nil {
		return rec, errors.Wrap(err, "capture: read data")
	}

	return rec, nil
}
