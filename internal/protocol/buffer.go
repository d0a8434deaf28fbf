package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// Reader consumes the little-endian primitives of the launcher wire
// format. All methods return ErrMalformed-joined errors on a short or
// otherwise invalid buffer so callers can collapse any structural
// problem into a single retryable failure class.
type Reader struct {
	buf *bytes.Reader
}

func NewReader(data []byte) *Reader {
	return &Reader{buf: bytes.NewReader(data)}
}

// Remaining reports how many unconsumed bytes are left.
func (r *Reader) Remaining() int {
	return r.buf.Len()
}

func (r *Reader) Byte() (byte, error) {
	value, err := r.buf.ReadByte()
	if err != nil {
		return 0, errors.Join(err, ErrMalformed)
	}

	return value, nil
}

func (r *Reader) Short() (uint16, error) {
	var value uint16
	if err := binary.Read(r.buf, binary.LittleEndian, &value); err != nil {
		return 0, errors.Join(err, ErrMalformed)
	}

	return value, nil
}

func (r *Reader) Long() (uint32, error) {
	var value uint32
	if err := binary.Read(r.buf, binary.LittleEndian, &value); err != nil {
		return 0, errors.Join(err, ErrMalformed)
	}

	return value, nil
}

func (r *Reader) Float() (float32, error) {
	bits, err := r.Long()
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(bits), nil
}

// String reads a null-terminated string. The terminator is consumed and
// not part of the result. A buffer that ends before the terminator is
// malformed.
func (r *Reader) String() (string, error) {
	var out []byte
	for {
		char, err := r.buf.ReadByte()
		if err != nil {
			return "", errors.Join(err, ErrMalformed)
		}
		if char == 0 {
			return string(out), nil
		}
		out = append(out, char)
	}
}

// Bytes reads exactly n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || n > r.buf.Len() {
		return nil, ErrMalformed
	}

	out := make([]byte, n)
	if _, err := r.buf.Read(out); err != nil {
		return nil, errors.Join(err, ErrMalformed)
	}

	return out, nil
}

// Writer builds request payloads. Writes never fail, the result is read
// back with Bytes().
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Byte(value byte) *Writer {
	w.buf.WriteByte(value)

	return w
}

func (w *Writer) Short(value uint16) *Writer {
	_ = binary.Write(&w.buf, binary.LittleEndian, value)

	return w
}

func (w *Writer) Long(value uint32) *Writer {
	_ = binary.Write(&w.buf, binary.LittleEndian, value)

	return w
}

func (w *Writer) Raw(value []byte) *Writer {
	w.buf.Write(value)

	return w
}

func (w *Writer) String(value string) *Writer {
	w.buf.WriteString(value)
	w.buf.WriteByte(0)

	return w
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
