// Package framing splits an unstructured device byte stream into frames.
//
// Frames end at any configured delimiter byte; consecutive delimiters are
// kept with the frame they terminate, and delimiters that open the buffer are
// kept with the frame that follows them. No byte is ever discarded, so the
// concatenated frames equal the stream. Bytes without a terminator are held
// until more data arrives, the stream goes quiet for FlushAfter, the buffer
// reaches MaxFrameSize or the peer closes the connection. No frame is longer
// than MaxFrameSize.
package framing

import (
	"bytes"
	"errors"
	"io"
	"net"
	"time"
)

// ErrIdleTimeout is returned when no bytes arrive within Config.IdleTimeout.
var ErrIdleTimeout = errors.New("framing: connection idle")

const (
	DefaultMaxFrameSize = 4096
	DefaultFlushAfter   = 500 * time.Millisecond
	readChunkSize       = 4096
)

// DefaultDelimiters covers line based ASCII protocols and '#' terminated ones.
var DefaultDelimiters = []byte("\n\r#")

// Config controls frame boundaries.
type Config struct {
	Delimiters   []byte
	MaxFrameSize int
	FlushAfter   time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns framing defaults without an idle timeout.
func DefaultConfig() Config {
	return Config{
		Delimiters:   DefaultDelimiters,
		MaxFrameSize: DefaultMaxFrameSize,
		FlushAfter:   DefaultFlushAfter,
	}
}

func (c Config) normalized() Config {
	if len(c.Delimiters) == 0 {
		c.Delimiters = DefaultDelimiters
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	return c
}

// Conn is the subset of net.Conn the reader needs.
type Conn interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// Reader yields frames from a connection. It is not safe for concurrent use.
type Reader struct {
	src      Conn
	cfg      Config
	buf      []byte
	chunk    []byte
	lastData time.Time
	flush    bool
	err      error
}

// NewReader wraps src.
func NewReader(src Conn, cfg Config) *Reader {
	cfg = cfg.normalized()
	return &Reader{
		src:      src,
		cfg:      cfg,
		buf:      make([]byte, 0, cfg.MaxFrameSize),
		chunk:    make([]byte, readChunkSize),
		lastData: time.Now(),
	}
}

// Next blocks until a frame is available. The returned slice is owned by the
// caller. After the stream ends, pending bytes are returned first and the
// terminal error (io.EOF, ErrIdleTimeout or the read error) on the next call.
func (r *Reader) Next() ([]byte, error) {
	for {
		if frame, ok := r.cut(); ok {
			return frame, nil
		}
		if len(r.buf) >= r.cfg.MaxFrameSize || (r.flush && len(r.buf) > 0) {
			return r.drain(), nil
		}
		r.flush = false
		if r.err != nil {
			if len(r.buf) > 0 {
				return r.drain(), nil
			}
			return nil, r.err
		}
		r.fill()
	}
}

// Buffered reports how many bytes are held without a terminator.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

func (r *Reader) cut() ([]byte, bool) {
	limit := len(r.buf)
	if limit > r.cfg.MaxFrameSize {
		limit = r.cfg.MaxFrameSize
	}
	// terminators left over from the previous frame lead this one
	start := 0
	for start < limit && r.isDelimiter(r.buf[start]) {
		start++
	}
	i := bytes.IndexAny(r.buf[start:limit], string(r.cfg.Delimiters))
	if i < 0 {
		return nil, false
	}
	j := start + i + 1
	for j < limit && r.isDelimiter(r.buf[j]) {
		j++
	}
	frame := make([]byte, j)
	copy(frame, r.buf[:j])
	r.consume(j)
	return frame, true
}

// Blank reports whether frame holds nothing but delimiters.
func (c Config) Blank(frame []byte) bool {
	c = c.normalized()
	return len(bytes.Trim(frame, string(c.Delimiters))) == 0
}

func (r *Reader) drain() []byte {
	n := len(r.buf)
	if n > r.cfg.MaxFrameSize {
		n = r.cfg.MaxFrameSize
	}
	frame := make([]byte, n)
	copy(frame, r.buf[:n])
	r.consume(n)
	r.flush = false
	return frame
}

func (r *Reader) consume(n int) {
	r.buf = append(r.buf[:0], r.buf[n:]...)
}

func (r *Reader) isDelimiter(b byte) bool {
	return bytes.IndexByte(r.cfg.Delimiters, b) >= 0
}

func (r *Reader) fill() {
	_ = r.src.SetReadDeadline(r.deadline())
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		r.buf = append(r.buf, r.chunk[:n]...)
		r.lastData = time.Now()
	}
	if err == nil {
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		now := time.Now()
		if len(r.buf) > 0 && r.cfg.FlushAfter > 0 && !now.Before(r.lastData.Add(r.cfg.FlushAfter)) {
			r.flush = true
			return
		}
		if r.cfg.IdleTimeout > 0 && !now.Before(r.lastData.Add(r.cfg.IdleTimeout)) {
			r.err = ErrIdleTimeout
		}
		return
	}
	r.err = err
}

func (r *Reader) deadline() time.Time {
	var deadline time.Time
	if len(r.buf) > 0 && r.cfg.FlushAfter > 0 {
		deadline = r.lastData.Add(r.cfg.FlushAfter)
	}
	if r.cfg.IdleTimeout > 0 {
		idle := r.lastData.Add(r.cfg.IdleTimeout)
		if deadline.IsZero() || idle.Before(deadline) {
			deadline = idle
		}
	}
	return deadline
}
