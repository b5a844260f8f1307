package framing

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe(t *testing.T) (device net.Conn, server net.Conn) {
	t.Helper()
	device, server = net.Pipe()
	t.Cleanup(func() {
		device.Close()
		server.Close()
	})
	return device, server
}

func writeAsync(conn net.Conn, chunks ...string) {
	go func() {
		for _, chunk := range chunks {
			if _, err := conn.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}()
}

func TestReaderSplitsFramesFromSingleRead(t *testing.T) {
	device, server := pipe(t)
	writeAsync(device, "imei:1,a\nimei:2,b\n")

	r := NewReader(server, DefaultConfig())

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "imei:1,a\n", string(first))

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "imei:2,b\n", string(second))
}

func TestReaderReassemblesPartialFrames(t *testing.T) {
	device, server := pipe(t)
	writeAsync(device, "imei:35971004", "8216253,tracker\r\n")

	cfg := DefaultConfig()
	cfg.FlushAfter = time.Second
	r := NewReader(server, cfg)

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "imei:359710048216253,tracker\r\n", string(frame))
	assert.Zero(t, r.Buffered())
}

func TestReaderFlushesUnterminatedFrameWhenQuiet(t *testing.T) {
	device, server := pipe(t)
	writeAsync(device, "imei:359710048216253,tracker,17.824858,S,31.053028,E")

	cfg := DefaultConfig()
	cfg.FlushAfter = 30 * time.Millisecond
	r := NewReader(server, cfg)

	start := time.Now()
	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "imei:359710048216253,tracker,17.824858,S,31.053028,E", string(frame))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestReaderReturnsPendingBytesBeforeEOF(t *testing.T) {
	device, server := pipe(t)
	go func() {
		_, _ = device.Write([]byte("tail"))
		device.Close()
	}()

	cfg := DefaultConfig()
	cfg.FlushAfter = 0
	r := NewReader(server, cfg)

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(frame))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderCapsFrameSize(t *testing.T) {
	device, server := pipe(t)
	writeAsync(device, "0123456789")

	cfg := DefaultConfig()
	cfg.MaxFrameSize = 4
	cfg.FlushAfter = time.Second
	r := NewReader(server, cfg)

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "0123", string(frame))
}

func TestReaderKeepsLeadingTerminators(t *testing.T) {
	device, server := pipe(t)
	writeAsync(device, "\r\n\nabc#")

	r := NewReader(server, DefaultConfig())
	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "\r\n\nabc#", string(frame))
}

func readAll(t *testing.T, r *Reader) string {
	t.Helper()
	var out []byte
	for {
		frame, err := r.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			return string(out)
		}
		assert.LessOrEqual(t, len(frame), r.cfg.MaxFrameSize)
		out = append(out, frame...)
	}
}

func TestReaderFramesConcatenateToStream(t *testing.T) {
	cases := []struct {
		name   string
		chunks []string
	}{
		{"hash prefixed frame", []string{"#L#2.0;359710048216253;NA;1234\r\n"}},
		{"crlf split across reads", []string{"imei:1,A,1.0,N,1.0,E\r", "\nimei:2,A,2.0,N,2.0,E\r\n"}},
		{"terminators only", []string{"\r\n", "\n#"}},
		{"unterminated tail", []string{"a\nb#c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			device, server := pipe(t)
			go func() {
				for _, chunk := range tc.chunks {
					if _, err := device.Write([]byte(chunk)); err != nil {
						return
					}
				}
				device.Close()
			}()

			cfg := DefaultConfig()
			cfg.FlushAfter = 0
			var want string
			for _, chunk := range tc.chunks {
				want += chunk
			}
			assert.Equal(t, want, readAll(t, NewReader(server, cfg)))
		})
	}
}

func TestReaderCapsFrameSizeWhenDelimiterIsPastLimit(t *testing.T) {
	device, server := pipe(t)
	go func() {
		_, _ = device.Write([]byte("0123456789\n\n\n"))
		device.Close()
	}()

	cfg := DefaultConfig()
	cfg.MaxFrameSize = 4
	cfg.FlushAfter = time.Second
	r := NewReader(server, cfg)

	var frames []string
	for {
		frame, err := r.Next()
		if err != nil {
			break
		}
		frames = append(frames, string(frame))
	}
	assert.Equal(t, []string{"0123", "4567", "89\n\n", "\n"}, frames)
}

func TestConfigBlank(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Blank([]byte("\r\n#")))
	assert.True(t, cfg.Blank(nil))
	assert.False(t, cfg.Blank([]byte("\nimei:1\r\n")))
}

func TestReaderIdleTimeout(t *testing.T) {
	_, server := pipe(t)

	cfg := DefaultConfig()
	cfg.IdleTimeout = 20 * time.Millisecond
	r := NewReader(server, cfg)

	_, err := r.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdleTimeout))
}
