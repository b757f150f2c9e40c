package testutils

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
//
// Reads return the scripted response data, at most ChunkSize bytes at a
// time, then io.EOF. Writes are recorded.
type ConnectionMock struct {
	mu        sync.Mutex
	readBuf   *bytes.Buffer
	writeBuf  *bytes.Buffer
	chunkSize int
	script    string
	repeat    bool
	deadline  time.Time
	closed    bool
}

// NewConnectionMock creates a new mock connection with pre-configured response data
func NewConnectionMock(responseData ...string) *ConnectionMock {
	readBuf := bytes.NewBufferString(strings.Join(responseData, ""))
	return &ConnectionMock{
		readBuf:  readBuf,
		writeBuf: &bytes.Buffer{},
		script:   readBuf.String(),
	}
}

// WithChunkSize limits every Read to n bytes, to exercise partial frames.
func (m *ConnectionMock) WithChunkSize(n int) *ConnectionMock {
	m.chunkSize = n
	return m
}

// Repeat replays the scripted responses forever and stops recording writes.
// Used by benchmarks.
func (m *ConnectionMock) Repeat() *ConnectionMock {
	m.repeat = true
	return m
}

// AddResponse appends data to the scripted responses.
func (m *ConnectionMock) AddResponse(data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.WriteString(data)
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	if m.chunkSize > 0 && len(b) > m.chunkSize {
		b = b[:m.chunkSize]
	}
	if m.repeat && m.readBuf.Len() == 0 {
		m.readBuf.WriteString(m.script)
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	if m.repeat {
		return len(b), nil
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Unread returns the number of scripted response bytes not read yet.
func (m *ConnectionMock) Unread() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readBuf.Len()
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6379}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadline = t
	return nil
}

func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return m.SetDeadline(t) }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return m.SetDeadline(t) }

// Deadline returns the last deadline set.
func (m *ConnectionMock) Deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

// GetWrittenRequest returns the raw request bytes written to the mock connection
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}
