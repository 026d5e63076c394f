package engine

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockEngine is a testify mock of Engine.
type MockEngine struct {
	mock.Mock
}

var _ Engine = (*MockEngine)(nil)

func (m *MockEngine) SetLogVerbosity(v Verbosity) {
	m.Called(v)
}

func (m *MockEngine) SetLogCallback(cb LogCallback) {
	m.Called(cb)
}

func (m *MockEngine) Dial(
	ctx context.Context,
	host string,
	port int,
	timeout time.Duration,
) (net.Conn, error) {
	args := m.Called(ctx, host, port, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(net.Conn), args.Error(1)
}

func (m *MockEngine) Handshake(ctx context.Context, conn net.Conn, creds Credentials) (Transport, error) {
	args := m.Called(ctx, conn, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Transport), args.Error(1)
}

// MockTransport is a testify mock of Transport.
type MockTransport struct {
	mock.Mock
}

var _ Transport = (*MockTransport)(nil)

func (m *MockTransport) OpenSFTP() (SFTP, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(SFTP), args.Error(1)
}

func (m *MockTransport) Exec(cmd string) (*ExecResult, error) {
	args := m.Called(cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ExecResult), args.Error(1)
}

func (m *MockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSFTP is a testify mock of SFTP.
type MockSFTP struct {
	mock.Mock
}

var _ SFTP = (*MockSFTP)(nil)

func (m *MockSFTP) OpenFile(path string, flags int) (File, error) {
	args := m.Called(path, flags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(File), args.Error(1)
}

func (m *MockSFTP) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MemFile is an in-memory File that records every native call.
type MemFile struct {
	mu  sync.Mutex
	buf bytes.Buffer

	// MaxWrite caps how many bytes a single Write accepts; 0 means no cap.
	MaxWrite int
	// FailWriteAfter makes Write fail once this many bytes were accepted; 0 disables.
	FailWriteAfter int
	// WriteErr is returned when FailWriteAfter trips.
	WriteErr error

	ReadCalls  int
	WriteCalls int
	ReadSizes  []int
	WriteSizes []int
	Closed     bool
}

var _ File = (*MemFile)(nil)

func NewMemFile(content []byte) *MemFile {
	f := &MemFile{}
	f.buf.Write(content)
	return f
}

func (f *MemFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadCalls++
	f.ReadSizes = append(f.ReadSizes, len(p))
	n, err := f.buf.Read(p)
	if err == io.EOF && n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *MemFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WriteCalls++
	f.WriteSizes = append(f.WriteSizes, len(p))
	if f.FailWriteAfter > 0 && f.buf.Len() >= f.FailWriteAfter {
		return 0, f.WriteErr
	}
	if f.MaxWrite > 0 && len(p) > f.MaxWrite {
		p = p[:f.MaxWrite]
	}
	return f.buf.Write(p)
}

func (f *MemFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Contents returns a copy of what has been written and not yet read.
func (f *MemFile) Contents() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.buf.Bytes()...)
}
