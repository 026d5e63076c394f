package engine

import (
	"errors"
	"io"

	"github.com/pkg/sftp"
)

type nativeSFTP struct {
	engine *NativeEngine
	client *sftp.Client
}

func (s *nativeSFTP) OpenFile(path string, flags int) (File, error) {
	s.engine.logf(VerbosityDebug, "sftp_open", "Opening file %s with flags %#x", path, flags)
	f, err := s.client.OpenFile(path, flags)
	if err != nil {
		return nil, newError(CodeSFTP, err, "Error opening remote file %s: %v", path, err)
	}
	return &nativeFile{engine: s.engine, file: f, path: path}, nil
}

func (s *nativeSFTP) Close() error {
	s.engine.logf(VerbosityDebug, "sftp_free", "Closing sftp subsystem")
	if err := s.client.Close(); err != nil {
		return newError(CodeChannel, err, "Error closing sftp subsystem: %v", err)
	}
	return nil
}

type nativeFile struct {
	engine *NativeEngine
	file   *sftp.File
	path   string
}

// Read issues one SFTP read request; len(p) must not exceed MaxRequestPayload.
func (f *nativeFile) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	f.engine.logf(VerbosityTrace, "sftp_read", "Read %d of %d bytes from %s", n, len(p), f.path)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, newError(CodeSFTP, err, "Error reading remote file %s: %v", f.path, err)
	}
	return n, err
}

// Write issues one SFTP write request; len(p) must not exceed MaxRequestPayload.
func (f *nativeFile) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	f.engine.logf(VerbosityTrace, "sftp_write", "Wrote %d of %d bytes to %s", n, len(p), f.path)
	if err != nil {
		return n, newError(CodeSFTP, err, "Error writing to remote file %s: %v", f.path, err)
	}
	return n, nil
}

func (f *nativeFile) Close() error {
	if err := f.file.Close(); err != nil {
		return newError(CodeSFTP, err, "Error closing remote file %s: %v", f.path, err)
	}
	return nil
}
