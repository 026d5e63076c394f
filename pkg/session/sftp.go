package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bacalhau-project/sshkit/pkg/engine"
)

const localFilePermissions = 0o644

// TransferStats counts native SFTP calls made by a channel.
type TransferStats struct {
	ReadCalls    int
	WriteCalls   int
	BytesRead    int64
	BytesWritten int64
}

// SFTP is a file transfer channel on a Session. It does not own the Session;
// the Session must outlive it.
type SFTP struct {
	session   *Session
	native    engine.SFTP
	chunkSize int

	mu     sync.Mutex
	closed bool
	stats  TransferStats
}

// ChunkSize is the largest payload passed to a single native read or write.
func (c *SFTP) ChunkSize() int {
	return c.chunkSize
}

// Stats returns cumulative counters for this channel.
func (c *SFTP) Stats() TransferStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *SFTP) usable() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return newError(KindChannel, "sftp channel is closed", nil)
	}
	if !c.session.IsConnected() {
		return newError(KindSession, "ssh session is not authenticated", nil)
	}
	return nil
}

// Put copies localPath to remotePath, replacing any existing remote file. A
// failed Put may leave a partial remote file behind.
func (c *SFTP) Put(localPath, remotePath string) (err error) {
	if err := c.usable(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return ioError(err)
	}
	defer src.Close()

	dst, err := c.native.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fromEngine(err, KindChannel)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fromEngine(closeErr, KindChannel)
		}
	}()

	buf := make([]byte, c.chunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if err := c.writeChunk(dst, buf[:n]); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return ioError(readErr)
		}
	}

	c.session.debugf("Uploaded %s to %s:%s", localPath, c.session.Host(), remotePath)
	return nil
}

// writeChunk issues native writes until chunk is fully written.
func (c *SFTP) writeChunk(dst engine.File, chunk []byte) error {
	for len(chunk) > 0 {
		n, err := dst.Write(chunk)

		c.mu.Lock()
		c.stats.WriteCalls++
		c.stats.BytesWritten += int64(n)
		c.mu.Unlock()

		if err != nil {
			return fromEngine(err, KindChannel)
		}
		if n <= 0 {
			return newError(KindChannel, "sftp write made no progress", io.ErrShortWrite)
		}
		chunk = chunk[n:]
	}
	return nil
}

// Get copies remotePath to localPath, creating or truncating localPath.
func (c *SFTP) Get(remotePath, localPath string) (err error) {
	if err := c.usable(); err != nil {
		return err
	}

	src, err := c.native.OpenFile(remotePath, os.O_RDONLY)
	if err != nil {
		return fromEngine(err, KindChannel)
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, localFilePermissions)
	if err != nil {
		return ioError(err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = ioError(closeErr)
		}
	}()

	buf := make([]byte, c.chunkSize)
	for {
		n, readErr := src.Read(buf)

		c.mu.Lock()
		c.stats.ReadCalls++
		c.stats.BytesRead += int64(n)
		c.mu.Unlock()

		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return ioError(err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return fromEngine(readErr, KindChannel)
		}
	}

	c.session.debugf("Downloaded %s:%s to %s", c.session.Host(), remotePath, localPath)
	return nil
}

// Close releases the channel. It is a no-op when the channel or its Session is
// already closed.
func (c *SFTP) Close() error {
	if !c.session.forget(c) {
		c.markClosed()
		return nil
	}
	return c.release()
}

func (c *SFTP) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	return true
}

// release closes the native channel once.
func (c *SFTP) release() error {
	if !c.markClosed() {
		return nil
	}
	if err := c.native.Close(); err != nil {
		return fromEngine(err, KindChannel)
	}
	return nil
}

func (s TransferStats) String() string {
	return fmt.Sprintf("%d reads (%d bytes), %d writes (%d bytes)",
		s.ReadCalls, s.BytesRead, s.WriteCalls, s.BytesWritten)
}

