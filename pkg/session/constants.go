package session

import (
	"time"

	"github.com/bacalhau-project/sshkit/pkg/engine"
)

const (
	DefaultSSHPort        = 22
	DefaultConnectTimeout = 10 * time.Second

	// DefaultChunkSize is the payload of each native SFTP read or write.
	DefaultChunkSize = engine.MaxRequestPayload
)
