package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/bacalhau-project/sshkit/internal/testdata"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// GetTestViper returns a viper instance loaded from the sample sshkit config.
func GetTestViper() (*viper.Viper, error) {
	viper.Reset()
	testConfig := viper.New()
	configFile, cleanup, err := WriteStringToTempFileWithExtension(testdata.TestGenericConfig, ".yaml")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	testConfig.SetConfigType("yaml")
	testConfig.SetConfigFile(configFile)
	err = testConfig.ReadInConfig()
	if err != nil {
		return nil, err
	}
	return testConfig, nil
}

// CreateKeyPairBytes returns a fresh ed25519 key pair: the public key in
// authorized_keys format and the private key as an OpenSSH PEM block.
func CreateKeyPairBytes() (publicKey, privateKey []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, nil, err
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}
	return ssh.MarshalAuthorizedKey(sshPub), pem.EncodeToMemory(block), nil
}

func CreateSSHPublicPrivateKeyPairOnDisk() (string, func(), string, func()) {
	publicKey, privateKey, err := CreateKeyPairBytes()
	if err != nil {
		panic(err)
	}
	testSSHPublicKeyPath, cleanupPublicKey, err := WriteStringToTempFile(string(publicKey))
	if err != nil {
		panic(err)
	}
	testSSHPrivateKeyPath, cleanupPrivateKey, err := WriteStringToTempFile(string(privateKey))
	if err != nil {
		panic(err)
	}

	return testSSHPublicKeyPath, cleanupPublicKey, testSSHPrivateKeyPath, cleanupPrivateKey
}

func WriteStringToTempFileWithExtension(content string, extension string) (string, func(), error) {
	path, cleanup, err := WriteStringToTempFile(content)
	if err != nil {
		return "", nil, err
	}

	pathPlusExtension := path + extension
	err = os.Rename(path, pathPlusExtension)
	if err != nil {
		cleanup()
		return "", nil, err
	}

	return pathPlusExtension, func() { os.Remove(pathPlusExtension) }, nil
}

func WriteStringToTempFile(content string) (string, func(), error) {
	tempFile, err := os.CreateTemp("", "sshkit-*")
	if err != nil {
		return "", nil, err
	}

	if _, err := tempFile.WriteString(content); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return "", nil, err
	}

	tempFile.Close()

	cleanup := func() {
		os.Remove(tempFile.Name())
	}

	return tempFile.Name(), cleanup, nil
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// RandomBytes returns n random bytes.
func RandomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// FreePort returns a local TCP port nothing is listening on.
func FreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}
