// Package tlscert manages server TLS certificates, either loaded from files
// or generated as self-signed certs for local development.
package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
)

// CertMode selects where server certificates come from.
type CertMode string

const (
	CertModeFile       CertMode = "file"
	CertModeSelfSigned CertMode = "selfsigned"
)

// Config holds TLS certificate configuration.
type Config struct {
	Mode CertMode

	// File mode
	CertFile string
	KeyFile  string

	// Self-signed mode
	SelfSignedCertDir string
	SelfSignedHosts   []string // "localhost", "127.0.0.1", etc.
}

// Manager provides TLS certificate management.
type Manager interface {
	// GetTLSConfig returns a tls.Config ready for use with http.Server
	GetTLSConfig() (*tls.Config, error)

	// Description returns a human-readable description of the cert source
	Description() string

	// Shutdown performs cleanup (if needed)
	Shutdown() error
}

// NewManager creates a certificate manager based on configuration.
func NewManager(cfg Config, logger *slog.Logger) (Manager, error) {
	switch cfg.Mode {
	case CertModeFile:
		return newFileManager(cfg, logger)
	case CertModeSelfSigned:
		return newSelfSignedManager(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported TLS certificate mode: %s (valid modes: file, selfsigned)", cfg.Mode)
	}
}

// MinTLSVersion is the minimum supported TLS version for the server.
const MinTLSVersion = tls.VersionTLS13

func statRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}
