package config

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed stretch.yaml
var embeddedDefault []byte

// DefaultYAML returns the annotated default config file embedded in
// the binary. It parses to the same values Default() returns.
func DefaultYAML() []byte {
	out := make([]byte, len(embeddedDefault))
	copy(out, embeddedDefault)
	return out
}

// DefaultChecksum returns the SHA256 checksum of the embedded default
// config, for support diagnostics.
func DefaultChecksum() string {
	hash := sha256.Sum256(embeddedDefault)
	return hex.EncodeToString(hash[:])
}

// WriteDefault writes the annotated default config to path, creating
// parent directories as needed. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot stat %q: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, embeddedDefault, 0o644); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	return nil
}
