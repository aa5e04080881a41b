package update

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	sha256 "github.com/minio/sha256-simd"
	log "github.com/sirupsen/logrus"
)

// FileChecksum streams path through SHA-256 and returns the lowercase hex digest.
func FileChecksum(path string) (string, error) {
	//nolint:gosec // G304: path is the package this process just downloaded
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the SHA-256 of path equals expectedHex, ignoring case.
// A missing or unreadable file and an empty expectation are both a mismatch.
func Verify(path, expectedHex string) bool {
	expected := strings.TrimSpace(expectedHex)
	if expected == "" {
		log.Warnf("no checksum published for %s", path)
		return false
	}

	actual, err := FileChecksum(path)
	if err != nil {
		log.Debugf("checksum of %s: %v", path, err)
		return false
	}

	if !strings.EqualFold(actual, expected) {
		log.WithFields(log.Fields{
			"expected": strings.ToLower(expected),
			"actual":   actual,
		}).Warn("checksum mismatch")
		return false
	}
	return true
}
