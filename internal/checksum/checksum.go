// Package checksum verifies archive files against their SHA-256 sidecars.
//
// A sidecar holds a single line of the form "<hex-digest>  <filename>".
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
)

const digestLen = sha256.Size * 2

// ParseSidecar extracts the hex digest from sidecar content.
func ParseSidecar(data []byte) (string, error) {
	line, _, _ := bytes.Cut(bytes.TrimSpace(data), []byte("\n"))
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty sidecar", errpkg.ErrChecksumFormat)
	}

	digest := strings.ToLower(fields[0])
	if len(digest) != digestLen {
		return "", fmt.Errorf("%w: digest has %d characters", errpkg.ErrChecksumFormat, len(digest))
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: digest is not hex", errpkg.ErrChecksumFormat)
	}
	return digest, nil
}

// FileDigest streams the file at path through SHA-256 and returns the lowercase hex digest.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return Digest(f)
}

// Digest hashes r to completion.
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the file at contentPath matches the digest in sidecar.
// A malformed sidecar yields an error wrapping errors.ErrChecksumFormat.
func Verify(contentPath string, sidecar []byte) (bool, error) {
	want, err := ParseSidecar(sidecar)
	if err != nil {
		return false, err
	}
	got, err := FileDigest(contentPath)
	if err != nil {
		return false, fmt.Errorf("hash %s: %w", contentPath, err)
	}
	return got == want, nil
}

// Sidecar renders sidecar content for digest and filename.
func Sidecar(digest, filename string) []byte {
	return []byte(digest + "  " + filename + "\n")
}
