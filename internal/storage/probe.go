// SPDX-License-Identifier: MIT

package storage

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultContentType is returned when no better guess is available.
const DefaultContentType = "application/octet-stream"

// ProbeContentType returns a best-guess media type for the file at path.
// Extension mapping wins; otherwise the first 512 bytes are sniffed.
func ProbeContentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}

	f, err := os.Open(path) // #nosec G304 -- callers resolve paths through the repository or confinement helpers
	if err != nil {
		return DefaultContentType
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return DefaultContentType
	}
	return http.DetectContentType(buf[:n])
}
