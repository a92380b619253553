// SPDX-License-Identifier: MIT

// Package httprange resolves HTTP Range headers into concrete byte regions.
//
// A resolved region is capped at the configured chunk size so a single
// response never carries more than one chunk; clients fetch large media with
// follow-up range requests. Multi-range requests are not supported: only the
// first range of the set is honored.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRange indicates a syntactically malformed Range header.
	ErrInvalidRange = errors.New("invalid range specification")

	// ErrUnsatisfiable indicates a well-formed range that lies outside the
	// resource, e.g. a start offset at or beyond the content length.
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// Region is the request-scoped byte window to serve.
type Region struct {
	Offset int64
	Length int64
}

// End returns the inclusive last byte offset of the region.
func (r Region) End() int64 {
	return r.Offset + r.Length - 1
}

// ContentRange renders the Content-Range header value for a resource of the
// given total length.
func (r Region) ContentRange(contentLength int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Offset, r.End(), contentLength)
}

// Resolve computes the byte region to serve for a resource of contentLength
// bytes given the raw Range header value (empty when the client sent none).
// The returned region length never exceeds chunkSize.
func Resolve(contentLength, chunkSize int64, rangeHeader string) (Region, error) {
	if chunkSize <= 0 {
		return Region{}, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	if rangeHeader == "" {
		return Region{Offset: 0, Length: min(chunkSize, contentLength)}, nil
	}

	start, end, err := parseFirstRange(rangeHeader, contentLength)
	if err != nil {
		return Region{}, err
	}

	if start >= contentLength || start > end {
		return Region{}, fmt.Errorf("%w: %d-%d of %d", ErrUnsatisfiable, start, end, contentLength)
	}
	if end >= contentLength {
		end = contentLength - 1
	}

	return Region{Offset: start, Length: min(chunkSize, end-start+1)}, nil
}

// parseFirstRange extracts the first range of a "bytes=" set. A suffix range
// ("-N") resolves to the final N bytes of the resource.
func parseFirstRange(header string, contentLength int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	spec := strings.TrimPrefix(header, prefix)
	// Only the first range of a multi-range set is honored.
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}
	spec = strings.TrimSpace(spec)

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	startPart := spec[:dash]
	endPart := spec[dash+1:]

	if startPart == "" {
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
		}
		start = contentLength - n
		if start < 0 {
			start = 0
		}
		return start, contentLength - 1, nil
	}

	start, err = strconv.ParseInt(startPart, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	if endPart == "" {
		// Open-ended range: through the last byte.
		return start, contentLength - 1, nil
	}

	end, err = strconv.ParseInt(endPart, 10, 64)
	if err != nil || end < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	return start, end, nil
}
