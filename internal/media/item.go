// SPDX-License-Identifier: MIT

// Package media defines the media item model and its SQLite-backed store.
package media

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no item exists for the requested ID.
var ErrNotFound = errors.New("media item not found")

// Status describes where an item sits in the transcode pipeline. It is
// persisted so the API can distinguish "still processing" from "unknown".
type Status string

const (
	StatusUploaded    Status = "uploaded"
	StatusTranscoding Status = "transcoding"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

// Item is a stored media record. FilePath and ThumbnailPath are filenames
// relative to the upload root, never absolute paths.
type Item struct {
	ID            string
	Title         string
	Description   string
	ContentType   string
	FilePath      string
	ThumbnailPath string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
