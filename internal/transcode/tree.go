// SPDX-License-Identifier: MIT

package transcode

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"
)

// PlaylistName is the single playlist file every segment tree carries.
const PlaylistName = "master.m3u8"

// segmentNamePattern matches the encoder's segment naming convention. Names
// are validated against it before any filesystem access, so request input can
// never address a path outside a segment tree.
var segmentNamePattern = regexp.MustCompile(`^segment_[0-9]{1,5}\.ts$`)

// ValidSegmentName reports whether name is a well-formed segment filename.
func ValidSegmentName(name string) bool {
	return segmentNamePattern.MatchString(name)
}

// Tree lays out per-item segment directories under a single HLS root:
// root/<id>/master.m3u8 plus root/<id>/segment_NNN.ts files.
type Tree struct {
	Root string
}

// NewTree creates the HLS root if absent.
func NewTree(root string) (Tree, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Tree{}, fmt.Errorf("%w: create hls root %s: %v", ErrStorage, root, err)
	}
	return Tree{Root: root}, nil
}

// ItemDir returns the published directory for the given item.
func (t Tree) ItemDir(id string) string {
	return filepath.Join(t.Root, id)
}

// PlaylistPath returns the published playlist path for the given item.
func (t Tree) PlaylistPath(id string) string {
	return filepath.Join(t.ItemDir(id), PlaylistName)
}

// EnsureDir creates the item's output directory if absent and returns it.
// Idempotent: pre-existing directories and their contents are left untouched.
func (t Tree) EnsureDir(id string) (string, error) {
	dir := t.ItemDir(id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("%w: create output dir %s: %v", ErrStorage, dir, err)
	}
	return dir, nil
}

// NewStagingDir creates a fresh staging directory inside the item's output
// directory. The encoder writes there; nothing under a staging directory is
// ever served because staging names fail segment validation and the playlist
// only appears in the published directory after Publish.
func (t Tree) NewStagingDir(id string) (string, error) {
	dir, err := t.EnsureDir(id)
	if err != nil {
		return "", err
	}
	staging, err := os.MkdirTemp(dir, ".staging-")
	if err != nil {
		return "", fmt.Errorf("%w: create staging dir in %s: %v", ErrStorage, dir, err)
	}
	return staging, nil
}

// Publish moves a completed staging tree into the item's published directory.
// Segments move first; the playlist is written last with an atomic durable
// rename, so a concurrent reader never observes a playlist whose segments are
// not yet in place.
func (t Tree) Publish(id, stagingDir string) error {
	finalDir, err := t.EnsureDir(id)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return fmt.Errorf("%w: read staging dir %s: %v", ErrStorage, stagingDir, err)
	}

	playlistFound := false
	for _, entry := range entries {
		name := entry.Name()
		if name == PlaylistName {
			playlistFound = true
			continue
		}
		if !ValidSegmentName(name) {
			// Encoder scratch files (temp playlists etc.) stay in staging and
			// are removed with it.
			continue
		}
		src := filepath.Join(stagingDir, name)
		dst := filepath.Join(finalDir, name)
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("%w: publish segment %s: %v", ErrStorage, name, err)
		}
	}

	if !playlistFound {
		return fmt.Errorf("%w: staging dir %s has no %s", ErrStorage, stagingDir, PlaylistName)
	}

	playlist, err := os.ReadFile(filepath.Join(stagingDir, PlaylistName)) // #nosec G304 -- staging dir is created by this process
	if err != nil {
		return fmt.Errorf("%w: read staged playlist: %v", ErrStorage, err)
	}

	// renameio: temp file, fsync, atomic rename. The playlist becoming
	// visible is the commit point of the whole publish.
	if err := renameio.WriteFile(t.PlaylistPath(id), playlist, 0o640); err != nil {
		return fmt.Errorf("%w: publish playlist: %v", ErrStorage, err)
	}

	return nil
}

// Discard removes a staging directory and everything beneath it. Safe to call
// after Publish or on a failed run; refuses paths outside the tree root.
func (t Tree) Discard(stagingDir string) error {
	rel, err := filepath.Rel(t.Root, stagingDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: staging dir %s outside tree root", ErrStorage, stagingDir)
	}
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("%w: remove staging dir %s: %v", ErrStorage, stagingDir, err)
	}
	return nil
}
