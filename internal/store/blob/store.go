// Package blob implements the hash-sharded filesystem blob store: the
// originals and optimized trees, the append-only temp upload files, and
// the recursive size/count walk used by stats endpoints.
package blob

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rexmedia/mediavault/internal/apperr"
)

const (
	originalsDir = "originals"
	optimizedDir = "optimized"
	tempDir      = "temp"
	tempFile     = "upload"
)

// Store is rooted at a single data directory with two served trees
// (originals, optimized) and a scratch tree (temp) for in-progress chunked
// uploads.
type Store struct {
	dataDir string
	levels  int // directory-nesting depth, 0-4
}

// New returns a Store rooted at dataDir with the given shard depth.
func New(dataDir string, levels int) (*Store, error) {
	if levels < 0 || levels > 4 {
		return nil, apperr.Newf(apperr.KindConfig, "directory_levels must be 0-4, got %d", levels)
	}
	for _, d := range []string{originalsDir, optimizedDir, tempDir} {
		if err := os.MkdirAll(filepath.Join(dataDir, d), 0o755); err != nil {
			return nil, apperr.Wrap(err, apperr.KindIO, "create blob store directories")
		}
	}
	return &Store{dataDir: dataDir, levels: levels}, nil
}

// shardedPath returns <root>/<tree>/<sh1>/.../<shL>/<id>.<ext>, where each
// shard is two hex characters taken left-to-right from id with dashes
// removed. A uniformly random UUID spreads evenly across shards, bounding
// per-directory fanout at roughly N/(256^levels).
func (s *Store) shardedPath(tree, id, ext string) string {
	hex := strings.ReplaceAll(id, "-", "")
	parts := make([]string, 0, s.levels+2)
	parts = append(parts, s.dataDir, tree)
	for i := 0; i < s.levels && len(hex) >= (i+1)*2; i++ {
		parts = append(parts, hex[i*2:i*2+2])
	}
	filename := id
	if ext != "" {
		filename += "." + ext
	}
	parts = append(parts, filename)
	return filepath.Join(parts...)
}

// OriginalPath returns the on-disk path for id's original blob.
func (s *Store) OriginalPath(id, ext string) string { return s.shardedPath(originalsDir, id, ext) }

// OptimizedPath returns the on-disk path for id's optimized blob.
func (s *Store) OptimizedPath(id, ext string) string { return s.shardedPath(optimizedDir, id, ext) }

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SaveOriginal writes the original blob for id.
func (s *Store) SaveOriginal(id, ext string, data []byte) error {
	if err := writeAtomic(s.OriginalPath(id, ext), data); err != nil {
		return apperr.Wrap(err, apperr.KindIO, "save original blob")
	}
	return nil
}

// SaveOptimized writes the optimized blob for id.
func (s *Store) SaveOptimized(id, ext string, data []byte) error {
	if err := writeAtomic(s.OptimizedPath(id, ext), data); err != nil {
		return apperr.Wrap(err, apperr.KindIO, "save optimized blob")
	}
	return nil
}

// ReadOriginal reads the original blob for id.
func (s *Store) ReadOriginal(id, ext string) ([]byte, error) {
	data, err := os.ReadFile(s.OriginalPath(id, ext))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, "read original blob")
	}
	return data, nil
}

// ReadOptimized reads the optimized blob for id.
func (s *Store) ReadOptimized(id, ext string) ([]byte, error) {
	data, err := os.ReadFile(s.OptimizedPath(id, ext))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, "read optimized blob")
	}
	return data, nil
}

// OpenOptimized opens the optimized blob for streaming rather than fully
// buffering it, so the serving handler can copy straight to the response.
func (s *Store) OpenOptimized(id, ext string) (*os.File, error) {
	f, err := os.Open(s.OptimizedPath(id, ext))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, "open optimized blob")
	}
	return f, nil
}

// OpenOriginal opens the original blob for streaming.
func (s *Store) OpenOriginal(id, ext string) (*os.File, error) {
	f, err := os.Open(s.OriginalPath(id, ext))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, "open original blob")
	}
	return f, nil
}

// DeleteOriginal removes the original file for id; a missing file is not
// an error.
func (s *Store) DeleteOriginal(id, ext string) error {
	if err := os.Remove(s.OriginalPath(id, ext)); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(err, apperr.KindIO, "delete original blob")
	}
	return nil
}

// DeleteOptimized removes the optimized file for id; a missing file is not
// an error.
func (s *Store) DeleteOptimized(id, ext string) error {
	if err := os.Remove(s.OptimizedPath(id, ext)); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(err, apperr.KindIO, "delete optimized blob")
	}
	return nil
}

// ---- temp / chunked upload scratch space ----

func (s *Store) tempSessionDir(sessionID string) string {
	return filepath.Join(s.dataDir, tempDir, sessionID)
}

func (s *Store) tempUploadPath(sessionID string) string {
	return filepath.Join(s.tempSessionDir(sessionID), tempFile)
}

// CreateSessionDir creates the scratch directory for a new chunked upload
// session.
func (s *Store) CreateSessionDir(sessionID string) error {
	if err := os.MkdirAll(s.tempSessionDir(sessionID), 0o755); err != nil {
		return apperr.Wrap(err, apperr.KindIO, "create upload session directory")
	}
	return nil
}

// AppendChunk opens the session's temp upload file in append mode, writes
// data, and flushes before returning.
func (s *Store) AppendChunk(sessionID string, data []byte) error {
	f, err := os.OpenFile(s.tempUploadPath(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperr.Wrap(err, apperr.KindIO, "open temp upload file")
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return apperr.Wrap(err, apperr.KindIO, "append chunk")
	}
	return f.Sync()
}

// TempSize returns the current size of the session's temp upload file.
func (s *Store) TempSize(sessionID string) (int64, error) {
	info, err := os.Stat(s.tempUploadPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, apperr.Wrap(err, apperr.KindIO, "stat temp upload file")
	}
	return info.Size(), nil
}

// ReadTemp reads the full assembled bytes of the session's temp upload
// file, used once all chunks have arrived.
func (s *Store) ReadTemp(sessionID string) ([]byte, error) {
	data, err := os.ReadFile(s.tempUploadPath(sessionID))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, "read temp upload file")
	}
	return data, nil
}

// DeleteSessionDir removes the whole scratch directory for a session,
// best-effort.
func (s *Store) DeleteSessionDir(sessionID string) error {
	if err := os.RemoveAll(s.tempSessionDir(sessionID)); err != nil {
		return apperr.Wrap(err, apperr.KindIO, "delete upload session directory")
	}
	return nil
}

// CleanupExpired enumerates temp subdirectories and removes any whose
// modification time is older than maxAge. Best-effort: per-entry failures
// are collected but do not stop the sweep.
func (s *Store) CleanupExpired(maxAge time.Duration) ([]string, error) {
	root := filepath.Join(s.dataDir, tempDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, "list temp directory")
	}
	cutoff := time.Now().Add(-maxAge)
	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(root, entry.Name())
			if err := os.RemoveAll(path); err == nil {
				removed = append(removed, entry.Name())
			}
		}
	}
	return removed, nil
}

// Stats summarizes the two served trees.
type Stats struct {
	OriginalsBytes int64
	OriginalsCount int64
	OptimizedBytes int64
	OptimizedCount int64
}

func dirSizeAndCount(root string) (int64, int64, error) {
	var size, count int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return size, count, nil
}

// GetStats walks originals/ and optimized/ recursively, summing size and
// file count.
func (s *Store) GetStats() (Stats, error) {
	var stats Stats
	var err error
	stats.OriginalsBytes, stats.OriginalsCount, err = dirSizeAndCount(filepath.Join(s.dataDir, originalsDir))
	if err != nil {
		return stats, apperr.Wrap(err, apperr.KindIO, "walk originals tree")
	}
	stats.OptimizedBytes, stats.OptimizedCount, err = dirSizeAndCount(filepath.Join(s.dataDir, optimizedDir))
	if err != nil {
		return stats, apperr.Wrap(err, apperr.KindIO, "walk optimized tree")
	}
	return stats, nil
}

// CopyOptimizedTo streams the optimized blob for id directly to w, avoiding
// a full in-memory buffer for large files.
func (s *Store) CopyOptimizedTo(w io.Writer, id, ext string) (int64, error) {
	f, err := s.OpenOptimized(id, ext)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return n, apperr.Wrap(err, apperr.KindIO, "stream optimized blob")
	}
	return n, nil
}

// CopyOriginalTo streams the original blob for id directly to w.
func (s *Store) CopyOriginalTo(w io.Writer, id, ext string) (int64, error) {
	f, err := s.OpenOriginal(id, ext)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return n, apperr.Wrap(err, apperr.KindIO, "stream original blob")
	}
	return n, nil
}

// SanitizeFilename keeps only [A-Za-z0-9._-], used for Content-Disposition
// on original downloads.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// HumanSize formats a byte count for admin/stats responses, e.g. "12.3 MB".
func HumanSize(bytes int64) string {
	return humanize.Bytes(uint64(bytes))
}
