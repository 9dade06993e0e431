package httpapi

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"
)

// cleanupFiles removes uploads and workbooks older than the retention
// window, or everything when aggressive. Orphaned files in the working
// directories are swept by modification time as well. Returns the file
// count and megabytes reclaimed.
func (s *Server) cleanupFiles(aggressive bool) (int, float64) {
	cutoff := time.Now().Add(-s.cfg.Retention)

	deleted := 0
	var freed int64

	s.mu.Lock()
	for id, entry := range s.uploads {
		if aggressive || entry.CreatedAt.Before(cutoff) {
			freed += removeFile(entry.Path)
			deleted++
			delete(s.uploads, id)
		}
	}
	for id, entry := range s.reports {
		if aggressive || entry.CreatedAt.Before(cutoff) {
			freed += removeFile(entry.Path)
			deleted++
			delete(s.reports, id)
		}
	}
	s.mu.Unlock()

	for _, dir := range []string{s.cfg.UploadDir, s.cfg.OutputDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if aggressive || info.ModTime().Before(cutoff) {
				if n := removeFile(filepath.Join(dir, e.Name())); n > 0 {
					freed += n
					deleted++
				}
			}
		}
	}

	freedMB := float64(freed) / (1024 * 1024)
	if deleted > 0 {
		slog.Info("cleanup complete", "deleted", deleted, "freed_mb", roundMB(freedMB))
	}
	return deleted, freedMB
}

// removeFile deletes path and returns the bytes reclaimed, zero when
// the file was already gone.
func removeFile(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if err := os.Remove(path); err != nil {
		slog.Warn("could not delete file", "path", path, "error", err)
		return 0
	}
	return info.Size()
}

// scanDir counts the regular files under dir and their total size.
func scanDir(dir string) (int, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}

	count := 0
	var size int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err == nil {
			count++
			size += info.Size()
		}
	}
	return count, size
}

func roundMB(v float64) float64 {
	return math.Round(v*100) / 100
}
