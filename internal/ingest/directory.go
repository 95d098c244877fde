// Package ingest discovers offer documents on the local filesystem.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

type FileResult struct {
	Path         string
	HashHex      string
	Deduplicated bool
	Document     entity.Document
	Err          string
}

type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// LoadDocument reads the file at path into a Document named after its base name.
func LoadDocument(path string) (entity.Document, string, error) {
	if !allowedPath(path) {
		return entity.Document{}, "", errors.New("unsupported extension: " + filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.Document{}, "", err
	}
	sum := sha256.Sum256(data)
	return entity.Document{Name: filepath.Base(path), Data: data}, hex.EncodeToString(sum[:]), nil
}

// ScanDirectory walks root and loads every offer document, skipping hidden
// entries if requested. Files with identical content are loaded once.
func ScanDirectory(ctx context.Context, root string, skipHidden bool, logger *slog.Logger) ([]FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats
	seen := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !allowedPath(path) {
			return nil
		}
		stats.Matched++

		doc, hash, err := LoadDocument(path)
		if err != nil {
			logger.Warn("ingest.load_failed", "path", path, "error", err)
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if first, dup := seen[hash]; dup {
			logger.Info("ingest.duplicate", "path", path, "same_as", first)
			results = append(results, FileResult{Path: path, HashHex: hash, Deduplicated: true})
			stats.Deduplicated++
			return nil
		}
		seen[hash] = path
		results = append(results, FileResult{Path: path, HashHex: hash, Document: doc})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return results, stats, err
	}

	logger.Info("ingest.scan.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
