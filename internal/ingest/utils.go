package ingest

import (
	"path/filepath"
	"strings"

	"github.com/madelhuette/carvitra-sub001/constants"
)

// AllowedExt checks if a file extension is an offer document.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

func allowedPath(path string) bool { return AllowedExt(filepath.Ext(path)) }

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}
