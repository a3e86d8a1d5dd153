package util

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultFileName = "file"
	notePrefix      = "note-"
	noteExt         = ".txt"
	noteTimeLayout  = "2006-01-02T15:04:05.000Z07:00"
)

// SafeName reduces a client supplied file name to its last path element.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return defaultFileName
	}

	return name
}

// SplitName splits name into base and extension. The extension keeps its leading dot.
func SplitName(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		// ".bashrc" has no base, treat it as a base without extension
		return name, ""
	}

	return strings.TrimSuffix(name, ext), ext
}

// NoteName returns a filesystem safe text note name for t.
func NoteName(t time.Time) string {
	stamp := t.UTC().Format(noteTimeLayout)
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)

	return notePrefix + stamp + noteExt
}
