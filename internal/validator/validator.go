package validator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

type PathType int

const (
	Directory PathType = iota
	File
	Any
)

func PathIsValid(path string, expected PathType) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}

	switch expected {
	case Directory:
		return stat.IsDir()
	case File:
		return !stat.IsDir()
	case Any:
		return true
	default:
		panic(errors.New("got invalid PathType as Input"))
	}
}

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// FileIsInDirectory reports whether file, relative to dir, names a regular file that
// does not escape dir.
func FileIsInDirectory(file, dir string) bool {
	if !NotBlank(file) || filepath.IsAbs(file) {
		return false
	}

	rel := filepath.Clean(file)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	return PathIsValid(filepath.Join(dir, rel), File)
}

// HasExtension compares the file extension case-insensitively.
func HasExtension(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}
