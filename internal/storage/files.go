// Package storage provides file and path helpers shared by the upload,
// output and object store paths of the service.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Common directory and naming constants.
const (
	defaultDirPermissions = 0o750
	dot                   = "."
	podcastSuffix         = "_podcast"
	separatorReplacement  = " "
	trimmedEdgeChars      = "._"
	unsafeCharsPattern    = `[^A-Za-z0-9_.-]`
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
	formatGB        = "%.1f GB"
	formatMB        = "%.1f MB"
	formatKB        = "%.1f KB"
	formatBytes     = "%d B"
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir = "failed to create directory %s: %w"
	errFmtOutsideDir        = "%w: %q"
	errFmtStat              = "failed to stat %s: %w"
)

var (
	// ErrUnsafeName is returned when a name sanitizes to nothing or escapes its directory.
	ErrUnsafeName = errors.New("unsafe file name")

	unsafeChars = regexp.MustCompile(unsafeCharsPattern)
)

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}
	}

	return nil
}

// SanitizeFilename reduces an uploaded name to a flat ASCII file name.
// Path separators become word breaks, whitespace runs become underscores,
// anything outside [A-Za-z0-9_.-] is dropped, and leading or trailing dots
// and underscores are trimmed. The result may be empty.
func SanitizeFilename(filename string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 0x7f {
			return -1
		}

		return r
	}, filename)

	ascii = strings.NewReplacer("/", separatorReplacement, "\\", separatorReplacement).Replace(ascii)
	joined := strings.Join(strings.Fields(ascii), "_")

	return strings.Trim(unsafeChars.ReplaceAllString(joined, ""), trimmedEdgeChars)
}

// Stem returns the file name without directory and extension.
func Stem(filename string) string {
	base := filepath.Base(filename)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PodcastName derives the output name for a source document, e.g.
// "lecture.pdf" and ".mp3" give "lecture_podcast.mp3".
func PodcastName(source, extension string) string {
	if extension != "" && !strings.HasPrefix(extension, dot) {
		extension = dot + extension
	}

	return Stem(source) + podcastSuffix + extension
}

// HasExtension reports whether filename ends in one of the allowed
// extensions, compared case-insensitively. Entries may omit the leading dot.
func HasExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}

	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if !strings.HasPrefix(candidate, dot) {
			candidate = dot + candidate
		}

		if candidate == ext {
			return true
		}
	}

	return false
}

// ResolveWithin joins name onto dir and rejects results outside dir.
func ResolveWithin(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == dot || name == ".." {
		return "", fmt.Errorf(errFmtOutsideDir, ErrUnsafeName, name)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf(errFmtOutsideDir, ErrUnsafeName, name)
	}

	path := filepath.Join(root, name)

	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf(errFmtOutsideDir, ErrUnsafeName, name)
	}

	return path, nil
}

// Exists reports whether a regular file is present at path.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf(errFmtStat, path, err)
	}

	return info.Mode().IsRegular(), nil
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// FormatFileSize formats a file size in a human-readable string (e.g., "1.2 GB", "500.5
// MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}
