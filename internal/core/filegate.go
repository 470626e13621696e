package core

import (
	"fmt"
	"strings"
)

// AllowedExtensions lists the file extensions accepted for upload, lower-case with dot.
var AllowedExtensions = []string{".xlsx", ".xls", ".csv"}

// DefaultMaxFileSize is the upload size cap used when none is configured (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// FileGate rejects uploads before any parsing is attempted.
type FileGate struct {
	MaxFileSize int64 // 0 disables the size check
}

// ValidateFile runs the default gate without a size limit.
func ValidateFile(filename string, content []byte) []string {
	return FileGate{}.Validate(filename, content)
}

// Validate returns the violations for an upload, or nil if it may be parsed.
// Rules short-circuit on the first failing category.
func (g FileGate) Validate(filename string, content []byte) []string {
	if strings.TrimSpace(filename) == "" || len(content) == 0 {
		return []string{"empty file or missing file name"}
	}

	if !isAllowedExtension(fileExtension(filename)) {
		return []string{fmt.Sprintf("invalid file extension: accepted %s", strings.Join(AllowedExtensions, ", "))}
	}

	if g.MaxFileSize > 0 && int64(len(content)) > g.MaxFileSize {
		return []string{fmt.Sprintf("file too large: %d bytes exceeds the %dMB limit", len(content), g.MaxFileSize/(1024*1024))}
	}

	return nil
}

// fileExtension returns the lower-cased substring from the last dot, or "" if there is none.
func fileExtension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i:])
}

func isAllowedExtension(ext string) bool {
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// isDelimitedText reports whether a file name denotes CSV input.
func isDelimitedText(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".csv")
}
