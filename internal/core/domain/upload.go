package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMaxUploadSize is the largest file the backend accepts (50 MB).
const DefaultMaxUploadSize int64 = 50 * 1024 * 1024

// DefaultAllowedExtensions lists the file types the backend can process.
var DefaultAllowedExtensions = []string{"pdf", "docx", "txt", "pptx"}

// UploadPolicy constrains which files may be uploaded.
type UploadPolicy struct {
	// MaxSize is the maximum file size in bytes.
	MaxSize int64

	// AllowedExtensions lists accepted extensions without the leading dot.
	AllowedExtensions []string
}

// DefaultUploadPolicy returns the backend's documented limits.
func DefaultUploadPolicy() UploadPolicy {
	exts := make([]string, len(DefaultAllowedExtensions))
	copy(exts, DefaultAllowedExtensions)
	return UploadPolicy{
		MaxSize:           DefaultMaxUploadSize,
		AllowedExtensions: exts,
	}
}

// Validate checks a file against the policy.
// The extension is checked first so a large .exe reports the type problem.
func (p UploadPolicy) Validate(filename string, size int64) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	allowed := p.extensions()
	if !contains(allowed, ext) {
		shown := ext
		if shown == "" {
			shown = "(none)"
		}
		return fmt.Errorf("%w: %q has extension %s, allowed extensions are %s",
			ErrUnsupportedFileType, filepath.Base(filename), shown, strings.Join(allowed, ", "))
	}

	maxSize := p.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	if size > maxSize {
		return fmt.Errorf("%w: %q is %s, the limit is %s",
			ErrFileTooLarge, filepath.Base(filename), formatMegabytes(size), formatMegabytes(maxSize))
	}
	return nil
}

func (p UploadPolicy) extensions() []string {
	if len(p.AllowedExtensions) == 0 {
		return DefaultAllowedExtensions
	}
	return p.AllowedExtensions
}

func contains(allowed []string, ext string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}

// formatMegabytes renders a byte count in binary megabytes, e.g. "50 MB".
func formatMegabytes(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/mb)
}
