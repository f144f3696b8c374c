package library

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnresolved is returned when a linked file cannot be found on disk.
var ErrUnresolved = errors.New("linked file not found")

// LinkedFile is a file attached to an entry.
type LinkedFile struct {
	Description string
	Link        string
	FileType    string
}

// IsOnlineLink reports whether the link points to a remote resource.
func (f LinkedFile) IsOnlineLink() bool {
	link := strings.ToLower(strings.TrimSpace(f.Link))
	for _, prefix := range []string{"http://", "https://", "ftp://", "www."} {
		if strings.HasPrefix(link, prefix) {
			return true
		}
	}
	return false
}

// IsPDF reports whether the file is typed as PDF.
func (f LinkedFile) IsPDF() bool {
	return strings.EqualFold(strings.TrimSpace(f.FileType), "pdf")
}

// Resolve finds the file on disk. Absolute links are checked as is;
// relative links are tried against each directory in order.
func (f LinkedFile) Resolve(dirs []string) (string, os.FileInfo, error) {
	if f.Link == "" {
		return "", nil, ErrUnresolved
	}
	candidates := []string{f.Link}
	if !filepath.IsAbs(f.Link) {
		candidates = candidates[:0]
		for _, dir := range dirs {
			candidates = append(candidates, filepath.Join(dir, f.Link))
		}
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return filepath.Clean(path), info, nil
		}
	}
	return "", nil, ErrUnresolved
}

// SerializeFiles renders linked files in the description:link:type list
// format of the file field.
func SerializeFiles(files []LinkedFile) string {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, escapeFilePart(f.Description)+":"+escapeFilePart(f.Link)+":"+escapeFilePart(f.FileType))
	}
	return strings.Join(parts, ";")
}

func escapeFilePart(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ":", `\:`, ";", `\;`)
	return r.Replace(s)
}
