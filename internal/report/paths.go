package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/rotorcore/internal/blackbox"
)

// SafeName turns an arbitrary identifier into a file name: anything other
// than ASCII letters, digits, dot, underscore or dash becomes a single
// underscore, and the result is capped at 128 bytes.
func SafeName(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// OutputFile returns the path of name+ext inside dir, creating dir if
// needed. The result never escapes dir, symlinks included.
func OutputFile(dir, name, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	canonicalDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve report directory: %w", err)
	}
	path := filepath.Join(canonicalDir, SafeName(name)+ext)

	rel, err := filepath.Rel(canonicalDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("report file %s escapes %s", path, dir)
	}
	return path, nil
}

// WriteHTMLFile renders WriteHTML into dir/name.html and returns the path.
func WriteHTMLFile(dir, name, title string, frames []blackbox.Frame, maxPoints int) (string, error) {
	path, err := OutputFile(dir, name, ".html")
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteHTML(f, title, frames, maxPoints); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
