package qualitative

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource serves analysis text from markdown files on disk, one file
// per symbol (<dir>/<SYMBOL>.md). Analyst output lands there out of band;
// a symbol without a file simply has no verdict yet.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Analysis returns the stored analysis text for a symbol.
func (s *FileSource) Analysis(_ context.Context, symbol, _, _ string) (string, error) {
	path := filepath.Join(s.dir, strings.ToUpper(symbol)+".md")

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("no analysis on file for %s: %w", symbol, err)
	}

	return string(data), nil
}
