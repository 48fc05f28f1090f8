package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/Skryldev/photosync/errors"
)

// Candidates expands glob into the candidate file list: directories and
// dotfiles are dropped and the rest sorted lexicographically.  A path that
// cannot be stat'ed stays in the list so the failure shows up in the report.
func Candidates(glob string) ([]string, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "ingest.glob", err)
	}
	out := matches[:0]
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), ".") {
			continue
		}
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}
