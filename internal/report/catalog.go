package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a named report does not exist.
var ErrNotFound = errors.New("report not found")

// DirCatalog reads reports persisted under Dir.
type DirCatalog struct {
	Dir string
}

// ListReports returns up to limit entries, newest first. A non-positive
// limit returns all of them.
func (d DirCatalog) ListReports(_ context.Context, limit int) ([]Entry, error) {
	entries, err := ListDir(d.Dir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// GetReport loads <Dir>/<name>.json. Names containing path separators are
// rejected as not found.
func (d DirCatalog) GetReport(_ context.Context, name string) (Report, error) {
	name = strings.TrimSuffix(name, ".json")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return Report{}, ErrNotFound
	}
	r, err := Load(filepath.Join(d.Dir, name+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return Report{}, ErrNotFound
	}
	return r, err
}
