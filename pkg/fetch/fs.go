package fetch

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// FSFetcher reads fragments from a filesystem (a directory or embedded files).
type FSFetcher struct {
	fsys fs.FS
}

// NewFSFetcher wraps fsys
func NewFSFetcher(fsys fs.FS) *FSFetcher {
	return &FSFetcher{fsys: fsys}
}

// Fetch reads path from the filesystem. A missing file reports status 404 so
// callers see the same failure an HTTP origin would give.
func (f *FSFetcher) Fetch(_ context.Context, p string) (string, error) {
	name := path.Clean(strings.TrimPrefix(p, "/"))
	if !fs.ValidPath(name) {
		return "", &FetchError{Path: p, Status: http.StatusBadRequest, Err: fs.ErrInvalid}
	}

	data, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		fe := &FetchError{Path: p, Err: err}
		if errors.Is(err, fs.ErrNotExist) {
			fe.Status = http.StatusNotFound
		}
		return "", fe
	}
	return string(data), nil
}
