package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by Store.Put when content exceeds the size cap.
var ErrTooLarge = errors.New("media exceeds size limit")

// Store writes media files into a single directory.
type Store struct {
	dir string
}

// NewStore creates dir if needed and returns a Store writing into it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// OpenStore returns a Store over dir without creating it. Has reports
// false for every name when dir does not exist.
func OpenStore(dir string) *Store {
	return &Store{dir: dir}
}

// Put streams r into name. Content is written to a temp file in the store
// directory and renamed into place, so a failed or oversized transfer
// never leaves a partial file behind. maxBytes <= 0 disables the cap.
func (s *Store) Put(name string, r io.Reader, maxBytes int64) (int64, error) {
	tmp, err := os.CreateTemp(s.dir, ".fetch-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", name, err)
	}
	if maxBytes > 0 && n > maxBytes {
		return n, fmt.Errorf("%s: %w (%d bytes)", name, ErrTooLarge, maxBytes)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return n, fmt.Errorf("rename %s: %w", name, err)
	}
	return n, nil
}

// Has reports whether name exists in the store.
func (s *Store) Has(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}
