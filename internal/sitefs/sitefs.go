// Package sitefs walks and copies generated site trees.
package sitefs

import (
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// HTMLFiles returns a lazy, single-pass sequence of the slash-separated
// paths (relative to root) of every .html file under root, in depth-first
// lexical order. Directory read failures are yielded as ("", err) and the walk
// continues with the next entry. Breaking out of the loop stops the walk.
func HTMLFiles(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		walkHTML(root, "", yield)
	}
}

// walkHTML returns false when the consumer stopped the iteration.
func walkHTML(root, rel string, yield func(string, error) bool) bool {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return yield("", fmt.Errorf("read dir %q: %w", rel, err))
	}
	// os.ReadDir sorts by filename.
	for _, e := range entries {
		p := e.Name()
		if rel != "" {
			p = path.Join(rel, e.Name())
		}
		if e.IsDir() {
			if !walkHTML(root, p, yield) {
				return false
			}
			continue
		}
		if !e.Type().IsRegular() || !strings.EqualFold(path.Ext(p), ".html") {
			continue
		}
		if !yield(p, nil) {
			return false
		}
	}
	return true
}

// CopyTree copies the regular files under src into dst, creating
// directories as needed and overwriting existing files.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
