package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// Dir reads documents from a local checkout. Repo and branch are ignored;
// the checkout is assumed to be at the wanted revision.
type Dir struct {
	root string
}

// NewDir returns a source rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) resolve(op, path string) (string, error) {
	rel := filepath.FromSlash(strings.Trim(path, "/"))
	if rel == "" {
		return d.root, nil
	}
	if !filepath.IsLocal(rel) {
		return "", syncerr.New(syncerr.Config, op, "path %q escapes %s", path, d.root)
	}
	return filepath.Join(d.root, rel), nil
}

// Fetch implements Fetcher.
func (d *Dir) Fetch(ctx context.Context, repo, path, branch string) (Content, error) {
	const op = "fetch document"
	if err := ctx.Err(); err != nil {
		return Content{}, syncerr.Wrap(syncerr.Transport, op, err)
	}
	full, err := d.resolve(op, path)
	if err != nil {
		return Content{}, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return Content{}, syncerr.New(syncerr.NotFound, op, "%s not found in %s", path, d.root)
	}
	if err != nil {
		return Content{}, syncerr.Wrap(syncerr.Transport, op, fmt.Errorf("reading file: %w", err))
	}
	return Content{Data: data, Fingerprint: BlobSHA(data)}, nil
}

// List implements Lister.
func (d *Dir) List(ctx context.Context, repo, dir, branch string) ([]string, error) {
	const op = "list documents"
	base, err := d.resolve(op, dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(base, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if p != base && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, syncerr.New(syncerr.NotFound, op, "directory %s not found in %s", dir, d.root)
	}
	if err != nil {
		return nil, syncerr.Wrap(syncerr.Transport, op, err)
	}
	return sortedMarkdown(paths), nil
}
