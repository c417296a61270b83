// Package source fetches Markdown documents from GitHub or a local checkout.
package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// Content is the raw bytes of one document and its fingerprint, the git
// blob sha of those bytes.
type Content struct {
	Data        []byte
	Fingerprint string
}

// Fetcher reads a single document at a branch.
type Fetcher interface {
	Fetch(ctx context.Context, repo, path, branch string) (Content, error)
}

// Lister enumerates the Markdown files below a directory at a branch.
// Paths are repository relative, slash separated and sorted.
type Lister interface {
	List(ctx context.Context, repo, dir, branch string) ([]string, error)
}

// Source can both list and fetch.
type Source interface {
	Fetcher
	Lister
}

var githubURLRe = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)

// NormalizeRepo accepts "owner/name" or a GitHub URL and returns "owner/name".
func NormalizeRepo(repo string) string {
	repo = strings.TrimSpace(repo)
	if m := githubURLRe.FindStringSubmatch(repo); m != nil {
		return m[1] + "/" + m[2]
	}
	return repo
}

// BlobSHA returns the git blob object id of data, so local files and GitHub
// contents produce the same fingerprint.
func BlobSHA(data []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(data)) + "\x00"))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// IsMarkdown reports whether a path names a Markdown file.
func IsMarkdown(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".md")
}

// Registry routes each repository to a Source, falling back to a default.
type Registry struct {
	repos    map[string]Source
	fallback Source
}

// NewRegistry returns a registry using fallback for unregistered repos.
func NewRegistry(fallback Source) *Registry {
	return &Registry{repos: map[string]Source{}, fallback: fallback}
}

// Register routes repo to src.
func (r *Registry) Register(repo string, src Source) {
	r.repos[NormalizeRepo(repo)] = src
}

func (r *Registry) source(repo string) (Source, error) {
	if src, ok := r.repos[NormalizeRepo(repo)]; ok {
		return src, nil
	}
	if r.fallback == nil {
		return nil, syncerr.New(syncerr.Config, "select source", "no source configured for repository %q", repo)
	}
	return r.fallback, nil
}

// Fetch implements Fetcher.
func (r *Registry) Fetch(ctx context.Context, repo, path, branch string) (Content, error) {
	src, err := r.source(repo)
	if err != nil {
		return Content{}, err
	}
	return src.Fetch(ctx, NormalizeRepo(repo), path, branch)
}

// List implements Lister.
func (r *Registry) List(ctx context.Context, repo, dir, branch string) ([]string, error) {
	src, err := r.source(repo)
	if err != nil {
		return nil, err
	}
	return src.List(ctx, NormalizeRepo(repo), dir, branch)
}

func sortedMarkdown(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if IsMarkdown(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
