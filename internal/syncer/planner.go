package syncer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dt-pm-tools/confluence-sync/internal/confluence"
	"github.com/dt-pm-tools/confluence-sync/internal/source"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// folderBody is the body of pages created to stand in for a directory.
const folderBody = "<p></p>"

// Plan is the work of one run: the mappings to sync and the entries that
// could not be planned.
type Plan struct {
	Mappings []Mapping
	Failed   []Result
}

// Add appends another plan.
func (p *Plan) Add(other *Plan) {
	p.Mappings = append(p.Mappings, other.Mappings...)
	p.Failed = append(p.Failed, other.Failed...)
}

// Tree describes a directory of documents mirrored as a page tree under
// ParentID.
type Tree struct {
	Repo     string
	Branch   string
	SpaceKey string
	ParentID string
	DocsPath string
}

// Planner expands a Tree into mappings, creating the folder pages that
// sub-directories map to.
type Planner struct {
	lister  source.Lister
	wiki    Wiki
	baseURL string
	dryRun  bool
	keep    func(Mapping) bool
	log     zerolog.Logger
}

// NewPlanner returns a planner. baseURL only appears in error messages.
func NewPlanner(lister source.Lister, wiki Wiki, baseURL string, dryRun bool, log zerolog.Logger) *Planner {
	return &Planner{lister: lister, wiki: wiki, baseURL: baseURL, dryRun: dryRun, log: log}
}

// WithFilter limits planning to the documents keep accepts. keep sees the
// mapping's repo, path and title; folder pages are only ensured for the
// documents it keeps.
func (p *Planner) WithFilter(keep func(Mapping) bool) *Planner {
	p.keep = keep
	return p
}

// Plan lists the tree's documents and returns one mapping per file. A
// README.md maps onto its directory's page, which keeps its title; every
// other file becomes a page titled by its file name. A failure to plan the
// tree is returned as a single failed result.
func (p *Planner) Plan(ctx context.Context, t Tree) *Plan {
	mappings, err := p.plan(ctx, t)
	if err != nil {
		m := Mapping{Repo: t.Repo, Path: t.DocsPath, Branch: t.Branch, SpaceKey: t.SpaceKey, PageID: t.ParentID}
		p.log.Error().Err(err).Str("docs_path", t.DocsPath).Msg("planning failed")
		return &Plan{Failed: []Result{failedResult(m, err)}}
	}
	return &Plan{Mappings: mappings}
}

// entry is one listed document before its folder pages exist. dir is the
// directory whose page becomes the parent; a README's dir is its folder's
// parent directory.
type entry struct {
	mapping Mapping
	dir     string
}

func (p *Planner) plan(ctx context.Context, t Tree) ([]Mapping, error) {
	const op = "plan tree"
	if t.ParentID == "" {
		return nil, syncerr.New(syncerr.Config, op, "docs_path %q requires confluence_parent_id", t.DocsPath)
	}

	root, err := p.wiki.GetPage(ctx, t.ParentID)
	if syncerr.Is(err, syncerr.NotFound) {
		return nil, syncerr.New(syncerr.Config, op,
			"confluence_parent_id %s does not exist (space %s, %s)", t.ParentID, t.SpaceKey, p.baseURL)
	}
	if err != nil {
		return nil, err
	}
	if root.SpaceKey != "" && root.SpaceKey != t.SpaceKey {
		p.log.Warn().
			Str("parent_id", t.ParentID).
			Str("parent_space", root.SpaceKey).
			Str("confluence_space", t.SpaceKey).
			Msg("root parent page is in a different space")
	}

	paths, err := p.lister.List(ctx, t.Repo, t.DocsPath, t.Branch)
	if err != nil {
		return nil, err
	}

	base := strings.Trim(t.DocsPath, "/")
	titles := titleClaims{root.Title: "the root parent page"}

	var entries []entry
	for _, full := range paths {
		rel := strings.TrimPrefix(strings.TrimPrefix(full, base), "/")
		dir, file := path.Split(rel)
		dir = strings.TrimSuffix(dir, "/")
		for d := dir; d != "" && d != "."; d = path.Dir(d) {
			if err := titles.claim(path.Base(d), d+"/"); err != nil {
				return nil, err
			}
		}

		m := Mapping{Repo: t.Repo, Path: full, Branch: t.Branch, SpaceKey: t.SpaceKey}
		switch {
		case strings.EqualFold(file, "README.md") && dir == "":
			m.Title, m.PageID = root.Title, t.ParentID
		case strings.EqualFold(file, "README.md"):
			// The README becomes the folder page itself.
			m.Title = path.Base(dir)
			dir = path.Dir(dir)
		default:
			m.Title = file[:len(file)-len(".md")]
			if err := titles.claim(m.Title, full); err != nil {
				return nil, err
			}
		}
		if p.keep != nil && !p.keep(m) {
			continue
		}
		entries = append(entries, entry{mapping: m, dir: dir})
	}

	folders := map[string]string{"": t.ParentID}
	mappings := make([]Mapping, 0, len(entries))
	for _, e := range entries {
		m := e.mapping
		if m.PageID == "" {
			parentID, err := p.ensureFolders(ctx, t, folders, e.dir)
			if err != nil {
				return nil, err
			}
			m.ParentID = parentID
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// titleClaims tracks which file or directory owns each page title in a
// tree, since Confluence allows a title only once per space. A directory
// and its README share the folder page's title.
type titleClaims map[string]string

func (c titleClaims) claim(title, owner string) error {
	if title == "" {
		return nil
	}
	if prev, ok := c[title]; ok && prev != owner {
		return syncerr.New(syncerr.Consistency, "plan tree", "%s and %s both map to page title %q", prev, owner, title)
	}
	c[title] = owner
	return nil
}

// ensureFolders returns the page id for dir, creating the folder pages on
// the way down from the root as needed. folders caches ids by directory.
func (p *Planner) ensureFolders(ctx context.Context, t Tree, folders map[string]string, dir string) (string, error) {
	if dir == "." {
		dir = ""
	}
	if id, ok := folders[dir]; ok {
		return id, nil
	}
	parentID, err := p.ensureFolders(ctx, t, folders, path.Dir(dir))
	if err != nil {
		return "", err
	}
	id, err := p.ensureFolder(ctx, t, path.Base(dir), parentID, dir)
	if err != nil {
		return "", err
	}
	folders[dir] = id
	return id, nil
}

func (p *Planner) ensureFolder(ctx context.Context, t Tree, title, parentID, dir string) (string, error) {
	pages, err := p.wiki.FindPages(ctx, t.SpaceKey, title)
	if err != nil {
		return "", err
	}
	switch len(pages) {
	case 0:
	case 1:
		if pages[0].ParentID != parentID {
			p.log.Warn().Str("title", title).Str("page_id", pages[0].ID).Msg("folder page exists under a different parent")
		}
		return pages[0].ID, nil
	default:
		return "", syncerr.New(syncerr.Consistency, "ensure folder", "%d pages titled %q in space %s", len(pages), title, t.SpaceKey)
	}

	if p.dryRun {
		p.log.Info().Str("title", title).Msg("would create folder page")
		return "dry-run:" + dir, nil
	}
	page, err := p.wiki.CreatePage(ctx, confluence.PageInput{
		SpaceKey: t.SpaceKey,
		Title:    title,
		ParentID: parentID,
		Body:     folderBody,
	})
	if err != nil {
		return "", fmt.Errorf("creating folder page %q: %w", title, err)
	}
	p.log.Info().Str("title", title).Str("page_id", page.ID).Msg("created folder page")
	return page.ID, nil
}
