package syncer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dt-pm-tools/confluence-sync/internal/confluence"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// Resolver finds the page a mapping targets.
type Resolver struct {
	wiki Wiki
}

// NewResolver returns a resolver reading from wiki.
func NewResolver(wiki Wiki) *Resolver {
	return &Resolver{wiki: wiki}
}

// Resolve returns the current state of the mapping's page, or nil when no
// page with the mapping's title exists in its space yet. A mapping that
// addresses a page id fails when that page is gone. More than one page
// with the same title is a ConsistencyError.
func (r *Resolver) Resolve(ctx context.Context, m Mapping) (*confluence.Page, error) {
	const op = "resolve page"
	if m.PageID != "" {
		page, err := r.wiki.GetPage(ctx, m.PageID)
		if syncerr.Is(err, syncerr.NotFound) {
			return nil, syncerr.WithStatus(syncerr.API, op, http.StatusNotFound,
				fmt.Errorf("page %s does not exist", m.PageID))
		}
		return page, err
	}

	pages, err := r.wiki.FindPages(ctx, m.SpaceKey, m.Title)
	if err != nil {
		return nil, err
	}
	switch len(pages) {
	case 0:
		return nil, nil
	case 1:
		return &pages[0], nil
	default:
		ids := make([]string, len(pages))
		for i, p := range pages {
			ids[i] = p.ID
		}
		return nil, syncerr.New(syncerr.Consistency, op, "%d pages titled %q in space %s: %s",
			len(pages), m.Title, m.SpaceKey, strings.Join(ids, ", "))
	}
}
