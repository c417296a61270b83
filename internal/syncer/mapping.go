// Package syncer reconciles Confluence pages with Markdown documents.
package syncer

import (
	"context"
	"fmt"

	"github.com/dt-pm-tools/confluence-sync/internal/confluence"
)

// Mapping ties one source document to one wiki page. ParentID is optional;
// when empty the page's position in the tree is left alone. PageID, when
// set, addresses an existing page directly and keeps its current title.
type Mapping struct {
	Repo     string `json:"repo" yaml:"repo"`
	Path     string `json:"path" yaml:"path"`
	Branch   string `json:"branch" yaml:"branch"`
	SpaceKey string `json:"space" yaml:"space"`
	Title    string `json:"title" yaml:"title"`
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	PageID   string `json:"page_id,omitempty" yaml:"page_id,omitempty"`
}

func (m Mapping) String() string {
	target := m.SpaceKey + "/" + m.Title
	if m.PageID != "" {
		target = "page " + m.PageID
	}
	return fmt.Sprintf("%s@%s:%s -> %s", m.Repo, m.Branch, m.Path, target)
}

// Wiki is the subset of the Confluence API the syncer needs.
// *confluence.Client implements it.
type Wiki interface {
	FindPages(ctx context.Context, spaceKey, title string) ([]confluence.Page, error)
	GetPage(ctx context.Context, id string) (*confluence.Page, error)
	CreatePage(ctx context.Context, in confluence.PageInput) (*confluence.Page, error)
	UpdatePage(ctx context.Context, id string, in confluence.PageInput, number int) (*confluence.Page, error)
}

var _ Wiki = (*confluence.Client)(nil)
