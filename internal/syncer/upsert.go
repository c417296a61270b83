package syncer

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/dt-pm-tools/confluence-sync/internal/confluence"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// Desired is the content a mapping's page should end up with.
type Desired struct {
	Body        string
	Fingerprint string
}

// Engine performs the create, update or no-op for one mapping.
type Engine struct {
	wiki     Wiki
	resolver *Resolver
	dryRun   bool
	log      zerolog.Logger
}

// NewEngine returns an engine writing to wiki. In dry-run mode it reports
// the outcome a real run would have without writing.
func NewEngine(wiki Wiki, dryRun bool, log zerolog.Logger) *Engine {
	return &Engine{wiki: wiki, resolver: NewResolver(wiki), dryRun: dryRun, log: log}
}

// Upsert brings the mapping's page to want. An update is sent with the
// observed version plus one; if Confluence reports a version conflict the
// page is resolved again and the update retried exactly once. A second
// conflict fails with ConcurrentModification.
func (e *Engine) Upsert(ctx context.Context, m Mapping, want Desired) (Outcome, *confluence.Page, error) {
	page, err := e.resolver.Resolve(ctx, m)
	if err != nil {
		return Failed, nil, err
	}
	if page == nil {
		return e.create(ctx, m, want)
	}
	if e.matches(m, page, want) {
		return Unchanged, page, nil
	}
	if e.dryRun {
		return Updated, page, nil
	}

	outcome := Updated
	var result *confluence.Page
	attempt := 0
	err = retry.Do(
		func() error {
			attempt++
			if attempt > 1 {
				e.log.Info().Str("title", m.Title).Str("page_id", page.ID).Msg("version conflict, re-reading page")
				fresh, err := e.resolver.Resolve(ctx, m)
				if err != nil {
					return retry.Unrecoverable(err)
				}
				if fresh == nil {
					return retry.Unrecoverable(syncerr.New(syncerr.ConcurrentModification, "update page",
						"page %q was removed while it was being updated", m.Title))
				}
				if e.matches(m, fresh, want) {
					outcome, result = Unchanged, fresh
					return nil
				}
				page = fresh
			}
			updated, err := e.wiki.UpdatePage(ctx, page.ID, e.input(m, page, want), page.Version+1)
			if err != nil {
				return err
			}
			result = updated
			return nil
		},
		retry.Attempts(2),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return syncerr.Is(err, syncerr.VersionConflict) }),
		retry.Context(ctx),
	)
	if err != nil {
		if syncerr.Is(err, syncerr.VersionConflict) {
			err = syncerr.Wrap(syncerr.ConcurrentModification, "update page", err)
		}
		return Failed, nil, err
	}
	return outcome, result, nil
}

func (e *Engine) create(ctx context.Context, m Mapping, want Desired) (Outcome, *confluence.Page, error) {
	in := confluence.PageInput{SpaceKey: m.SpaceKey, Title: m.Title, ParentID: m.ParentID, Body: want.Body}
	if e.dryRun {
		return Created, &confluence.Page{Title: m.Title, SpaceKey: m.SpaceKey, ParentID: m.ParentID, Body: want.Body}, nil
	}
	page, err := e.wiki.CreatePage(ctx, in)
	if err != nil {
		return Failed, nil, err
	}
	return Created, page, nil
}

// matches reports whether page already has the wanted body, title and
// position. A mapping by page id keeps the page's title; a mapping without
// a parent leaves the position alone.
func (e *Engine) matches(m Mapping, page *confluence.Page, want Desired) bool {
	if m.PageID == "" && page.Title != m.Title {
		return false
	}
	if m.ParentID != "" && page.ParentID != m.ParentID {
		return false
	}
	return NormalizeStorage(page.Body) == NormalizeStorage(want.Body)
}

func (e *Engine) input(m Mapping, page *confluence.Page, want Desired) confluence.PageInput {
	in := confluence.PageInput{
		SpaceKey: page.SpaceKey,
		Title:    m.Title,
		ParentID: m.ParentID,
		Body:     want.Body,
		Message:  fmt.Sprintf("Synced from %s@%s:%s", m.Repo, m.Branch, m.Path),
	}
	if m.PageID != "" {
		in.Title = page.Title
	}
	if in.SpaceKey == "" {
		in.SpaceKey = m.SpaceKey
	}
	if want.Fingerprint != "" {
		in.Message += " (" + shortSHA(want.Fingerprint) + ")"
	}
	return in
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
