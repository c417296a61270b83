package syncer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/dt-pm-tools/confluence-sync/internal/confluence"
	"github.com/dt-pm-tools/confluence-sync/internal/source"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// fakeWiki is an in-memory Confluence that enforces version numbers and
// can inject conflicts.
type fakeWiki struct {
	mu     sync.Mutex
	pages  map[string]*confluence.Page
	nextID int

	// conflicts makes the next n updates fail with 409 after a simulated
	// concurrent edit bumps the page version.
	conflicts int
	// concurrentBody, when set, is the body the simulated edit writes.
	concurrentBody string

	finds, gets, creates, updates int
}

func newFakeWiki(pages ...confluence.Page) *fakeWiki {
	w := &fakeWiki{pages: map[string]*confluence.Page{}, nextID: 1000}
	for _, p := range pages {
		p := p
		w.pages[p.ID] = &p
	}
	return w
}

func (w *fakeWiki) FindPages(ctx context.Context, spaceKey, title string) ([]confluence.Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finds++
	var out []confluence.Page
	for _, p := range w.pages {
		if p.SpaceKey == spaceKey && p.Title == title {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (w *fakeWiki) GetPage(ctx context.Context, id string) (*confluence.Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gets++
	p, ok := w.pages[id]
	if !ok {
		return nil, syncerr.WithStatus(syncerr.NotFound, "get page", http.StatusNotFound, fmt.Errorf("no page %s", id))
	}
	cp := *p
	return &cp, nil
}

func (w *fakeWiki) CreatePage(ctx context.Context, in confluence.PageInput) (*confluence.Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.creates++
	w.nextID++
	p := &confluence.Page{
		ID:       strconv.Itoa(w.nextID),
		Title:    in.Title,
		SpaceKey: in.SpaceKey,
		Version:  1,
		ParentID: in.ParentID,
		Body:     in.Body,
	}
	w.pages[p.ID] = p
	cp := *p
	return &cp, nil
}

func (w *fakeWiki) UpdatePage(ctx context.Context, id string, in confluence.PageInput, number int) (*confluence.Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updates++
	p, ok := w.pages[id]
	if !ok {
		return nil, syncerr.WithStatus(syncerr.NotFound, "update page", http.StatusNotFound, fmt.Errorf("no page %s", id))
	}
	if w.conflicts > 0 {
		w.conflicts--
		p.Version++
		if w.concurrentBody != "" {
			p.Body = w.concurrentBody
		}
	}
	if number != p.Version+1 {
		return nil, syncerr.WithStatus(syncerr.VersionConflict, "update page", http.StatusConflict,
			fmt.Errorf("version %d is stale, current is %d", number, p.Version))
	}
	p.Version = number
	p.Title = in.Title
	p.Body = in.Body
	if in.ParentID != "" {
		p.ParentID = in.ParentID
	}
	cp := *p
	return &cp, nil
}

func (w *fakeWiki) page(id string) confluence.Page {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.pages[id]
}

// fakeSource serves documents from memory.
type fakeSource struct {
	docs  map[string]string
	errs  map[string]error
	paths []string
}

func (s *fakeSource) Fetch(ctx context.Context, repo, path, branch string) (source.Content, error) {
	if err, ok := s.errs[path]; ok {
		return source.Content{}, err
	}
	doc, ok := s.docs[path]
	if !ok {
		return source.Content{}, syncerr.New(syncerr.NotFound, "fetch document", "%s not found", path)
	}
	return source.Content{Data: []byte(doc), Fingerprint: source.BlobSHA([]byte(doc))}, nil
}

func (s *fakeSource) List(ctx context.Context, repo, dir, branch string) ([]string, error) {
	return s.paths, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	results  []Result
	finished *Report
}

func (r *fakeRecorder) Record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *fakeRecorder) Finish(rep *Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = rep
}
