package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/confluence-sync/internal/source"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

func mappingsFor(paths ...string) []Mapping {
	var out []Mapping
	for _, p := range paths {
		out = append(out, Mapping{Repo: "org/repo", Path: p, Branch: "main", SpaceKey: "DOC", Title: "Page " + p, ParentID: "10"})
	}
	return out
}

func TestRunCreatesThenIsIdempotent(t *testing.T) {
	src := &fakeSource{docs: map[string]string{
		"a.md": "# A\n\n| x | y |\n|:--|--:|\n| 1 | 2 |\n",
		"b.md": "- [ ] task\n\n```go\nfunc main() {}\n```\n",
		"c.md": "Plain <br> text & more",
	}}
	wiki := newFakeWiki()
	rec := &fakeRecorder{}
	o := NewOrchestrator(src, wiki, Options{Workers: 2, Log: zerolog.Nop(), Recorder: rec})
	mappings := mappingsFor("a.md", "b.md", "c.md")

	first := o.Run(context.Background(), mappings)
	require.Len(t, first.Results, 3)
	for i, res := range first.Results {
		assert.Equal(t, mappings[i], res.Mapping, "results keep mapping order")
		assert.Equal(t, Created, res.Outcome, res.Error)
		assert.NotEmpty(t, res.PageID)
		assert.NotEmpty(t, res.Fingerprint)
	}
	assert.False(t, first.Failed())
	assert.NotEmpty(t, first.RunID)
	assert.Len(t, rec.results, 3)
	assert.Same(t, first, rec.finished)

	second := o.Run(context.Background(), mappings)
	for _, res := range second.Results {
		assert.Equal(t, Unchanged, res.Outcome, res.Error)
	}
	assert.Equal(t, 3, wiki.creates)
	assert.Zero(t, wiki.updates)
	assert.Equal(t, map[Outcome]int{Created: 0, Updated: 0, Unchanged: 3, Failed: 0}, second.Counts())
}

func TestRunIsolatesFailures(t *testing.T) {
	src := &fakeSource{
		docs: map[string]string{"a.md": "# A", "c.md": "# C", "bad.md": "bad \xff"},
		errs: map[string]error{"down.md": syncerr.Wrap(syncerr.Transport, "fetch document", errors.New("connection reset"))},
	}
	o := NewOrchestrator(src, newFakeWiki(), Options{Log: zerolog.Nop()})

	report := o.Run(context.Background(), mappingsFor("a.md", "down.md", "bad.md", "missing.md", "c.md"))
	require.Len(t, report.Results, 5)
	assert.Equal(t, Created, report.Results[0].Outcome)
	assert.Equal(t, Failed, report.Results[1].Outcome)
	assert.Equal(t, syncerr.Transport, report.Results[1].ErrorKind)
	assert.Equal(t, Failed, report.Results[2].Outcome)
	assert.Equal(t, syncerr.MalformedInput, report.Results[2].ErrorKind)
	assert.Equal(t, Failed, report.Results[3].Outcome)
	assert.Equal(t, syncerr.NotFound, report.Results[3].ErrorKind)
	assert.Equal(t, Created, report.Results[4].Outcome)
	assert.True(t, report.Failed())
}

func TestRunAfterCancelStartsNothing(t *testing.T) {
	wiki := newFakeWiki()
	o := NewOrchestrator(&fakeSource{docs: map[string]string{"a.md": "# A"}}, wiki, Options{Log: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := o.Run(ctx, mappingsFor("a.md", "a.md"))

	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, Failed, res.Outcome)
		assert.Equal(t, syncerr.Transport, res.ErrorKind)
	}
	assert.Zero(t, wiki.finds)
	assert.Zero(t, wiki.creates)
}

// gatedSource blocks the first fetch until release is closed.
type gatedSource struct {
	fakeSource
	started chan struct{}
	release chan struct{}
	fetchErr error
	calls    int
}

func (s *gatedSource) Fetch(ctx context.Context, repo, path, branch string) (source.Content, error) {
	s.calls++
	if s.calls == 1 {
		close(s.started)
		<-s.release
		s.fetchErr = ctx.Err()
	}
	return s.fakeSource.Fetch(ctx, repo, path, branch)
}

func TestRunCancelMidRunFinishesInFlight(t *testing.T) {
	src := &gatedSource{
		fakeSource: fakeSource{docs: map[string]string{"a.md": "# A", "b.md": "# B", "c.md": "# C"}},
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	wiki := newFakeWiki()
	o := NewOrchestrator(src, wiki, Options{Workers: 1, Log: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-src.started
		cancel()
		close(src.release)
	}()
	report := o.Run(ctx, mappingsFor("a.md", "b.md", "c.md"))

	require.Len(t, report.Results, 3)
	assert.Equal(t, Created, report.Results[0].Outcome)
	assert.NoError(t, src.fetchErr)
	for _, res := range report.Results[1:] {
		assert.Equal(t, Failed, res.Outcome, res.Mapping.Path)
		assert.Equal(t, syncerr.Transport, res.ErrorKind, res.Mapping.Path)
	}
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, wiki.creates)
}

func TestRunPlanReportsPlanningFailuresFirst(t *testing.T) {
	o := NewOrchestrator(&fakeSource{docs: map[string]string{"a.md": "# A"}}, newFakeWiki(), Options{Log: zerolog.Nop()})
	planFailure := failedResult(Mapping{Path: "Docs"}, syncerr.New(syncerr.Config, "plan tree", "no parent"))

	report := o.RunPlan(context.Background(), &Plan{Mappings: mappingsFor("a.md"), Failed: []Result{planFailure}})
	require.Len(t, report.Results, 2)
	assert.Equal(t, syncerr.Config, report.Results[0].ErrorKind)
	assert.Equal(t, Created, report.Results[1].Outcome)
}

func TestRunDryRun(t *testing.T) {
	wiki := newFakeWiki()
	o := NewOrchestrator(&fakeSource{docs: map[string]string{"a.md": "# A"}}, wiki, Options{DryRun: true, Log: zerolog.Nop()})

	report := o.Run(context.Background(), mappingsFor("a.md"))
	assert.True(t, report.DryRun)
	assert.Equal(t, Created, report.Results[0].Outcome)
	assert.Zero(t, wiki.creates)
}
