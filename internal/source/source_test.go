package source

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

func TestNormalizeRepo(t *testing.T) {
	tests := map[string]string{
		"org/repo":                          "org/repo",
		" org/repo ":                        "org/repo",
		"https://github.com/org/repo":       "org/repo",
		"https://github.com/org/repo.git":   "org/repo",
		"http://github.com/org/repo/":       "org/repo",
		"https://gitlab.example.com/org/re": "https://gitlab.example.com/org/re",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRepo(in), in)
	}
}

func TestBlobSHA(t *testing.T) {
	// git hash-object of an empty file and of "hello\n"
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", BlobSHA(nil))
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", BlobSHA([]byte("hello\n")))
}

func TestGitHubFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo/contents/docs/my%20file.md", r.URL.EscapedPath())
		assert.Equal(t, "dev", r.URL.Query().Get("ref"))
		assert.Equal(t, "token gh-secret", r.Header.Get("Authorization"))
		encoded := base64.StdEncoding.EncodeToString([]byte("# Hello\n"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"file","encoding":"base64","sha":"abc123","content":"` +
			encoded[:4] + `\n` + encoded[4:] + `"}`))
	}))
	defer srv.Close()

	gh := NewGitHub(srv.URL, "gh-secret", srv.Client())
	got, err := gh.Fetch(context.Background(), "org/repo", "docs/my file.md", "dev")
	require.NoError(t, err)
	assert.Equal(t, "# Hello\n", string(got.Data))
	assert.Equal(t, "abc123", got.Fingerprint)
}

func TestGitHubFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	_, err := NewGitHub(srv.URL, "", srv.Client()).Fetch(context.Background(), "org/repo", "missing.md", "main")
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.NotFound))
}

func TestGitHubFetchLargeFile(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/raw/big.md" {
			_, _ = w.Write([]byte("big body"))
			return
		}
		_, _ = w.Write([]byte(`{"type":"file","encoding":"none","content":"","sha":"s1","download_url":"` + srvURL + `/raw/big.md"}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	got, err := NewGitHub(srv.URL, "", srv.Client()).Fetch(context.Background(), "org/repo", "big.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "big body", string(got.Data))
	assert.Equal(t, "s1", got.Fingerprint)
}

func TestGitHubList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo/git/trees/main", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		_, _ = w.Write([]byte(`{"tree":[
			{"path":"Docs","type":"tree"},
			{"path":"Docs/b.md","type":"blob"},
			{"path":"Docs/README.md","type":"blob"},
			{"path":"Docs/img.png","type":"blob"},
			{"path":"Docs/sub/c.MD","type":"blob"},
			{"path":"Other/d.md","type":"blob"}
		],"truncated":false}`))
	}))
	defer srv.Close()

	paths, err := NewGitHub(srv.URL, "", srv.Client()).List(context.Background(), "org/repo", "Docs/", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"Docs/README.md", "Docs/b.md", "Docs/sub/c.MD"}, paths)
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Docs", "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Docs", ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Docs", "a.md"), []byte("hello\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Docs", "sub", "b.md"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Docs", "sub", "c.txt"), []byte("c"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Docs", ".hidden", "d.md"), []byte("d"), 0o644))

	d := NewDir(root)
	ctx := context.Background()

	got, err := d.Fetch(ctx, "org/repo", "Docs/a.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", got.Fingerprint)

	_, err = d.Fetch(ctx, "org/repo", "Docs/missing.md", "main")
	assert.True(t, syncerr.Is(err, syncerr.NotFound))

	_, err = d.Fetch(ctx, "org/repo", "../etc/passwd", "main")
	assert.True(t, syncerr.Is(err, syncerr.Config))

	paths, err := d.List(ctx, "org/repo", "Docs", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"Docs/a.md", "Docs/sub/b.md"}, paths)
}

func TestRegistryRoutesByRepo(t *testing.T) {
	local := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(local, "x.md"), []byte("local"), 0o644))

	reg := NewRegistry(nil)
	reg.Register("https://github.com/org/local.git", NewDir(local))

	got, err := reg.Fetch(context.Background(), "org/local", "x.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "local", string(got.Data))

	_, err = reg.Fetch(context.Background(), "org/other", "x.md", "main")
	assert.True(t, syncerr.Is(err, syncerr.Config))
}
