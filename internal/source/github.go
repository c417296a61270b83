package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// GitHub reads documents through the GitHub REST API.
type GitHub struct {
	apiURL     string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewGitHub creates a GitHub source. An empty apiURL uses DefaultGitHubAPI;
// an empty token sends anonymous requests.
func NewGitHub(apiURL, token string, httpClient *http.Client) *GitHub {
	if apiURL == "" {
		apiURL = DefaultGitHubAPI
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GitHub{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: httpClient,
		log:        zerolog.Nop(),
	}
}

// WithLogger returns the source logging failed requests to log.
func (g *GitHub) WithLogger(log zerolog.Logger) *GitHub {
	g.log = log.With().Str("component", "github").Logger()
	return g
}

type contentsResponse struct {
	Type        string `json:"type"`
	Encoding    string `json:"encoding"`
	Content     string `json:"content"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// Fetch implements Fetcher using the contents API.
func (g *GitHub) Fetch(ctx context.Context, repo, path, branch string) (Content, error) {
	const op = "fetch document"
	u := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", g.apiURL, repo, escapePath(path), url.QueryEscape(branch))

	var resp contentsResponse
	if err := g.get(ctx, op, u, &resp); err != nil {
		return Content{}, err
	}
	if resp.Type != "" && resp.Type != "file" {
		return Content{}, syncerr.New(syncerr.MalformedInput, op, "%s in %s is a %s, not a file", path, repo, resp.Type)
	}

	var data []byte
	switch resp.Encoding {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
		if err != nil {
			return Content{}, syncerr.Wrap(syncerr.MalformedInput, op, fmt.Errorf("decoding content: %w", err))
		}
		data = decoded
	case "none", "":
		// Files above 1 MB come without inline content.
		raw, err := g.download(ctx, op, resp.DownloadURL)
		if err != nil {
			return Content{}, err
		}
		data = raw
	default:
		return Content{}, syncerr.New(syncerr.MalformedInput, op, "unsupported content encoding %q", resp.Encoding)
	}

	fingerprint := resp.SHA
	if fingerprint == "" {
		fingerprint = BlobSHA(data)
	}
	return Content{Data: data, Fingerprint: fingerprint}, nil
}

// List implements Lister using the recursive git trees API.
func (g *GitHub) List(ctx context.Context, repo, dir, branch string) ([]string, error) {
	const op = "list documents"
	u := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", g.apiURL, repo, url.PathEscape(branch))

	var resp treeResponse
	if err := g.get(ctx, op, u, &resp); err != nil {
		return nil, err
	}
	if resp.Truncated {
		g.log.Warn().Str("repo", repo).Str("branch", branch).Msg("git tree listing truncated, some documents may be missing")
	}

	prefix := strings.Trim(dir, "/")
	if prefix != "" {
		prefix += "/"
	}
	var paths []string
	for _, entry := range resp.Tree {
		if entry.Type == "blob" && strings.HasPrefix(entry.Path, prefix) {
			paths = append(paths, entry.Path)
		}
	}
	return sortedMarkdown(paths), nil
}

func (g *GitHub) get(ctx context.Context, op, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return syncerr.Wrap(syncerr.Config, op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	g.setAuth(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return syncerr.Wrap(syncerr.Transport, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return g.statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return syncerr.WithStatus(syncerr.API, op, resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (g *GitHub) download(ctx context.Context, op, u string) ([]byte, error) {
	if u == "" {
		return nil, syncerr.New(syncerr.API, op, "response has neither content nor download URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, syncerr.Wrap(syncerr.Config, op, fmt.Errorf("creating request: %w", err))
	}
	g.setAuth(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, syncerr.Wrap(syncerr.Transport, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.statusError(op, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, syncerr.Wrap(syncerr.Transport, op, fmt.Errorf("reading response: %w", err))
	}
	return data, nil
}

func (g *GitHub) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
	msg := strings.TrimSpace(string(body))
	if g.token != "" {
		msg = strings.ReplaceAll(msg, g.token, "[redacted]")
	}
	g.log.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("github request failed")

	kind := syncerr.API
	if resp.StatusCode == http.StatusNotFound {
		kind = syncerr.NotFound
	}
	return syncerr.WithStatus(kind, op, resp.StatusCode, fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode, msg))
}

func (g *GitHub) setAuth(req *http.Request) {
	if g.token != "" {
		req.Header.Set("Authorization", "token "+g.token)
	}
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
