// Package confluence is a small client for the Confluence REST content API
// using the storage body representation.
package confluence

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

const (
	expand = "version,body.storage,ancestors,space"

	// maxErrorBody bounds how much of an unexpected response is quoted.
	maxErrorBody = 500
	// maxResponse bounds how much of any response is read.
	maxResponse = 32 << 20
)

// Auth holds Confluence credentials. With a username the client uses Basic
// auth (Atlassian Cloud API tokens); without one the token is sent as a
// Bearer personal access token.
type Auth struct {
	Username string
	Token    string
}

// Client is a Confluence REST API v1 client.
type Client struct {
	baseURL    string
	authHeader string
	secrets    []string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for baseURL. httpClient carries the request
// timeout; nil uses http.DefaultClient.
func NewClient(baseURL string, auth Auth, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        zerolog.Nop(),
	}
	if auth.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Token))
		c.authHeader = "Basic " + creds
		c.secrets = []string{auth.Token, creds}
	} else if auth.Token != "" {
		c.authHeader = "Bearer " + auth.Token
		c.secrets = []string{auth.Token}
	}
	return c
}

// WithLogger returns the client logging failed requests to log.
func (c *Client) WithLogger(log zerolog.Logger) *Client {
	c.log = log.With().Str("component", "confluence").Logger()
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// PageURL returns the browser URL of a page.
func (c *Client) PageURL(id string) string {
	return fmt.Sprintf("%s/pages/viewpage.action?pageId=%s", c.baseURL, url.QueryEscape(id))
}

// FindPages returns the pages titled title in space. A title is unique per
// space in Confluence, so more than one result indicates an inconsistency
// the caller must handle.
func (c *Client) FindPages(ctx context.Context, spaceKey, title string) ([]Page, error) {
	const op = "find page"
	q := url.Values{}
	q.Set("spaceKey", spaceKey)
	q.Set("title", title)
	q.Set("type", "page")
	q.Set("expand", expand)

	var list contentList
	err := c.do(ctx, op, http.MethodGet, c.baseURL+"/rest/api/content?"+q.Encode(), nil, &list)
	if err != nil {
		if syncerr.Is(err, syncerr.NotFound) {
			if strings.Contains(err.Error(), "No space with key") {
				return nil, syncerr.WithStatus(syncerr.API, op, http.StatusNotFound,
					fmt.Errorf("space %q does not exist; check confluence_space", spaceKey))
			}
			return nil, nil
		}
		return nil, err
	}
	pages := make([]Page, 0, len(list.Results))
	for _, r := range list.Results {
		pages = append(pages, r.page())
	}
	return pages, nil
}

// GetPage fetches a page by id. A missing page is a NotFound error.
func (c *Client) GetPage(ctx context.Context, id string) (*Page, error) {
	var out content
	u := fmt.Sprintf("%s/rest/api/content/%s?expand=%s", c.baseURL, url.PathEscape(id), expand)
	if err := c.do(ctx, "get page", http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	p := out.page()
	return &p, nil
}

// CreatePage creates a page, as a child of in.ParentID when set.
func (c *Client) CreatePage(ctx context.Context, in PageInput) (*Page, error) {
	payload := content{
		Type:  "page",
		Title: in.Title,
		Space: &spaceRef{Key: in.SpaceKey},
		Body:  &body{Storage: storage{Value: in.Body, Representation: "storage"}},
	}
	if in.ParentID != "" {
		payload.Ancestors = []ancestor{{ID: in.ParentID}}
	}

	var out content
	if err := c.do(ctx, "create page", http.MethodPost, c.baseURL+"/rest/api/content", payload, &out); err != nil {
		return nil, err
	}
	p := out.page()
	if p.ParentID == "" {
		p.ParentID = in.ParentID
	}
	return &p, nil
}

// UpdatePage replaces the title, body and parent of page id. number must be
// the observed version plus one; a stale number fails with VersionConflict.
func (c *Client) UpdatePage(ctx context.Context, id string, in PageInput, number int) (*Page, error) {
	payload := content{
		ID:      id,
		Type:    "page",
		Title:   in.Title,
		Version: &version{Number: number, Message: in.Message},
		Body:    &body{Storage: storage{Value: in.Body, Representation: "storage"}},
	}
	if in.SpaceKey != "" {
		payload.Space = &spaceRef{Key: in.SpaceKey}
	}
	if in.ParentID != "" {
		payload.Ancestors = []ancestor{{ID: in.ParentID}}
	}

	var out content
	u := fmt.Sprintf("%s/rest/api/content/%s", c.baseURL, url.PathEscape(id))
	if err := c.do(ctx, "update page", http.MethodPut, u, payload, &out); err != nil {
		return nil, err
	}
	p := out.page()
	if p.ParentID == "" {
		p.ParentID = in.ParentID
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, op, method, u string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return syncerr.Wrap(syncerr.Unknown, op, fmt.Errorf("marshalling payload: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return syncerr.Wrap(syncerr.Config, op, fmt.Errorf("creating request: %w", err))
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if msg := c.redact(err.Error()); msg != err.Error() {
			err = errors.New(msg)
		}
		c.log.Warn().Str("op", op).Err(err).Msg("confluence request failed")
		return syncerr.Wrap(syncerr.Transport, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return syncerr.Wrap(syncerr.Transport, op, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("confluence request failed")
		return c.statusError(op, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return syncerr.WithStatus(syncerr.API, op, resp.StatusCode,
			fmt.Errorf("unexpected content type %q (is the URL behind a login page?): %s",
				resp.Header.Get("Content-Type"), c.snippet(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return syncerr.WithStatus(syncerr.API, op, resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (c *Client) statusError(op string, status int, data []byte) error {
	msg := c.snippet(data)
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Message != "" {
		msg = c.redact(eb.Message)
	}

	kind := syncerr.API
	switch status {
	case http.StatusConflict:
		kind = syncerr.VersionConflict
	case http.StatusNotFound:
		kind = syncerr.NotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		msg = "authentication failed, check the Confluence username and token: " + msg
	}
	return syncerr.WithStatus(kind, op, status, fmt.Errorf("Confluence API returned %d: %s", status, msg))
}

// snippet quotes at most maxErrorBody bytes of a response with any
// credential removed.
func (c *Client) snippet(data []byte) string {
	if len(data) > maxErrorBody {
		data = data[:maxErrorBody]
		for len(data) > 0 && !utf8.Valid(data) {
			data = data[:len(data)-1]
		}
	}
	return c.redact(strings.TrimSpace(string(data)))
}

func (c *Client) redact(s string) string {
	for _, secret := range c.secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "[redacted]")
		}
	}
	return s
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func (c *Client) setHeaders(req *http.Request) {
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
