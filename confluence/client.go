// Package confluence is a Confluence Cloud REST v1 client for
// publishing meeting pages. Cloud sites answer some misconfigured
// requests with HTML login pages instead of JSON errors, so every call
// degrades to a FallbackError instead of failing on a decode.
package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nexxia-ai/meetingflow/retry"
)

// ErrNotConfigured is returned when the client is missing credentials.
var ErrNotConfigured = errors.New("confluence client not configured")

const snippetLimit = 300

var (
	htmlTitleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	htmlTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
)

// FallbackError describes a response that was not usable JSON: an HTML
// login or error page, or a JSON error body with a statusCode field.
type FallbackError struct {
	StatusCode int
	Title      string
	Snippet    string
}

func (e FallbackError) Error() string {
	return fmt.Sprintf("confluence fallback (status %d): %s: %s", e.StatusCode, e.Title, e.Snippet)
}

// Page identifies a created or updated page.
type Page struct {
	ID      string
	URL     string
	Title   string
	Version int
	Action  string
}

// Client publishes pages to a single space. BaseURL may be given with
// or without the trailing /wiki segment.
type Client struct {
	BaseURL  string
	Email    string
	APIToken string
	SpaceKey string

	httpClient *http.Client
	policy     retry.Policy

	mu            sync.Mutex
	spaceVerified bool
}

func NewClient(baseURL, email, apiToken, spaceKey string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasSuffix(base, "/wiki") {
		base += "/wiki"
	}
	return &Client{
		BaseURL:    base,
		Email:      email,
		APIToken:   apiToken,
		SpaceKey:   spaceKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		policy:     retry.DefaultPolicy(),
	}
}

// IsConfigured reports whether the client can make API calls.
// Unconfigured clients cause the publish stage to be skipped.
func (c *Client) IsConfigured() bool {
	return c != nil && c.BaseURL != "" && c.Email != "" && c.APIToken != "" && c.SpaceKey != ""
}

// VerifySpaceAccess checks that the credentials can read the target
// space. The first success is cached for the lifetime of the client.
func (c *Client) VerifySpaceAccess(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	c.mu.Lock()
	verified := c.spaceVerified
	c.mu.Unlock()
	if verified {
		return nil
	}

	var space struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, "/space/"+c.SpaceKey, nil, &space); err != nil {
		return fmt.Errorf("verify space %s: %w", c.SpaceKey, err)
	}

	slog.Info("verified confluence space access", "space", c.SpaceKey, "name", space.Name)
	c.mu.Lock()
	c.spaceVerified = true
	c.mu.Unlock()
	return nil
}

// FindPageByTitle returns the ID of the page with the given title in
// the configured space, or "" when no such page exists.
func (c *Client) FindPageByTitle(ctx context.Context, title string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	q := url.Values{}
	q.Set("spaceKey", c.SpaceKey)
	q.Set("title", title)
	q.Set("type", "page")
	q.Set("limit", "1")

	var result struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/content?"+q.Encode(), nil, &result); err != nil {
		return "", fmt.Errorf("find page %q: %w", title, err)
	}
	if len(result.Results) == 0 {
		return "", nil
	}
	return result.Results[0].ID, nil
}

// pageVersion returns the current version of a page, defaulting to 1
// when the lookup fails so an update still has a number to bump.
func (c *Client) pageVersion(ctx context.Context, pageID string) int {
	var page struct {
		Version struct {
			Number int `json:"number"`
		} `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/content/"+pageID+"?expand=version", nil, &page); err != nil {
		slog.Warn("could not read page version, assuming 1", "pageID", pageID, "error", err)
		return 1
	}
	if page.Version.Number == 0 {
		return 1
	}
	return page.Version.Number
}

func (c *Client) pageTitle(ctx context.Context, pageID string) string {
	var page struct {
		Title string `json:"title"`
	}
	if err := c.do(ctx, http.MethodGet, "/content/"+pageID, nil, &page); err != nil || page.Title == "" {
		return "Untitled"
	}
	return page.Title
}

type contentPayload struct {
	Type    string      `json:"type"`
	Title   string      `json:"title"`
	Space   spaceRef    `json:"space"`
	Version *versionRef `json:"version,omitempty"`
	Body    storageBody `json:"body"`
}

type spaceRef struct {
	Key string `json:"key"`
}

type versionRef struct {
	Number int `json:"number"`
}

type storageBody struct {
	Storage storageValue `json:"storage"`
}

type storageValue struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type contentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// CreatePage creates a new page in the configured space.
func (c *Client) CreatePage(ctx context.Context, title, html string) (*Page, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.VerifySpaceAccess(ctx); err != nil {
		return nil, err
	}

	payload := contentPayload{
		Type:  "page",
		Title: title,
		Space: spaceRef{Key: c.SpaceKey},
		Body:  storageBody{Storage: storageValue{Value: html, Representation: "storage"}},
	}

	var resp contentResponse
	if err := c.do(ctx, http.MethodPost, "/content", payload, &resp); err != nil {
		return nil, fmt.Errorf("create page %q: %w", title, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("create page %q: response missing id", title)
	}

	page := &Page{ID: resp.ID, URL: c.pageURL(resp.ID, resp.Links.WebUI), Title: title, Version: 1}
	slog.Info("created confluence page", "title", title, "pageID", page.ID, "url", page.URL)
	return page, nil
}

// UpdatePage replaces the body of an existing page, bumping its
// version. An empty title keeps the page's current title.
func (c *Client) UpdatePage(ctx context.Context, pageID, title, html string) (*Page, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	version := c.pageVersion(ctx, pageID)
	if title == "" {
		title = c.pageTitle(ctx, pageID)
	}

	payload := contentPayload{
		Type:    "page",
		Title:   title,
		Space:   spaceRef{Key: c.SpaceKey},
		Version: &versionRef{Number: version + 1},
		Body:    storageBody{Storage: storageValue{Value: html, Representation: "storage"}},
	}

	var resp contentResponse
	if err := c.do(ctx, http.MethodPut, "/content/"+pageID, payload, &resp); err != nil {
		return nil, fmt.Errorf("update page %s: %w", pageID, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("update page %s: response missing id", pageID)
	}

	page := &Page{ID: pageID, URL: c.pageURL(pageID, resp.Links.WebUI), Title: resp.Title, Version: version + 1}
	if page.Title == "" {
		page.Title = title
	}
	slog.Info("updated confluence page", "title", page.Title, "pageID", pageID, "version", page.Version)
	return page, nil
}

// CreateOrUpdatePage updates the page with the same title when one
// exists and creates it otherwise. The returned Page.Action is
// "created" or "updated".
func (c *Client) CreateOrUpdatePage(ctx context.Context, title, html string) (*Page, error) {
	existingID, err := c.FindPageByTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	if existingID != "" {
		page, err := c.UpdatePage(ctx, existingID, title, html)
		if err != nil {
			return nil, err
		}
		page.Action = "updated"
		return page, nil
	}

	page, err := c.CreatePage(ctx, title, html)
	if err != nil {
		return nil, err
	}
	page.Action = "created"
	return page, nil
}

func (c *Client) pageURL(pageID, webui string) string {
	if webui != "" {
		return c.BaseURL + webui
	}
	return fmt.Sprintf("%s/spaces/%s/pages/%s", c.BaseURL, c.SpaceKey, pageID)
}

// do performs one authenticated API request. Transport and server
// errors are retried; non-JSON responses and 4xx error payloads
// become FallbackError.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	return c.policy.Do(ctx, "confluence "+method+" "+endpoint, func() error {
		err := c.doOnce(ctx, method, endpoint, body, out)
		var fallback FallbackError
		if err != nil && !errors.As(err, &fallback) {
			return retry.Temporary(err)
		}
		return err
	})
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/rest/api"+endpoint, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.Email, c.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		// Error bodies carry a statusCode field even on HTTP 200
		// behind some proxies, so inspect the body as well as the
		// HTTP status before decoding into the caller's type.
		var probe struct {
			StatusCode int    `json:"statusCode"`
			Message    string `json:"message"`
		}
		status := resp.StatusCode
		message := ""
		if err := json.Unmarshal(data, &probe); err == nil {
			if probe.StatusCode >= 400 {
				status = probe.StatusCode
			}
			message = probe.Message
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			slog.Warn("confluence server error", "status", status, "message", message)
			return fmt.Errorf("confluence server error (status %d): %s", status, message)
		}
		if status >= 400 {
			slog.Warn("confluence api error", "status", status, "message", message)
			return FallbackError{
				StatusCode: status,
				Title:      fmt.Sprintf("Error %d", status),
				Snippet:    message,
			}
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	fallback := htmlFallback(resp.StatusCode, string(data))
	slog.Warn("confluence returned non-json response", "status", resp.StatusCode, "title", fallback.Title)
	return fallback
}

// htmlFallback extracts the title and a text snippet from an HTML body.
func htmlFallback(statusCode int, html string) FallbackError {
	title := "No title"
	if m := htmlTitleRe.FindStringSubmatch(html); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			title = t
		}
	}

	text := htmlTagRe.ReplaceAllString(html, " ")
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		text = "No response body"
	}
	if len(text) > snippetLimit {
		text = text[:snippetLimit]
	}

	return FallbackError{StatusCode: statusCode, Title: title, Snippet: text}
}
