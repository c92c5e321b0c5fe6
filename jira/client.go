// Package jira is a minimal Jira Cloud REST v3 client covering the
// operations the pipeline needs: user lookup, issue creation and
// duplicate detection.
package jira

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

	"github.com/nexxia-ai/meetingflow/ai"
	"github.com/nexxia-ai/meetingflow/retry"
)

// ErrNotConfigured is returned when the client is missing credentials.
var ErrNotConfigured = errors.New("jira client not configured")

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// issueTypeFallbacks is the preference order when the requested issue
// type does not exist in the target project.
var issueTypeFallbacks = []string{"Story", "Bug", "Sub-task"}

// Client talks to a single Jira Cloud site using basic auth.
// Account IDs and project issue types are cached per client so repeated
// ticket creation in one run does not re-query the same users.
type Client struct {
	BaseURL    string
	Email      string
	APIToken   string
	ProjectKey string

	httpClient *http.Client
	policy     retry.Policy

	mu         sync.Mutex
	accountIDs map[string]string
	issueTypes []string
}

// User is a Jira user as returned by the user search endpoint.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Issue is the subset of a created or fetched issue the pipeline uses.
type Issue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// CreateIssueRequest describes a new issue. Summary is required,
// everything else is optional. DueDate must be YYYY-MM-DD; other
// values are dropped with a warning rather than failing the create.
type CreateIssueRequest struct {
	Summary      string
	Description  string
	IssueType    string
	AssigneeName string
	DueDate      string
	Labels       []string
	Priority     string
}

func NewClient(baseURL, email, apiToken, projectKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Email:      email,
		APIToken:   apiToken,
		ProjectKey: projectKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     retry.DefaultPolicy(),
		accountIDs: make(map[string]string),
	}
}

// IsConfigured reports whether the client has everything it needs to
// make API calls. Unconfigured clients cause the ticket stage to be
// skipped rather than failed.
func (c *Client) IsConfigured() bool {
	return c != nil && c.BaseURL != "" && c.Email != "" && c.APIToken != "" && c.ProjectKey != ""
}

// SearchUsers queries the user search endpoint by display name or email.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("maxResults", "10")

	var users []User
	if err := c.get(ctx, "/rest/api/3/user/search?"+q.Encode(), &users); err != nil {
		return nil, fmt.Errorf("search users %q: %w", query, err)
	}
	return users, nil
}

// AccountIDByName resolves a display name to an account ID, preferring
// an exact display-name match and falling back to the first search
// result. Results are cached. A missing user is not an error: the
// caller creates the issue unassigned.
func (c *Client) AccountIDByName(ctx context.Context, displayName string) (string, error) {
	c.mu.Lock()
	if id, ok := c.accountIDs[displayName]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	users, err := c.SearchUsers(ctx, displayName)
	if err != nil {
		return "", err
	}

	for _, u := range users {
		if strings.EqualFold(u.DisplayName, displayName) {
			c.cacheAccountID(displayName, u.AccountID)
			return u.AccountID, nil
		}
	}
	if len(users) > 0 {
		slog.Info("using approximate jira user match", "query", displayName, "matched", users[0].DisplayName)
		c.cacheAccountID(displayName, users[0].AccountID)
		return users[0].AccountID, nil
	}

	slog.Warn("no jira user found", "displayName", displayName)
	return "", nil
}

func (c *Client) cacheAccountID(name, id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.accountIDs[name] = id
	c.mu.Unlock()
}

// IssueTypes returns the issue type names available in the project.
func (c *Client) IssueTypes(ctx context.Context) ([]string, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	c.mu.Lock()
	if c.issueTypes != nil {
		types := c.issueTypes
		c.mu.Unlock()
		return types, nil
	}
	c.mu.Unlock()

	var project struct {
		IssueTypes []struct {
			Name string `json:"name"`
		} `json:"issueTypes"`
	}
	if err := c.get(ctx, "/rest/api/3/project/"+c.ProjectKey, &project); err != nil {
		return nil, fmt.Errorf("get project %s: %w", c.ProjectKey, err)
	}

	types := make([]string, 0, len(project.IssueTypes))
	for _, it := range project.IssueTypes {
		types = append(types, it.Name)
	}
	c.mu.Lock()
	c.issueTypes = types
	c.mu.Unlock()
	return types, nil
}

// ValidIssueType returns preferred if the project supports it, then
// walks the fallback order, then takes whatever the project offers.
// If the type list cannot be fetched the preferred name is returned
// unchanged so the create call surfaces the real API error.
func (c *Client) ValidIssueType(ctx context.Context, preferred string) string {
	types, err := c.IssueTypes(ctx)
	if err != nil || len(types) == 0 {
		return preferred
	}
	for _, it := range types {
		if strings.EqualFold(it, preferred) {
			return it
		}
	}
	for _, fb := range issueTypeFallbacks {
		for _, it := range types {
			if strings.EqualFold(it, fb) {
				slog.Info("issue type unavailable, using fallback", "preferred", preferred, "using", it)
				return it
			}
		}
	}
	return types[0]
}

// adf types model the Atlassian Document Format fragment used for
// plain-text issue descriptions.
type adfDoc struct {
	Type    string     `json:"type"`
	Version int        `json:"version"`
	Content []adfBlock `json:"content"`
}

type adfBlock struct {
	Type    string    `json:"type"`
	Content []adfText `json:"content"`
}

type adfText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func adfParagraph(text string) adfDoc {
	return adfDoc{
		Type:    "doc",
		Version: 1,
		Content: []adfBlock{{
			Type:    "paragraph",
			Content: []adfText{{Type: "text", Text: text}},
		}},
	}
}

// CreateIssue creates a new issue in the configured project.
func (c *Client) CreateIssue(ctx context.Context, req CreateIssueRequest) (*Issue, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	issueType := req.IssueType
	if issueType == "" {
		issueType = "Task"
	}

	fields := map[string]any{
		"project":   map[string]string{"key": c.ProjectKey},
		"summary":   req.Summary,
		"issuetype": map[string]string{"name": c.ValidIssueType(ctx, issueType)},
	}
	if req.Description != "" {
		fields["description"] = adfParagraph(req.Description)
	}
	if req.AssigneeName != "" {
		accountID, err := c.AccountIDByName(ctx, req.AssigneeName)
		if err != nil {
			return nil, err
		}
		if accountID != "" {
			fields["assignee"] = map[string]string{"accountId": accountID}
		} else {
			slog.Warn("assignee not found, creating unassigned issue", "assignee", req.AssigneeName)
		}
	}
	if req.DueDate != "" {
		if isoDateRe.MatchString(req.DueDate) {
			fields["duedate"] = req.DueDate
		} else {
			slog.Warn("invalid due date format, skipping", "dueDate", req.DueDate)
		}
	}
	if len(req.Labels) > 0 {
		fields["labels"] = req.Labels
	}
	if req.Priority != "" {
		fields["priority"] = map[string]string{"name": req.Priority}
	}

	var issue Issue
	if err := c.post(ctx, "/rest/api/3/issue", map[string]any{"fields": fields}, &issue); err != nil {
		return nil, fmt.Errorf("create issue %q: %w", req.Summary, err)
	}
	slog.Info("created jira issue", "key", issue.Key)
	return &issue, nil
}

// FindDuplicate searches the project for an open issue that already
// covers the task: same summary after normalization and the same
// assignee display name. It returns the existing issue key when found.
func (c *Client) FindDuplicate(ctx context.Context, summary, assigneeName string) (string, bool, error) {
	if !c.IsConfigured() {
		return "", false, ErrNotConfigured
	}

	jql := fmt.Sprintf(`project = %q AND summary ~ %q AND statusCategory != Done`, c.ProjectKey, jqlEscape(summary))
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", "20")
	q.Set("fields", "summary,assignee")

	var result struct {
		Issues []struct {
			Key    string `json:"key"`
			Fields struct {
				Summary  string `json:"summary"`
				Assignee *User  `json:"assignee"`
			} `json:"fields"`
		} `json:"issues"`
	}
	if err := c.get(ctx, "/rest/api/3/search?"+q.Encode(), &result); err != nil {
		return "", false, fmt.Errorf("duplicate search %q: %w", summary, err)
	}

	want := normalizeSummary(summary)
	for _, issue := range result.Issues {
		if normalizeSummary(issue.Fields.Summary) != want {
			continue
		}
		existing := ""
		if issue.Fields.Assignee != nil {
			existing = issue.Fields.Assignee.DisplayName
		}
		if strings.EqualFold(existing, assigneeName) {
			return issue.Key, true, nil
		}
	}
	return "", false, nil
}

// TestConnection verifies the credentials against the myself endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	var me struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.get(ctx, "/rest/api/3/myself", &me); err != nil {
		return fmt.Errorf("jira connection test: %w", err)
	}
	slog.Info("jira connection ok", "user", me.DisplayName)
	return nil
}

// normalizeSummary lowercases and collapses whitespace so duplicate
// detection ignores cosmetic differences only.
func normalizeSummary(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// jqlEscape strips characters that would terminate a quoted JQL string.
func jqlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, " ")
	return strings.ReplaceAll(s, `"`, " ")
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// do performs one authenticated request with retries. Server errors and
// rate limits are retried, other API errors fail immediately.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.policy.Do(ctx, "jira "+method+" "+path, func() error {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		var statusErr ai.StatusError
		if errors.As(err, &statusErr) {
			if statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests {
				return retry.Temporary(err)
			}
			return err
		}
		return retry.Temporary(err)
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
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
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ai.StatusError{
			StatusCode:   resp.StatusCode,
			Status:       resp.Status,
			ErrorMessage: string(data),
		}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
