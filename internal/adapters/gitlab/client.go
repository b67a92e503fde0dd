/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package gitlab

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/rs/zerolog"

    "github.com/owentl/gitlab-prometheus/internal/config"
    "github.com/owentl/gitlab-prometheus/internal/domain"
)

type Client struct {
    baseURL string
    token   string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.GitLabURL,
        token:   cfg.GitLabToken,
        http:    &http.Client{Timeout: cfg.HTTPTimeout},
        log:     log,
    }
}

// IssueFilter describes one page of a group issue query.
type IssueFilter struct {
    Group          string
    Labels         string
    NotLabels      string
    IterationTitle string
    State          string
    PerPage        int
    Page           int
}

// Paging carries the page-number pagination metadata GitLab returns in
// response headers.
type Paging struct {
    Page       int
    TotalPages int
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, error) {
    if c.baseURL == "" { return nil, errors.New("gitlab: empty baseURL") }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
        if err != nil { return nil, err }
        if c.token != "" { req.Header.Set("PRIVATE-TOKEN", c.token) }
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            if resp.StatusCode < 300 { return resp, nil }
            b, _ := io.ReadAll(resp.Body)
            resp.Body.Close()
            // retry on 429/5xx
            if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                lastErr = fmt.Errorf("gitlab api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
            } else {
                return nil, fmt.Errorf("gitlab api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
            }
        }
        // backoff
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
        }
    }
    return nil, lastErr
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
    resp, err := c.do(ctx, u)
    if err != nil { return err }
    defer resp.Body.Close()
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return fmt.Errorf("gitlab: decode %s: %w", u, err)
    }
    return nil
}

// Issues fetches one page of the filtered group issue list. Pagination
// metadata comes from the X-Page and X-Total-Pages headers; when X-Page is
// missing the total-pages header stands in for the current page so the
// caller's loop still terminates.
func (c *Client) Issues(ctx context.Context, f IssueFilter) ([]domain.Issue, Paging, error) {
    if f.Group == "" { return nil, Paging{}, errors.New("gitlab: empty group") }
    q := url.Values{}
    if f.Labels != "" { q.Set("labels", f.Labels) }
    if f.NotLabels != "" { q.Set("not[labels]", f.NotLabels) }
    if f.IterationTitle != "" { q.Set("iteration_title", f.IterationTitle) }
    if f.State != "" { q.Set("state", f.State) }
    perPage := f.PerPage
    if perPage <= 0 { perPage = 100 }
    q.Set("per_page", strconv.Itoa(perPage))
    page := f.Page
    if page <= 0 { page = 1 }
    q.Set("page", strconv.Itoa(page))

    u := c.apiURL("/groups/"+url.PathEscape(f.Group)+"/issues", q)
    resp, err := c.do(ctx, u)
    if err != nil { return nil, Paging{}, err }
    defer resp.Body.Close()

    var issues []domain.Issue
    if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
        return nil, Paging{}, fmt.Errorf("gitlab: decode issues page %d: %w", page, err)
    }

    totalPages := headerInt(resp, "X-Total-Pages", 1)
    if totalPages < 1 { totalPages = 1 }
    cur := headerInt(resp, "X-Page", totalPages)
    if cur < 1 { cur = totalPages }
    c.log.Debug().Int("page", cur).Int("total_pages", totalPages).Int("issues", len(issues)).Msg("issues page fetched")
    return issues, Paging{Page: cur, TotalPages: totalPages}, nil
}

// Iterations lists group iterations, optionally filtered by state
// ("current", "opened", "closed").
func (c *Client) Iterations(ctx context.Context, group, state string) ([]domain.Iteration, error) {
    if group == "" { return nil, errors.New("gitlab: empty group") }
    q := url.Values{}
    if state != "" { q.Set("state", state) }
    u := c.apiURL("/groups/"+url.PathEscape(group)+"/iterations", q)
    var out []domain.Iteration
    if err := c.getJSON(ctx, u, &out); err != nil { return nil, err }
    return out, nil
}

// Releases lists a project's releases newest first.
func (c *Client) Releases(ctx context.Context, projectID string) ([]domain.Release, error) {
    if projectID == "" { return nil, errors.New("gitlab: empty project id") }
    q := url.Values{}
    q.Set("order_by", "released_at")
    q.Set("sort", "desc")
    u := c.apiURL("/projects/"+url.PathEscape(projectID)+"/releases", q)
    var out []domain.Release
    if err := c.getJSON(ctx, u, &out); err != nil { return nil, err }
    return out, nil
}

// LabelEvents fetches the resource label events for one issue via its
// self link, as returned in the issue payload.
func (c *Client) LabelEvents(ctx context.Context, selfURL string) ([]domain.LabelEvent, error) {
    if selfURL == "" { return nil, errors.New("gitlab: empty issue link") }
    var out []domain.LabelEvent
    if err := c.getJSON(ctx, selfURL+"/resource_label_events", &out); err != nil { return nil, err }
    return out, nil
}

func headerInt(resp *http.Response, key string, def int) int {
    v := resp.Header.Get(key)
    if v == "" { return def }
    n, err := strconv.Atoi(v)
    if err != nil { return def }
    return n
}
