package gitlab

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/rs/zerolog"

    "github.com/owentl/gitlab-prometheus/internal/config"
)

func testClient(url string) *Client {
    cfg := config.Config{GitLabURL: url, GitLabToken: "token", HTTPTimeout: 5 * time.Second}
    return NewClient(cfg, zerolog.Nop())
}

func TestIssues_ReadsPaginationHeaders(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if got := r.Header.Get("PRIVATE-TOKEN"); got != "token" {
            t.Errorf("missing auth header, got %q", got)
        }
        q := r.URL.Query()
        if q.Get("per_page") != "100" || q.Get("page") != "2" {
            t.Errorf("unexpected query: %s", r.URL.RawQuery)
        }
        if q.Get("labels") != "Core GS" || q.Get("iteration_title") != "Sprint 12" {
            t.Errorf("unexpected filter query: %s", r.URL.RawQuery)
        }
        w.Header().Set("X-Page", "2")
        w.Header().Set("X-Total-Pages", "3")
        w.Write([]byte(`[{"id": 7, "state": "opened", "labels": ["Core GS"]}]`))
    }))
    defer srv.Close()

    issues, paging, err := testClient(srv.URL).Issues(context.Background(), IssueFilter{
        Group: "42", Labels: "Core GS", IterationTitle: "Sprint 12", Page: 2,
    })
    if err != nil { t.Fatalf("Issues: %v", err) }
    if len(issues) != 1 || issues[0].ID != 7 { t.Fatalf("issues = %#v", issues) }
    if paging.Page != 2 || paging.TotalPages != 3 { t.Fatalf("paging = %#v", paging) }
}

func TestIssues_MissingPageHeaderFallsBackToTotalPages(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("X-Total-Pages", "1")
        w.Write([]byte(`[]`))
    }))
    defer srv.Close()

    _, paging, err := testClient(srv.URL).Issues(context.Background(), IssueFilter{Group: "42"})
    if err != nil { t.Fatalf("Issues: %v", err) }
    if paging.Page != 1 || paging.TotalPages != 1 {
        t.Fatalf("fallback paging = %#v, want 1/1", paging)
    }
}

func TestIssues_EmptyResultWithoutHeadersIsSinglePage(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Write([]byte(`[]`))
    }))
    defer srv.Close()

    issues, paging, err := testClient(srv.URL).Issues(context.Background(), IssueFilter{Group: "42"})
    if err != nil { t.Fatalf("Issues: %v", err) }
    if len(issues) != 0 { t.Fatalf("expected no issues, got %#v", issues) }
    if paging.Page != paging.TotalPages { t.Fatalf("degenerate page must terminate the loop: %#v", paging) }
}

func TestIssues_NonSuccessStatusFails(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, `{"message": "404 not found"}`, http.StatusNotFound)
    }))
    defer srv.Close()

    if _, _, err := testClient(srv.URL).Issues(context.Background(), IssueFilter{Group: "42"}); err == nil {
        t.Fatalf("expected error for non-2xx response")
    }
}

func TestIssues_MalformedBodyFails(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Write([]byte(`{"not": "a list"`))
    }))
    defer srv.Close()

    if _, _, err := testClient(srv.URL).Issues(context.Background(), IssueFilter{Group: "42"}); err == nil {
        t.Fatalf("expected decode error")
    }
}

func TestIterations_ParsesDates(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Query().Get("state") != "current" { t.Errorf("unexpected query: %s", r.URL.RawQuery) }
        w.Write([]byte(`[{"id": 1, "title": "Sprint 12", "start_date": "2026-08-24", "due_date": "2026-09-06"}]`))
    }))
    defer srv.Close()

    iters, err := testClient(srv.URL).Iterations(context.Background(), "42", "current")
    if err != nil { t.Fatalf("Iterations: %v", err) }
    if len(iters) != 1 || iters[0].Title != "Sprint 12" || iters[0].StartDate != "2026-08-24" {
        t.Fatalf("iterations = %#v", iters)
    }
}

func TestLabelEvents_UsesSelfLink(t *testing.T) {
    var gotPath string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        gotPath = r.URL.Path
        w.Write([]byte(`[{"action": "add", "label": {"name": "Dev GS::Done"}, "user": {"name": "A"}},
                        {"action": "add", "label": null, "user": {"name": "B"}}]`))
    }))
    defer srv.Close()

    events, err := testClient(srv.URL).LabelEvents(context.Background(), srv.URL+"/projects/1/issues/9")
    if err != nil { t.Fatalf("LabelEvents: %v", err) }
    if gotPath != "/projects/1/issues/9/resource_label_events" { t.Fatalf("path = %q", gotPath) }
    if len(events) != 2 || events[0].Label.Name != "Dev GS::Done" || events[1].Label != nil {
        t.Fatalf("events = %#v", events)
    }
}
