/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "regexp"
    "sort"
    "sync"
    "time"

    "github.com/rs/zerolog"

    "github.com/owentl/gitlab-prometheus/internal/adapters/gitlab"
    "github.com/owentl/gitlab-prometheus/internal/config"
    "github.com/owentl/gitlab-prometheus/internal/domain"
)

type GitLabClient interface {
    Issues(ctx context.Context, f gitlab.IssueFilter) ([]domain.Issue, gitlab.Paging, error)
    Iterations(ctx context.Context, group, state string) ([]domain.Iteration, error)
    Releases(ctx context.Context, projectID string) ([]domain.Release, error)
    LabelEvents(ctx context.Context, selfURL string) ([]domain.LabelEvent, error)
}

type Publisher interface {
    Publish(snap *domain.Snapshot)
}

type Service struct {
    cfg config.Config
    log zerolog.Logger
    gl  GitLabClient
    pub Publisher
    tax *Taxonomy

    // serializes compute-then-publish so concurrent scrapes cannot
    // interleave partial updates
    scrapeMu sync.Mutex

    teamsMu sync.RWMutex
    teams   []domain.Team

    iterMu     sync.Mutex
    iterTitle  string
    iterAt     time.Time

    snapMu sync.RWMutex
    snap   *domain.Snapshot

    now func() time.Time
}

func New(cfg config.Config, log zerolog.Logger, gl GitLabClient, pub Publisher, tax *Taxonomy) *Service {
    return &Service{cfg: cfg, log: log, gl: gl, pub: pub, tax: tax, teams: cfg.Teams, now: time.Now}
}

// SetTeams swaps the team list; used by the teams-file watcher. An in-flight
// scrape keeps the list it started with.
func (s *Service) SetTeams(teams []domain.Team) {
    s.teamsMu.Lock()
    s.teams = teams
    s.teamsMu.Unlock()
}

func (s *Service) teamList() []domain.Team {
    s.teamsMu.RLock()
    defer s.teamsMu.RUnlock()
    return s.teams
}

// Snapshot returns the last published snapshot, or nil before the first
// successful scrape.
func (s *Service) Snapshot() *domain.Snapshot {
    s.snapMu.RLock()
    defer s.snapMu.RUnlock()
    return s.snap
}

// locateIssues pulls every page of a filtered issue query. Page 1 reports
// the total page count; the loop walks forward until the two meet, which
// covers the single-page and empty cases without extra requests. Any page
// failing aborts the whole fetch.
func (s *Service) locateIssues(ctx context.Context, labels, iterationTitle, state string) ([]domain.Issue, error) {
    f := gitlab.IssueFilter{
        Group:          s.cfg.ParentGroup,
        Labels:         labels,
        NotLabels:      s.cfg.ExcludeLabels,
        IterationTitle: iterationTitle,
        State:          state,
        PerPage:        s.cfg.FetchPageSize,
        Page:           1,
    }
    issues, paging, err := s.gl.Issues(ctx, f)
    if err != nil { return nil, err }
    page := paging.Page
    for page != paging.TotalPages {
        page++
        f.Page = page
        more, _, err := s.gl.Issues(ctx, f)
        if err != nil { return nil, fmt.Errorf("page %d of %d: %w", page, paging.TotalPages, err) }
        issues = append(issues, more...)
    }
    s.log.Info().Int("issues", len(issues)).Str("iteration", iterationTitle).Str("labels", labels).Msg("issue fetch complete")
    return issues, nil
}

// currentIteration resolves the iteration whose date window contains today.
// When several match, the earliest start date wins; when none match the
// title resolves empty and downstream queries legitimately return nothing.
// The result is cached for IterationTTL; the cron job refreshes it early.
func (s *Service) currentIteration(ctx context.Context) string {
    s.iterMu.Lock()
    defer s.iterMu.Unlock()
    if s.iterTitle != "" && s.now().Sub(s.iterAt) < s.cfg.IterationTTL {
        return s.iterTitle
    }
    title, err := s.resolveIteration(ctx)
    if err != nil {
        s.log.Error().Err(err).Msg("iteration resolve failed; keeping cached title")
        return s.iterTitle
    }
    s.iterTitle = title
    s.iterAt = s.now()
    return title
}

func (s *Service) resolveIteration(ctx context.Context) (string, error) {
    iterations, err := s.gl.Iterations(ctx, s.cfg.IterationGroup, "current")
    if err != nil { return "", err }
    today := s.now()
    var candidates []domain.Iteration
    for _, it := range iterations {
        start, err1 := time.Parse("2006-01-02", it.StartDate)
        end, err2 := time.Parse("2006-01-02", it.DueDate)
        if err1 != nil || err2 != nil { continue }
        if !today.Before(start) && !today.After(end.Add(24*time.Hour-time.Nanosecond)) {
            candidates = append(candidates, it)
        }
    }
    switch len(candidates) {
    case 0:
        s.log.Warn().Int("listed", len(iterations)).Msg("no current iteration matches today; metrics will cover an empty set")
        return "", nil
    case 1:
    default:
        s.log.Warn().Int("candidates", len(candidates)).Msg("multiple current iterations; picking earliest start date")
        sort.Slice(candidates, func(i, j int) bool { return candidates[i].StartDate < candidates[j].StartDate })
    }
    title := candidates[0].Title
    s.log.Info().Str("iteration", title).Msg("current iteration resolved")
    return title, nil
}

// RefreshIteration drops the cached iteration title and re-resolves it.
// Called by the cron job; never touches published metrics.
func (s *Service) RefreshIteration(ctx context.Context) error {
    title, err := s.resolveIteration(ctx)
    if err != nil { return err }
    s.iterMu.Lock()
    s.iterTitle = title
    s.iterAt = s.now()
    s.iterMu.Unlock()
    return nil
}

// Refresh performs one full scrape cycle: fetch the iteration's issue set,
// aggregate it overall and per team, build the add-on sections, then hand the
// complete snapshot to the publisher in one step. A failed core fetch returns
// without publishing so the previous snapshot stays visible.
func (s *Service) Refresh(ctx context.Context) error {
    s.scrapeMu.Lock()
    defer s.scrapeMu.Unlock()

    teams := s.teamList()
    iteration := s.currentIteration(ctx)

    // An empty title means no iteration contains today; fetching without the
    // iteration filter would sweep in the whole group, so the iteration set
    // is empty by construction instead.
    var issues []domain.Issue
    if iteration != "" {
        var err error
        issues, err = s.locateIssues(ctx, s.cfg.TeamLabel, iteration, "")
        if err != nil { return fmt.Errorf("iteration issue fetch: %w", err) }
    } else {
        s.log.Warn().Msg("no current iteration; publishing an empty iteration set")
    }

    backlog, err := s.locateIssues(ctx, s.cfg.TeamLabel, "", "opened")
    if err != nil { return fmt.Errorf("backlog issue fetch: %w", err) }

    snap := &domain.Snapshot{
        Iteration: iteration,
        Overall:   Aggregate(issues, s.tax, s.cfg.DoneStatusLabel),
        Teams:     make(map[string]*domain.Tallies, len(teams)),
        Counts:    make(map[string]domain.TeamCounts, len(teams)),
        Activity:  map[string]domain.Tally{},
    }

    // Per-team aggregation fans out over the shared immutable issue slice.
    type teamResult struct {
        name    string
        tallies *domain.Tallies
        filtered []domain.Issue
    }
    results := make([]teamResult, len(teams))
    var wg sync.WaitGroup
    for i, team := range teams {
        wg.Add(1)
        go func(i int, team domain.Team) {
            defer wg.Done()
            filtered := FilterTeam(issues, team.Label, s.cfg.TeamLabel)
            results[i] = teamResult{name: team.Name, tallies: Aggregate(filtered, s.tax, s.cfg.DoneStatusLabel), filtered: filtered}
        }(i, team)
    }
    wg.Wait()
    for _, r := range results {
        snap.Teams[r.name] = r.tallies
    }

    for i, team := range teams {
        snap.Counts[team.Name] = domain.TeamCounts{
            Iteration: results[i].tallies.Issues,
            Backlog:   countBacklog(backlog, team.Label, s.cfg.BacklogLabel),
        }
    }

    // Add-ons fail soft: their section is omitted, never half-filled.
    if s.cfg.ReleasesProject != "" && anyReleaseInfo(teams) {
        if rel, err := s.latestRelease(ctx); err != nil {
            s.log.Error().Err(err).Msg("release lookup failed; omitting release info")
        } else {
            snap.Release = rel
        }
    }
    for i, team := range teams {
        if !team.Activity { continue }
        tally, err := s.teamActivity(ctx, results[i].filtered)
        if err != nil {
            s.log.Error().Err(err).Str("team", team.Name).Msg("activity lookup failed; omitting activity")
            continue
        }
        snap.Activity[team.Name] = tally
    }

    s.pub.Publish(snap)
    s.snapMu.Lock()
    s.snap = snap
    s.snapMu.Unlock()
    s.log.Info().Str("iteration", iteration).Int("issues", len(issues)).Int("teams", len(teams)).Msg("snapshot published")
    return nil
}

func countBacklog(issues []domain.Issue, teamLabel, backlogLabel string) int {
    n := 0
    for _, issue := range issues {
        if hasLabel(issue.Labels, backlogLabel) && hasLabel(issue.Labels, teamLabel) { n++ }
    }
    return n
}

func anyReleaseInfo(teams []domain.Team) bool {
    for _, t := range teams {
        if t.ReleaseInfo { return true }
    }
    return false
}

var releaseDateRe = regexp.MustCompile(`(\d+-\d+-\d+)`)

func (s *Service) latestRelease(ctx context.Context) (*domain.ReleaseInfo, error) {
    releases, err := s.gl.Releases(ctx, s.cfg.ReleasesProject)
    if err != nil { return nil, err }
    if len(releases) == 0 { return nil, fmt.Errorf("project %s has no releases", s.cfg.ReleasesProject) }
    short := ""
    if m := releaseDateRe.FindStringSubmatch(releases[0].ReleasedAt); m != nil { short = m[1] }
    return &domain.ReleaseInfo{
        Project:   s.cfg.ReleasesProject,
        Current:   releases[0].TagName,
        Date:      releases[0].ReleasedAt,
        ShortDate: short,
        Total:     len(releases),
    }, nil
}

// teamActivity counts, per user, how many issues in the team's set gained the
// done-status label. One label-event call per issue, through a bounded pool.
func (s *Service) teamActivity(ctx context.Context, issues []domain.Issue) (domain.Tally, error) {
    workerCount := s.cfg.WorkersGitLab
    if workerCount <= 0 { workerCount = 6 }

    type result struct {
        events []domain.LabelEvent
        err    error
    }
    jobs := make(chan string)
    out := make(chan result)
    var wg sync.WaitGroup
    for w := 0; w < workerCount; w++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for link := range jobs {
                events, err := s.gl.LabelEvents(ctx, link)
                out <- result{events: events, err: err}
            }
        }()
    }
    go func() {
        for _, issue := range issues {
            if issue.Links.Self != "" { jobs <- issue.Links.Self }
        }
        close(jobs)
        wg.Wait()
        close(out)
    }()

    tally := domain.Tally{}
    var firstErr error
    for r := range out {
        if r.err != nil {
            if firstErr == nil { firstErr = r.err }
            continue
        }
        for _, ev := range r.events {
            if ev.Label == nil { continue }
            if ev.Label.Name == s.cfg.DoneStatusLabel && ev.Action == "add" {
                tally.Add(ev.User.Name, 1)
            }
        }
    }
    if firstErr != nil { return nil, firstErr }
    return tally, nil
}
