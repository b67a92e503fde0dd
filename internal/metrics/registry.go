/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
    "net/http"
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/owentl/gitlab-prometheus/internal/domain"
)

const namespace = "gitlabkpis"

// Registry owns every exported gauge. Publish is the only mutator of the
// exported state: it clears all previously set series and writes the new
// snapshot in one critical section, so entities that vanished between scrapes
// (an unassigned user, a retired label) cannot linger as stale series.
type Registry struct {
    registry *prometheus.Registry
    mu       sync.Mutex

    // per-user, per-team
    weightByUser       *prometheus.GaugeVec
    timeSpentByUser    *prometheus.GaugeVec
    timeEstimateByUser *prometheus.GaugeVec
    ticketsByUser      *prometheus.GaugeVec
    completedByUser    *prometheus.GaugeVec

    // per-label, per-team
    issuesByStatus   *prometheus.GaugeVec
    issuesByCategory *prometheus.GaugeVec
    issuesByPriority *prometheus.GaugeVec
    issuesBySeverity *prometheus.GaugeVec

    issuesByMilestone *prometheus.GaugeVec
    issuesByEpic      *prometheus.GaugeVec

    teamIssueCount *prometheus.GaugeVec

    // iteration-wide
    iterationWeight              *prometheus.GaugeVec
    iterationTimeSpent           *prometheus.GaugeVec
    iterationTimeEstimate        *prometheus.GaugeVec
    iterationWeightByLabel       *prometheus.GaugeVec
    iterationTimeSpentByLabel    *prometheus.GaugeVec
    iterationTimeEstimateByLabel *prometheus.GaugeVec
    iterationMilestone           *prometheus.GaugeVec
    iterationEpic                *prometheus.GaugeVec

    // add-ons
    releaseInfo  *prometheus.GaugeVec
    releaseTotal *prometheus.GaugeVec
    activityDone *prometheus.GaugeVec

    all []*prometheus.GaugeVec
}

func New(registry *prometheus.Registry) *Registry {
    if registry == nil { registry = prometheus.NewRegistry() }
    gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
        return prometheus.NewGaugeVec(prometheus.GaugeOpts{
            Namespace: namespace,
            Name:      name,
            Help:      help,
        }, labels)
    }

    r := &Registry{registry: registry}
    r.weightByUser = gauge("issues_weight_by_user", "Open-issue weight carried by each user", "iteration", "team", "user")
    r.timeSpentByUser = gauge("time_spent_hours_by_user", "Whole hours logged by each user", "iteration", "team", "user")
    r.timeEstimateByUser = gauge("time_estimate_hours_by_user", "Whole hours estimated on open issues by user", "iteration", "team", "user")
    r.ticketsByUser = gauge("tickets_by_user", "Issue count assigned to each user", "iteration", "team", "user")
    r.completedByUser = gauge("completed_by_user", "Issues in the done status by assignee", "iteration", "team", "user")

    r.issuesByStatus = gauge("issues_by_status", "Issue count per dev/qa status label", "iteration", "team", "label")
    r.issuesByCategory = gauge("issues_by_category", "Issue count per category label", "iteration", "team", "label")
    r.issuesByPriority = gauge("issues_by_priority", "Issue count per priority label", "iteration", "team", "label")
    r.issuesBySeverity = gauge("issues_by_severity", "Issue count per severity label", "iteration", "team", "label")

    r.issuesByMilestone = gauge("issues_by_milestone", "Issue count per milestone", "iteration", "team", "milestone")
    r.issuesByEpic = gauge("issues_by_epic", "Issue count per epic", "iteration", "team", "epic")

    r.teamIssueCount = gauge("team_issue_count", "Issue count per team, iteration and backlog buckets", "team", "bucket")

    r.iterationWeight = gauge("iteration_weight", "Total open-issue weight in the iteration", "iteration")
    r.iterationTimeSpent = gauge("iteration_time_spent_hours", "Total hours logged in the iteration", "iteration")
    r.iterationTimeEstimate = gauge("iteration_time_estimate_hours", "Total hours estimated on open issues in the iteration", "iteration")
    r.iterationWeightByLabel = gauge("iteration_weight_by_label", "Iteration weight per dev status label", "iteration", "label")
    r.iterationTimeSpentByLabel = gauge("iteration_time_spent_by_label", "Iteration hours logged per dev status label", "iteration", "label")
    r.iterationTimeEstimateByLabel = gauge("iteration_time_estimate_by_label", "Iteration hours estimated per dev status label", "iteration", "label")
    r.iterationMilestone = gauge("iteration_issues_by_milestone", "Iteration issue count per milestone", "iteration", "milestone")
    r.iterationEpic = gauge("iteration_issues_by_epic", "Iteration issue count per epic", "iteration", "epic")

    r.releaseInfo = gauge("latest_release_info", "Latest release of the configured project; value is always 1", "project", "version", "date")
    r.releaseTotal = gauge("release_total", "Number of releases in the configured project", "project")
    r.activityDone = gauge("team_activity_completed", "Issues moved to the done status, by user", "team", "user")

    r.all = []*prometheus.GaugeVec{
        r.weightByUser, r.timeSpentByUser, r.timeEstimateByUser, r.ticketsByUser, r.completedByUser,
        r.issuesByStatus, r.issuesByCategory, r.issuesByPriority, r.issuesBySeverity,
        r.issuesByMilestone, r.issuesByEpic, r.teamIssueCount,
        r.iterationWeight, r.iterationTimeSpent, r.iterationTimeEstimate,
        r.iterationWeightByLabel, r.iterationTimeSpentByLabel, r.iterationTimeEstimateByLabel,
        r.iterationMilestone, r.iterationEpic,
        r.releaseInfo, r.releaseTotal, r.activityDone,
    }
    for _, g := range r.all { registry.MustRegister(g) }
    return r
}

// Publish replaces the exported state with the snapshot: full reset first,
// then iteration-wide values, then per-team values, then add-ons.
func (r *Registry) Publish(snap *domain.Snapshot) {
    r.mu.Lock()
    defer r.mu.Unlock()

    for _, g := range r.all { g.Reset() }

    iter := snap.Iteration
    if snap.Overall != nil {
        o := snap.Overall
        r.iterationWeight.WithLabelValues(iter).Set(float64(o.OverallWeight))
        r.iterationTimeSpent.WithLabelValues(iter).Set(float64(o.OverallTimeSpentHours))
        r.iterationTimeEstimate.WithLabelValues(iter).Set(float64(o.OverallTimeEstimateHours))
        setTally(r.iterationWeightByLabel, o.WeightByLabel, iter)
        setTally(r.iterationTimeSpentByLabel, o.TimeSpentByLabel, iter)
        setTally(r.iterationTimeEstimateByLabel, o.TimeEstimateByLabel, iter)
        setTally(r.iterationMilestone, o.ByMilestone, iter)
        setTally(r.iterationEpic, o.ByEpic, iter)
    }

    for team, t := range snap.Teams {
        setTally(r.weightByUser, t.WeightByUser, iter, team)
        setTally(r.timeSpentByUser, t.TimeSpentByUser, iter, team)
        setTally(r.timeEstimateByUser, t.TimeEstimateByUser, iter, team)
        setTally(r.ticketsByUser, t.TicketsByUser, iter, team)
        setTally(r.completedByUser, t.CompletedByUser, iter, team)
        setTally(r.issuesByStatus, t.StatusByLabel, iter, team)
        setTally(r.issuesByCategory, t.CategoryByLabel, iter, team)
        setTally(r.issuesByPriority, t.PriorityByLabel, iter, team)
        setTally(r.issuesBySeverity, t.SeverityByLabel, iter, team)
        setTally(r.issuesByMilestone, t.ByMilestone, iter, team)
        setTally(r.issuesByEpic, t.ByEpic, iter, team)
    }

    for team, counts := range snap.Counts {
        r.teamIssueCount.WithLabelValues(team, "iteration").Set(float64(counts.Iteration))
        r.teamIssueCount.WithLabelValues(team, "backlog").Set(float64(counts.Backlog))
    }

    if snap.Release != nil {
        rel := snap.Release
        r.releaseInfo.WithLabelValues(rel.Project, rel.Current, rel.ShortDate).Set(1)
        r.releaseTotal.WithLabelValues(rel.Project).Set(float64(rel.Total))
    }
    for team, tally := range snap.Activity {
        setTally(r.activityDone, tally, team)
    }
}

func setTally(g *prometheus.GaugeVec, t domain.Tally, fixed ...string) {
    for key, v := range t {
        g.WithLabelValues(append(fixed, key)...).Set(float64(v))
    }
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
    return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

// Registry exposes the underlying prometheus registry for tests.
func (r *Registry) Registry() *prometheus.Registry {
    return r.registry
}
