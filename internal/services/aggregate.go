/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "github.com/owentl/gitlab-prometheus/internal/domain"
)

// FilterTeam keeps the issues carrying both the team membership label and
// the shared time-box label. Order preserving; the source set is already
// unique by id.
func FilterTeam(issues []domain.Issue, teamLabel, timeboxLabel string) []domain.Issue {
    out := make([]domain.Issue, 0, len(issues))
    for _, issue := range issues {
        if hasLabel(issue.Labels, teamLabel) && hasLabel(issue.Labels, timeboxLabel) {
            out = append(out, issue)
        }
    }
    return out
}

func hasLabel(labels []string, want string) bool {
    for _, l := range labels {
        if l == want { return true }
    }
    return false
}

// Aggregate walks the issue collection exactly once and fills every tally.
// Numeric rules: weight and time estimate count only while the issue is open,
// a null field is 0, and seconds become hours by truncating division. Each
// dimension therefore reflects the same input snapshot; there is no re-read
// between, say, the status breakdown and the weight breakdown.
func Aggregate(issues []domain.Issue, tax *Taxonomy, doneLabel string) *domain.Tallies {
    t := domain.NewTallies()
    for _, issue := range issues {
        t.Issues++

        weight := 0
        estimate := 0
        spent := 0
        if issue.Open() {
            if issue.Weight != nil { weight = *issue.Weight }
            if issue.TimeStats.TimeEstimate != nil { estimate = *issue.TimeStats.TimeEstimate / 3600 }
        }
        if issue.TimeStats.TotalTimeSpent != nil { spent = *issue.TimeStats.TotalTimeSpent / 3600 }

        t.OverallWeight += weight
        t.OverallTimeSpentHours += spent
        t.OverallTimeEstimateHours += estimate

        for _, a := range issue.Assignees {
            t.WeightByUser.Add(a.Name, weight)
            t.TimeSpentByUser.Add(a.Name, spent)
            t.TimeEstimateByUser.Add(a.Name, estimate)
            t.TicketsByUser.Add(a.Name, 1)
        }

        for _, label := range issue.Labels {
            cat, ok := tax.Classify(label)
            if !ok { continue }
            switch cat {
            case CategoryDevStatus:
                t.StatusByLabel.Add(label, 1)
                t.WeightByLabel.Add(label, weight)
                t.TimeSpentByLabel.Add(label, spent)
                t.TimeEstimateByLabel.Add(label, estimate)
                if label == doneLabel {
                    for _, a := range issue.Assignees {
                        t.CompletedByUser.Add(a.Name, 1)
                    }
                }
            case CategoryQAStatus:
                t.StatusByLabel.Add(label, 1)
            case CategoryIssue:
                t.CategoryByLabel.Add(label, 1)
            case CategoryPriority:
                t.PriorityByLabel.Add(label, 1)
            case CategorySeverity:
                t.SeverityByLabel.Add(label, 1)
            }
        }

        milestone := domain.NoMilestone
        if issue.Milestone != nil && issue.Milestone.Title != "" { milestone = issue.Milestone.Title }
        t.ByMilestone.Add(milestone, 1)

        epic := domain.NoEpic
        if issue.Epic != nil && issue.Epic.Title != "" { epic = issue.Epic.Title }
        t.ByEpic.Add(epic, 1)
    }
    return t
}
