/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "fmt"
    "regexp"

    "github.com/owentl/gitlab-prometheus/internal/config"
)

// Category buckets a label falls into. A label lands in at most one.
type Category string

const (
    CategoryDevStatus Category = "dev-status"
    CategoryQAStatus  Category = "qa-status"
    CategoryIssue     Category = "issue-category"
    CategoryPriority  Category = "priority"
    CategorySeverity  Category = "severity"
)

type rule struct {
    category Category
    pattern  *regexp.Regexp
}

// Taxonomy is an ordered rule chain: the first matching pattern wins, so the
// configured order decides ties between overlapping patterns.
type Taxonomy struct {
    rules []rule
}

// NewTaxonomy compiles the configured label prefixes in their evaluation
// order. Empty prefixes are skipped rather than matching everything.
func NewTaxonomy(cfg config.Config) (*Taxonomy, error) {
    ordered := []struct {
        category Category
        pattern  string
    }{
        {CategoryDevStatus, cfg.DevLabelPrefix},
        {CategoryQAStatus, cfg.QALabelPrefix},
        {CategoryIssue, cfg.IssueCategoryPrefix},
        {CategoryPriority, cfg.PriorityLabelPrefix},
        {CategorySeverity, cfg.SeverityLabelPrefix},
    }
    t := &Taxonomy{rules: make([]rule, 0, len(ordered))}
    for _, o := range ordered {
        if o.pattern == "" { continue }
        re, err := regexp.Compile(o.pattern)
        if err != nil { return nil, fmt.Errorf("taxonomy: bad pattern %q for %s: %w", o.pattern, o.category, err) }
        t.rules = append(t.rules, rule{category: o.category, pattern: re})
    }
    return t, nil
}

// Classify maps a label to its category. The second return is false when no
// configured pattern matches; such labels are ignored by the aggregator but
// may still drive team membership elsewhere.
func (t *Taxonomy) Classify(label string) (Category, bool) {
    for _, r := range t.rules {
        if r.pattern.MatchString(label) { return r.category, true }
    }
    return "", false
}
