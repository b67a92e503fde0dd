package services

import (
    "testing"

    "github.com/owentl/gitlab-prometheus/internal/config"
)

func testTaxonomy(t *testing.T) *Taxonomy {
    t.Helper()
    tax, err := NewTaxonomy(config.Config{
        DevLabelPrefix:      "Dev GS::",
        QALabelPrefix:       "QA GS::",
        IssueCategoryPrefix: "Category::",
        PriorityLabelPrefix: "Priority::",
        SeverityLabelPrefix: "Severity::",
    })
    if err != nil { t.Fatalf("taxonomy: %v", err) }
    return tax
}

func TestClassify_FirstMatchWins(t *testing.T) {
    tax := testTaxonomy(t)
    cases := []struct {
        label string
        want  Category
        ok    bool
    }{
        {"Dev GS::In Progress", CategoryDevStatus, true},
        {"QA GS::Ready", CategoryQAStatus, true},
        {"Category::Bug", CategoryIssue, true},
        {"Priority::P1", CategoryPriority, true},
        {"Severity::S2", CategorySeverity, true},
        {"Backend GS", "", false},
        {"", "", false},
    }
    for _, c := range cases {
        got, ok := tax.Classify(c.label)
        if ok != c.ok || got != c.want {
            t.Fatalf("Classify(%q) = (%q, %v), want (%q, %v)", c.label, got, ok, c.want, c.ok)
        }
    }
}

func TestClassify_OverlappingPatternsFollowConfiguredOrder(t *testing.T) {
    // Both patterns match; dev-status is configured first and must win.
    tax, err := NewTaxonomy(config.Config{
        DevLabelPrefix: "GS::",
        QALabelPrefix:  "GS::QA",
    })
    if err != nil { t.Fatalf("taxonomy: %v", err) }
    got, ok := tax.Classify("GS::QA Review")
    if !ok || got != CategoryDevStatus {
        t.Fatalf("expected first configured category to win, got (%q, %v)", got, ok)
    }
}

func TestClassify_Deterministic(t *testing.T) {
    tax := testTaxonomy(t)
    first, ok1 := tax.Classify("Dev GS::Done")
    second, ok2 := tax.Classify("Dev GS::Done")
    if first != second || ok1 != ok2 {
        t.Fatalf("classification not stable: (%q,%v) vs (%q,%v)", first, ok1, second, ok2)
    }
}

func TestNewTaxonomy_SkipsEmptyAndRejectsBadPatterns(t *testing.T) {
    tax, err := NewTaxonomy(config.Config{DevLabelPrefix: "Dev::"})
    if err != nil { t.Fatalf("taxonomy: %v", err) }
    if _, ok := tax.Classify("Priority::P1"); ok {
        t.Fatalf("unconfigured category must not match")
    }

    if _, err := NewTaxonomy(config.Config{DevLabelPrefix: "("}); err == nil {
        t.Fatalf("expected error for invalid pattern")
    }
}
