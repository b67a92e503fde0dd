/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/hashicorp/go-multierror"
    "github.com/rs/zerolog/log"
    "gopkg.in/yaml.v3"

    "github.com/owentl/gitlab-prometheus/internal/domain"
)

type Config struct {
    AppEnv   string
    TZ       string
    HTTPAddr string

    GitLabURL       string
    GitLabToken     string
    ParentGroup     string
    IterationGroup  string
    ReleasesProject string

    // Labels that scope the issue queries
    TeamLabel     string // shared time-box membership label, e.g. "Core GS"
    BacklogLabel  string
    ExcludeLabels string

    // Taxonomy prefixes, evaluated in order by the classifier
    DevLabelPrefix      string
    QALabelPrefix       string
    IssueCategoryPrefix string
    PriorityLabelPrefix string
    SeverityLabelPrefix string
    DoneStatusLabel     string

    Teams     []domain.Team
    TeamsFile string

    IterationCron string
    IterationTTL  time.Duration

    HTTPTimeout   time.Duration
    FetchPageSize int
    WorkersGitLab int
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func atoi(key string, def int) int {
    v := os.Getenv(key)
    if v == "" { return def }
    i, err := strconv.Atoi(v)
    if err != nil { return def }
    return i
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

// parseTeams reads the compact env form "name:Membership Label,name2:Label2".
func parseTeams(csv string) []domain.Team {
    if csv == "" { return nil }
    parts := strings.Split(csv, ",")
    out := make([]domain.Team, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        name, label, ok := strings.Cut(p, ":")
        if !ok { continue }
        name = strings.TrimSpace(name)
        label = strings.TrimSpace(label)
        if name == "" || label == "" { continue }
        out = append(out, domain.Team{Name: name, Label: label})
    }
    return out
}

// teamsFile is the YAML shape of TEAMS_FILE. The file wins over the TEAMS env
// var because it is the only place per-team add-on flags can be set.
type teamsFile struct {
    Teams []domain.Team `yaml:"teams"`
}

func LoadTeamsFile(path string) ([]domain.Team, error) {
    data, err := os.ReadFile(path)
    if err != nil { return nil, fmt.Errorf("config: read teams file %q: %w", path, err) }
    var tf teamsFile
    if err := yaml.Unmarshal(data, &tf); err != nil { return nil, fmt.Errorf("config: parse teams file %q: %w", path, err) }
    return tf.Teams, nil
}

func Load() Config {
    cfg := Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        TZ:       getenv("APP_TZ", "UTC"),
        HTTPAddr: getenv("HTTP_ADDR", ":8080"),

        GitLabURL:       getenv("GITLAB_URL", "https://gitlab.com/api/v4/"),
        GitLabToken:     getenv("GL_ACCESS_TOKEN", ""),
        ParentGroup:     getenv("PARENT_GROUP", ""),
        IterationGroup:  getenv("ITERATION_GROUP", ""),
        ReleasesProject: getenv("RELEASES_PROJECT", ""),

        TeamLabel:     getenv("TEAM_LABEL", "Core GS"),
        BacklogLabel:  getenv("BACKLOG_LABEL", "Backlog"),
        ExcludeLabels: getenv("EXCLUDE_LABELS", ""),

        DevLabelPrefix:      getenv("DEV_LABEL_PREFIX", "Dev GS::"),
        QALabelPrefix:       getenv("QA_LABEL_PREFIX", "QA GS::"),
        IssueCategoryPrefix: getenv("ISSUE_CATEGORY_PREFIX", "Category::"),
        PriorityLabelPrefix: getenv("PRIORITY_LABEL_PREFIX", "Priority::"),
        SeverityLabelPrefix: getenv("SEVERITY_LABEL_PREFIX", "Severity::"),
        DoneStatusLabel:     getenv("DONE_STATUS_LABEL", "Dev GS::Done"),

        Teams:     parseTeams(getenv("TEAMS", "")),
        TeamsFile: getenv("TEAMS_FILE", ""),

        IterationCron: getenv("ITERATION_CRON", "0 * * * *"),
        IterationTTL:  dur("ITERATION_TTL", time.Hour),

        HTTPTimeout:   dur("HTTP_TIMEOUT", 15*time.Second),
        FetchPageSize: atoi("FETCH_PAGE_SIZE", 100),
        WorkersGitLab: atoi("WORKERS_GITLAB", 6),
    }

    if cfg.TeamsFile != "" {
        teams, err := LoadTeamsFile(cfg.TeamsFile)
        switch {
        case err != nil:
            log.Error().Err(err).Str("path", cfg.TeamsFile).Msg("teams file load failed; falling back to TEAMS env")
        case len(teams) == 0:
            log.Warn().Str("path", cfg.TeamsFile).Msg("teams file lists no teams; falling back to TEAMS env")
        default:
            cfg.Teams = teams
        }
    }

    if loc, err := time.LoadLocation(cfg.TZ); err == nil {
        time.Local = loc
    }

    return cfg
}

// Validate accumulates every configuration problem instead of stopping at the
// first, so an operator fixes one deploy, not five.
func Validate(cfg Config) error {
    var result *multierror.Error
    if cfg.GitLabURL == "" {
        result = multierror.Append(result, fmt.Errorf("config: GITLAB_URL is required"))
    }
    if cfg.ParentGroup == "" {
        result = multierror.Append(result, fmt.Errorf("config: PARENT_GROUP is required"))
    }
    if cfg.IterationGroup == "" {
        result = multierror.Append(result, fmt.Errorf("config: ITERATION_GROUP is required"))
    }
    if cfg.TeamLabel == "" {
        result = multierror.Append(result, fmt.Errorf("config: TEAM_LABEL is required"))
    }
    if len(cfg.Teams) == 0 {
        result = multierror.Append(result, fmt.Errorf("config: at least one team is required (TEAMS or TEAMS_FILE)"))
    }
    if cfg.FetchPageSize <= 0 || cfg.FetchPageSize > 100 {
        result = multierror.Append(result, fmt.Errorf("config: FETCH_PAGE_SIZE must be within 1..100, got %d", cfg.FetchPageSize))
    }
    if err := ValidateTeams(cfg.Teams); err != nil {
        result = multierror.Append(result, err)
    }
    return result.ErrorOrNil()
}

// ValidateTeams enforces name and membership-label uniqueness; a duplicate
// label would silently double-count every issue carrying it.
func ValidateTeams(teams []domain.Team) error {
    var result *multierror.Error
    names := map[string]struct{}{}
    labels := map[string]struct{}{}
    for _, t := range teams {
        if t.Name == "" || t.Label == "" {
            result = multierror.Append(result, fmt.Errorf("config: team entries need both name and label, got %+v", t))
            continue
        }
        if _, dup := names[t.Name]; dup {
            result = multierror.Append(result, fmt.Errorf("config: duplicate team name %q", t.Name))
        }
        if _, dup := labels[t.Label]; dup {
            result = multierror.Append(result, fmt.Errorf("config: duplicate team label %q", t.Label))
        }
        names[t.Name] = struct{}{}
        labels[t.Label] = struct{}{}
    }
    return result.ErrorOrNil()
}
