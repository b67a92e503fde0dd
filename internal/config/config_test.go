package config

import (
    "bytes"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/owentl/gitlab-prometheus/internal/domain"
)

func TestParseTeams(t *testing.T) {
    got := parseTeams("backend:Backend GS, frontend:Frontend GS ,, bad-entry ,:nolabel,noname:")
    want := []domain.Team{
        {Name: "backend", Label: "Backend GS"},
        {Name: "frontend", Label: "Frontend GS"},
    }
    if len(got) != len(want) { t.Fatalf("parseTeams returned %d teams: %+v", len(got), got) }
    for i := range want {
        if got[i] != want[i] { t.Fatalf("team %d = %+v, want %+v", i, got[i], want[i]) }
    }
    if parseTeams("") != nil { t.Fatalf("empty input must yield nil") }
}

func TestLoadTeamsFile(t *testing.T) {
    path := filepath.Join(t.TempDir(), "teams.yaml")
    body := `teams:
  - name: backend
    label: Backend GS
    release_info: true
  - name: frontend
    label: Frontend GS
    activity: true
`
    if err := os.WriteFile(path, []byte(body), 0o644); err != nil { t.Fatalf("write: %v", err) }

    teams, err := LoadTeamsFile(path)
    if err != nil { t.Fatalf("LoadTeamsFile: %v", err) }
    if len(teams) != 2 { t.Fatalf("got %d teams", len(teams)) }
    if !teams[0].ReleaseInfo || teams[0].Activity {
        t.Fatalf("backend flags = %+v", teams[0])
    }
    if !teams[1].Activity || teams[1].ReleaseInfo {
        t.Fatalf("frontend flags = %+v", teams[1])
    }
}

func TestLoadTeamsFile_Errors(t *testing.T) {
    if _, err := LoadTeamsFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
        t.Fatalf("missing file must error")
    }
    path := filepath.Join(t.TempDir(), "broken.yaml")
    if err := os.WriteFile(path, []byte("teams: [unclosed"), 0o644); err != nil { t.Fatalf("write: %v", err) }
    if _, err := LoadTeamsFile(path); err == nil {
        t.Fatalf("malformed yaml must error")
    }
}

func validConfig() Config {
    return Config{
        GitLabURL:      "https://gitlab.example.com/api/v4/",
        ParentGroup:    "42",
        IterationGroup: "42",
        TeamLabel:      "Core GS",
        Teams:          []domain.Team{{Name: "backend", Label: "Backend GS"}},
        FetchPageSize:  100,
        IterationTTL:   time.Hour,
    }
}

func TestValidate_OK(t *testing.T) {
    if err := Validate(validConfig()); err != nil { t.Fatalf("valid config rejected: %v", err) }
}

func TestValidate_AccumulatesAllProblems(t *testing.T) {
    cfg := validConfig()
    cfg.ParentGroup = ""
    cfg.TeamLabel = ""
    cfg.Teams = nil
    cfg.FetchPageSize = 250
    err := Validate(cfg)
    if err == nil { t.Fatalf("expected error") }
    for _, frag := range []string{"PARENT_GROUP", "TEAM_LABEL", "at least one team", "FETCH_PAGE_SIZE"} {
        if !strings.Contains(err.Error(), frag) {
            t.Fatalf("error %q missing %q", err.Error(), frag)
        }
    }
}

func TestValidateTeams_Duplicates(t *testing.T) {
    err := ValidateTeams([]domain.Team{
        {Name: "backend", Label: "Backend GS"},
        {Name: "backend", Label: "Other GS"},
        {Name: "other", Label: "Backend GS"},
        {Name: "", Label: "Lonely GS"},
    })
    if err == nil { t.Fatalf("expected error") }
    msg := err.Error()
    if !strings.Contains(msg, `duplicate team name "backend"`) { t.Fatalf("missing name dup: %q", msg) }
    if !strings.Contains(msg, `duplicate team label "Backend GS"`) { t.Fatalf("missing label dup: %q", msg) }
    if !strings.Contains(msg, "need both name and label") { t.Fatalf("missing empty-entry check: %q", msg) }
}

func TestLoad_TeamsFileWinsOverEnv(t *testing.T) {
    path := filepath.Join(t.TempDir(), "teams.yaml")
    body := "teams:\n  - name: platform\n    label: Platform GS\n"
    if err := os.WriteFile(path, []byte(body), 0o644); err != nil { t.Fatalf("write: %v", err) }
    t.Setenv("TEAMS", "backend:Backend GS")
    t.Setenv("TEAMS_FILE", path)

    cfg := Load()
    if len(cfg.Teams) != 1 || cfg.Teams[0].Name != "platform" {
        t.Fatalf("teams = %+v, want file contents to win", cfg.Teams)
    }
}

func TestLoad_BrokenTeamsFileFallsBackToEnv(t *testing.T) {
    var buf bytes.Buffer
    prev := log.Logger
    log.Logger = zerolog.New(&buf)
    defer func() { log.Logger = prev }()

    path := filepath.Join(t.TempDir(), "teams.yaml")
    if err := os.WriteFile(path, []byte("teams: [unclosed"), 0o644); err != nil { t.Fatalf("write: %v", err) }
    t.Setenv("TEAMS", "backend:Backend GS")
    t.Setenv("TEAMS_FILE", path)

    cfg := Load()
    if len(cfg.Teams) != 1 || cfg.Teams[0].Name != "backend" {
        t.Fatalf("teams = %+v, want env fallback", cfg.Teams)
    }
    if !strings.Contains(buf.String(), "teams file load failed") {
        t.Fatalf("expected a load-failure log line, got %q", buf.String())
    }
}

func TestLoad_EmptyTeamsFileFallsBackToEnv(t *testing.T) {
    var buf bytes.Buffer
    prev := log.Logger
    log.Logger = zerolog.New(&buf)
    defer func() { log.Logger = prev }()

    path := filepath.Join(t.TempDir(), "teams.yaml")
    if err := os.WriteFile(path, []byte("teams: []\n"), 0o644); err != nil { t.Fatalf("write: %v", err) }
    t.Setenv("TEAMS", "backend:Backend GS")
    t.Setenv("TEAMS_FILE", path)

    cfg := Load()
    if len(cfg.Teams) != 1 || cfg.Teams[0].Name != "backend" {
        t.Fatalf("teams = %+v, want env fallback", cfg.Teams)
    }
    if !strings.Contains(buf.String(), "teams file lists no teams") {
        t.Fatalf("expected a no-teams log line, got %q", buf.String())
    }
}

func TestLoad_Defaults(t *testing.T) {
    for _, key := range []string{"TEAMS", "TEAMS_FILE", "FETCH_PAGE_SIZE", "ITERATION_TTL", "DEV_LABEL_PREFIX"} {
        t.Setenv(key, "")
    }
    cfg := Load()
    if cfg.FetchPageSize != 100 { t.Fatalf("FetchPageSize default = %d", cfg.FetchPageSize) }
    if cfg.IterationTTL != time.Hour { t.Fatalf("IterationTTL default = %v", cfg.IterationTTL) }
    if cfg.DevLabelPrefix != "Dev GS::" { t.Fatalf("DevLabelPrefix default = %q", cfg.DevLabelPrefix) }
    if cfg.DoneStatusLabel != "Dev GS::Done" { t.Fatalf("DoneStatusLabel default = %q", cfg.DoneStatusLabel) }
}
