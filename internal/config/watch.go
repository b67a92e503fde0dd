/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "context"
    "time"

    "github.com/fsnotify/fsnotify"
    "github.com/rs/zerolog"

    "github.com/owentl/gitlab-prometheus/internal/domain"
)

// WatchTeamsFile reloads the teams file on change and hands the new team list
// to onReload. Write events are debounced because editors tend to fire several
// per save. Blocks until ctx is done.
func WatchTeamsFile(ctx context.Context, path string, log zerolog.Logger, onReload func([]domain.Team)) error {
    w, err := fsnotify.NewWatcher()
    if err != nil { return err }
    defer w.Close()
    if err := w.Add(path); err != nil { return err }
    log.Info().Str("path", path).Msg("watching teams file")

    var timer *time.Timer
    reload := func() {
        teams, err := LoadTeamsFile(path)
        if err != nil {
            log.Error().Err(err).Str("path", path).Msg("teams file reload failed; keeping previous teams")
            return
        }
        if err := ValidateTeams(teams); err != nil {
            log.Error().Err(err).Str("path", path).Msg("teams file invalid; keeping previous teams")
            return
        }
        log.Info().Int("teams", len(teams)).Msg("teams file reloaded")
        onReload(teams)
    }

    for {
        select {
        case <-ctx.Done():
            if timer != nil { timer.Stop() }
            return nil
        case ev, ok := <-w.Events:
            if !ok { return nil }
            if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) { continue }
            if timer != nil { timer.Stop() }
            timer = time.AfterFunc(200*time.Millisecond, reload)
        case err, ok := <-w.Errors:
            if !ok { return nil }
            log.Error().Err(err).Msg("teams file watcher error")
        }
    }
}
