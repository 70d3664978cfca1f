// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/recviewd/recviewd/internal/log"
)

// Watcher triggers rescans when the media directory changes. Events are
// debounced: a recording being written produces a burst of writes and must
// not cause a rescan per chunk.
type Watcher struct {
	scanner  *Scanner
	root     string
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a watcher over the scanner's media root.
func NewWatcher(scanner *Scanner, root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	return &Watcher{
		scanner:  scanner,
		root:     root,
		debounce: debounce,
		logger:   log.WithComponent("library-watch"),
	}
}

// Run watches until the context is canceled. Subdirectories created while
// running are added to the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.root); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				// New directory: watch it too, its content is library space.
				if isDir(ev.Name) {
					_ = fw.Add(ev.Name)
					schedule()
					continue
				}
			}
			if relevantEvent(ev) {
				schedule()
			}

		case werr, ok := <-fw.Errors:
			if ok && werr != nil {
				w.logger.Warn().Err(werr).Msg("media watch error")
			}

		case <-timerC:
			timerC = nil
			timer = nil
			if _, err := w.scanner.ScanAll(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn().Err(err).Msg("triggered rescan failed")
			}
		}
	}
}

func relevantEvent(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	return mediaExtensions[ext] || strings.HasSuffix(ev.Name, ".program.txt")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
