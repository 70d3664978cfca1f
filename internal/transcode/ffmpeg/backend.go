// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package ffmpeg runs ffmpeg as the media transform backend: argv assembly,
// process-group supervision, stderr capture and segment completion tracking
// via the muxer's segment list.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/recviewd/recviewd/internal/log"
	"github.com/recviewd/recviewd/internal/procgroup"
	"github.com/recviewd/recviewd/internal/transcode"
)

// Backend launches ffmpeg subprocesses implementing transcode.Backend.
type Backend struct {
	bin    string
	logger zerolog.Logger
}

// New creates a Backend using the given ffmpeg binary path.
func New(bin string) *Backend {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Backend{
		bin:    bin,
		logger: log.WithComponent("ffmpeg"),
	}
}

// Start launches one ffmpeg generation for the given job.
func (b *Backend) Start(ctx context.Context, spec transcode.JobSpec) (transcode.Handle, error) {
	args := BuildArgs(spec)

	cmd := exec.CommandContext(ctx, b.bin, args...) // #nosec G204 -- argv is assembled locally
	procgroup.Set(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stderr: %w", err)
	}

	j := &job{
		cmd:      cmd,
		listPath: filepath.Join(spec.OutputDir, segmentListName),
		ring:     NewLineRing(256),
		segs:     make(chan int, 256),
		procDone: make(chan struct{}),
		done:     make(chan struct{}),
		seen:     make(map[int]struct{}),
		logger: b.logger.With().
			Str("video", spec.VideoID).
			Uint64("generation", spec.Generation).
			Logger(),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start failed: %w", err)
	}

	j.logger.Debug().Str("command", cmd.String()).Msg("ffmpeg process started")

	var ioWg sync.WaitGroup
	ioWg.Add(1)
	go func() {
		defer ioWg.Done()
		j.drainStderr(stderr)
	}()

	watcherDone := make(chan struct{})
	go j.watchList(watcherDone)

	go func() {
		waitErr := cmd.Wait()
		ioWg.Wait()
		close(j.procDone)
		<-watcherDone
		close(j.segs)
		j.mu.Lock()
		j.waitErr = waitErr
		j.mu.Unlock()
		close(j.done)
	}()

	return j, nil
}

// job is one live ffmpeg generation.
type job struct {
	cmd      *exec.Cmd
	listPath string
	ring     *LineRing
	logger   zerolog.Logger

	segs     chan int
	procDone chan struct{} // closed after cmd.Wait returns
	done     chan struct{} // closed after all bookkeeping finished

	mu      sync.Mutex
	waitErr error
	seen    map[int]struct{}
	offset  int64 // consumed bytes of the segment list

	stopOnce sync.Once
}

func (j *job) Segments() <-chan int { return j.segs }

func (j *job) Wait() error {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.waitErr
}

// Stop terminates the process group: SIGTERM, grace, SIGKILL. Returns once
// the process is dead and all output files are closed.
func (j *job) Stop(grace time.Duration) error {
	j.stopOnce.Do(func() {
		procgroup.Shutdown(j.cmd, grace, j.done)
	})
	<-j.done
	return nil
}

func (j *job) Diagnostics() []string {
	return j.ring.LastN(20)
}

func (j *job) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		_, _ = j.ring.Write(scanner.Bytes())
		_, _ = j.ring.Write([]byte("\n"))
	}
}

// watchList tails the segment muxer's csv list. Each appended line means the
// named segment file is closed and complete. fsnotify delivers the fast path;
// a coarse ticker covers missed events and the final scan runs after exit so
// the last segment is never lost.
func (j *job) watchList(done chan<- struct{}) {
	defer close(done)

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer func() { _ = watcher.Close() }()
		if addErr := watcher.Add(filepath.Dir(j.listPath)); addErr != nil {
			j.logger.Warn().Err(addErr).Msg("segment list watch failed, polling only")
		}
	} else {
		j.logger.Warn().Err(err).Msg("fsnotify unavailable, polling segment list")
		watcher = &fsnotify.Watcher{}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-j.procDone:
			j.scanList()
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				continue
			}
			if ev.Name == j.listPath && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				j.scanList()
			}
		case werr, ok := <-watcher.Errors:
			if ok && werr != nil {
				j.logger.Warn().Err(werr).Msg("segment list watcher error")
			}
		case <-ticker.C:
			j.scanList()
		}
	}
}

// scanList reads list lines appended since the last scan and emits their
// segment indices in order.
func (j *job) scanList() {
	f, err := os.Open(j.listPath)
	if err != nil {
		return // list not created yet
	}
	defer func() { _ = f.Close() }()

	j.mu.Lock()
	offset := j.offset
	j.mu.Unlock()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return
	}

	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		return
	}

	// Only whole lines count; a partially written line is re-read next scan.
	text := string(data)
	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		return
	}
	consumed := int64(last + 1)

	for _, line := range strings.Split(text[:last], "\n") {
		if line == "" {
			continue
		}
		idx, ok := parseListLine(line)
		if !ok {
			j.logger.Warn().Str("line", line).Msg("unparseable segment list line")
			continue
		}
		j.emit(idx)
	}

	j.mu.Lock()
	j.offset = offset + consumed
	j.mu.Unlock()
}

func (j *job) emit(idx int) {
	j.mu.Lock()
	if _, dup := j.seen[idx]; dup {
		j.mu.Unlock()
		return
	}
	j.seen[idx] = struct{}{}
	j.mu.Unlock()

	// The engine drains this channel until it is closed, so a blocking
	// send cannot deadlock and notification order is preserved.
	j.segs <- idx
}

// parseListLine extracts the segment index from a csv list entry of the form
// "000042.ts,start_time,end_time".
func parseListLine(line string) (int, bool) {
	name := line
	if i := strings.IndexByte(line, ','); i >= 0 {
		name = line[:i]
	}
	name = strings.TrimSuffix(filepath.Base(name), ".ts")
	idx, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return idx, true
}
