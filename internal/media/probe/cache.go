// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"

	"github.com/recviewd/recviewd/internal/metrics"
)

// cachedEntry is the persisted cache record. The fingerprint invalidates the
// entry when the recording file changes on disk.
type cachedEntry struct {
	Fingerprint string `json:"fingerprint"`
	Result      Result `json:"result"`
}

// Cache wraps a Prober with a persistent result cache. Keyframe scans over
// multi-hour recordings are expensive; their results never change for an
// unchanged file, so they are cached across restarts. Concurrent probes of
// the same file collapse into one via singleflight.
type Cache struct {
	db    *badger.DB
	inner Prober
	group singleflight.Group
}

// NewCache wraps inner with the badger-backed cache.
func NewCache(db *badger.DB, inner Prober) *Cache {
	return &Cache{db: db, inner: inner}
}

func (c *Cache) Probe(ctx context.Context, path string) (Result, error) {
	fp, err := fingerprint(path)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if res, ok := c.lookup(path, fp); ok {
		metrics.RecordProbeCache("hit")
		return res, nil
	}
	metrics.RecordProbeCache("miss")

	v, err, _ := c.group.Do(path, func() (any, error) {
		res, err := c.inner.Probe(ctx, path)
		if err != nil {
			return Result{}, err
		}
		c.store(path, fp, res)
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (c *Cache) lookup(path, fp string) (Result, bool) {
	var entry cachedEntry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		// Not-found and corrupt entries are both misses; a corrupt entry
		// is overwritten by the fresh probe.
		return Result{}, false
	}
	if entry.Fingerprint != fp {
		return Result{}, false
	}
	return entry.Result, true
}

func (c *Cache) store(path, fp string, res Result) {
	raw, err := json.Marshal(cachedEntry{Fingerprint: fp, Result: res})
	if err != nil {
		return
	}
	_ = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(path), raw)
	})
}

func cacheKey(path string) []byte {
	return []byte("probe:v1:" + path)
}

// fingerprint identifies a file's current content cheaply. Recordings are
// written once and never modified in place, so size+mtime is sufficient.
func fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano()), nil
}
