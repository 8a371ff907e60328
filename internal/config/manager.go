package config

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reincarnation/internal/store"
	"reincarnation/pkg/logx"
)

// ErrNotWatchable is returned by Watch when the store has no backing
// file to observe (sqlite, disabled).
var ErrNotWatchable = errors.New("store is not file-backed")

// Manager owns the current settings snapshot.
//
// Readers (the scheduler polling the enable flags, the trigger engine
// walking the rules) call Get and work against an immutable snapshot;
// Apply swaps the snapshot wholesale and persists it. The original host
// serialized all access on one admin thread — the snapshot swap is what
// makes concurrent readers safe here.
type Manager struct {
	st store.Store

	mu  sync.RWMutex
	cfg *Config

	// subsMu guards the subscriber list and ensures we never send on a
	// channel that is concurrently being closed in Unsubscribe().
	subsMu sync.Mutex
	subs   []chan *Config

	log logx.Logger

	// lastHash tracks the last committed record content so redundant
	// watcher reloads don't republish an unchanged snapshot.
	lastHash uint64
}

// NewManager builds a manager over a store. A nil store is allowed: the
// manager then runs memory-only (Load yields defaults, Apply skips the
// save).
func NewManager(st store.Store) *Manager {
	return &Manager{st: st}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// Load populates the snapshot from the store. A missing record (first
// run) is not an error; it loads the defaults.
func (m *Manager) Load(ctx context.Context) (*Config, error) {
	cfg, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

func (m *Manager) read(ctx context.Context) (*Config, error) {
	if m.st == nil {
		return Default(), nil
	}
	b, err := m.st.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg, err := DecodeRecord(b)
	if err != nil {
		return nil, err
	}
	cfg.Sanitize()
	return cfg, nil
}

// Get returns the current snapshot. Treat it as read-only; Apply never
// mutates a snapshot that has already been handed out.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Apply overwrites the whole record from the submission, persists it and
// publishes the new snapshot. Validation never blocks the save: a form
// with a warning-level field still commits.
func (m *Manager) Apply(ctx context.Context, sub Submission) (*Config, error) {
	cfg := sub.record()
	cfg.Sanitize()

	if m.st != nil {
		b, err := EncodeRecord(cfg)
		if err != nil {
			return nil, err
		}
		if err := m.st.Save(ctx, b); err != nil {
			return nil, fmt.Errorf("save settings record: %w", err)
		}
	}

	m.commit(cfg)
	m.publish(cfg)
	return cfg, nil
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashRecord(cfg)
	m.mu.Unlock()
}

// Subscribe returns a channel that receives every newly committed
// snapshot. Slow subscribers lose intermediate snapshots, never the
// latest one.
func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			// swap-remove (order doesn't matter)
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

func (m *Manager) publish(cfg *Config) {
	// Hold subsMu while sending to avoid send-on-closed panics.
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		if ch == nil {
			continue
		}
		// If the subscriber is slow and its buffer is full, drop one
		// oldest item then push the newest.
		select {
		case ch <- cfg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
				if !m.log.IsZero() {
					m.log.Debug("settings update dropped (subscriber slow)",
						logx.Int("queue_len", len(ch)),
						logx.Int("queue_cap", cap(ch)),
					)
				}
			}
		}
	}
}

// reload re-reads the store and publishes the snapshot if the content
// actually changed.
func (m *Manager) reload(ctx context.Context) {
	cfg, err := m.read(ctx)
	if err != nil {
		if !m.log.IsZero() {
			m.log.Warn("settings reload failed", logx.Err(err))
		}
		return
	}

	h := hashRecord(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		return
	}

	m.commit(cfg)
	m.publish(cfg)
	if !m.log.IsZero() {
		m.log.Info("settings reloaded", logx.String("hash", fmt.Sprintf("%x", h)))
	}
}

// Watch follows external edits to a file-backed store until ctx is done.
//
// Events are debounced so editors that write in several steps trigger a
// single reload. When the watcher breaks (channel closed, backend error)
// it is recreated with a jittered backoff instead of giving up.
func (m *Manager) Watch(ctx context.Context) error {
	p, ok := m.st.(store.Path)
	if !ok || p.Path() == "" {
		return ErrNotWatchable
	}
	dir := filepath.Dir(p.Path())
	file := filepath.Base(p.Path())

	const (
		backoffBase = 250 * time.Millisecond
		backoffMax  = 5 * time.Second
	)
	backoff := backoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	wait := func() time.Duration {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < backoffMax {
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
		return d
	}

	// debounce to avoid reading partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() { m.reload(ctx) })
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("settings watch init failed", logx.Err(err), logx.String("dir", dir))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait()):
				continue
			}
		}

		// success; reset backoff so transient issues don't cause long
		// restart delays
		backoff = backoffBase
		if !m.log.IsZero() {
			m.log.Debug("settings watcher started", logx.String("dir", dir), logx.String("file", file))
		}

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				// Compare by basename; rename-based saves report the
				// temp name on some platforms.
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
						debounce()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow means events were missed; reload once and
				// keep going.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					debounce()
					continue
				}
				if !m.log.IsZero() {
					m.log.Warn("settings watch error", logx.Err(err), logx.String("dir", dir))
				}
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		d := wait()
		if !m.log.IsZero() {
			m.log.Warn("settings watcher stopped; restarting",
				logx.String("dir", dir),
				logx.Duration("backoff", d),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}
	}
}
