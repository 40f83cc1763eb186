package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is emitted by Persistence.Watch when files under the store change.
// Users lists the owners whose items changed; it is empty when the change
// could not be attributed, and callers should then refresh everything.
type Event struct {
	Users []int
}

// Watch streams change events until ctx is cancelled. Callers should drain the
// returned channel to avoid blocking the watcher. The channel is closed once
// ctx is done or the watcher encounters an unrecoverable error.
func (p *persistence) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}
	var closeOnce sync.Once
	closeWatcher := func() {
		closeOnce.Do(func() {
			if err := watcher.Close(); err != nil {
				p.logger.Warn("store: watcher close", "err", err)
			}
		})
	}

	dirs, err := collectDirs(p.basePath)
	if err != nil {
		closeWatcher()
		return nil, fmt.Errorf("store: enumerate directories: %w", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			closeWatcher()
			return nil, fmt.Errorf("store: watch %s: %w", dir, err)
		}
	}

	events := make(chan Event, 64)

	go func() {
		defer close(events)
		defer closeWatcher()

		watched := make(map[string]struct{}, len(dirs))
		for _, dir := range dirs {
			watched[dir] = struct{}{}
		}

		send := func(ev Event) {
			select {
			case events <- ev:
			default:
				// A slow consumer will refresh on the next event anyway.
			}
		}

		batch := newUserBatch(100 * time.Millisecond)
		defer batch.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("store: watch error, refreshing everything", "err", err)
				batch.Enqueue(-1, send)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						dir := filepath.Clean(evt.Name)
						if _, found := watched[dir]; !found {
							if err := watcher.Add(dir); err != nil {
								p.logger.Warn("store: watch new directory", "dir", dir, "err", err)
							} else {
								watched[dir] = struct{}{}
							}
						}
						continue
					}
				}
				user, ok := p.userForPath(evt.Name)
				if !ok {
					// The index and its temp file change on every write and
					// carry nothing a consumer needs.
					continue
				}
				batch.Enqueue(user, send)
			}
		}
	}()

	return events, nil
}

// collectDirs walks base and returns all directories that should be watched.
func collectDirs(base string) ([]string, error) {
	dirs := []string{base}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() && path != base {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

// userForPath derives the owning user from an item file path.
func (p *persistence) userForPath(path string) (int, bool) {
	rel, err := filepath.Rel(p.basePath, path)
	if err != nil || rel == "." {
		return 0, false
	}
	parts := strings.Split(rel, string(os.PathSeparator))
	if len(parts) != 2 {
		return 0, false
	}
	user, _, ok := parseKey(parts[0] + "-" + parts[1])
	return user, ok
}

// userBatch coalesces a burst of file events into one Event. A negative
// user marks the batch as unattributed.
type userBatch struct {
	mu      sync.Mutex
	timer   *time.Timer
	users   map[int]struct{}
	unknown bool
	stopped bool
	delay   time.Duration
}

func newUserBatch(delay time.Duration) *userBatch {
	return &userBatch{delay: delay, users: make(map[int]struct{})}
}

func (b *userBatch) Enqueue(user int, send func(Event)) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	if user < 0 {
		b.unknown = true
	} else {
		b.users[user] = struct{}{}
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, func() {
			b.flush(send)
		})
	}
	b.mu.Unlock()
}

func (b *userBatch) flush(send func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	users, unknown := b.users, b.unknown
	b.users = make(map[int]struct{})
	b.unknown = false
	b.timer = nil
	if b.stopped {
		return
	}

	if unknown {
		send(Event{})
		return
	}
	ev := Event{Users: make([]int, 0, len(users))}
	for u := range users {
		ev.Users = append(ev.Users, u)
	}
	sort.Ints(ev.Users)
	send(ev)
}

// Stop drops anything pending. send is never called after Stop returns.
func (b *userBatch) Stop() {
	b.mu.Lock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
}
