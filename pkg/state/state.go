// Package state holds the client-side view of the todo list: the item
// collection, the busy set, the error banner and the focus lock. The sync
// orchestrator in pkg/app is the only writer; renderers read snapshots and
// subscribe to change events.
package state

import (
	"context"
	"sync"
	"time"

	"tableflip.dev/todosync/pkg/todo"
)

// ChangeKind names the container that changed.
type ChangeKind int

const (
	ChangeItems ChangeKind = iota
	ChangeLoading
	ChangeNotice
	ChangeFocus
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeItems:
		return "items"
	case ChangeLoading:
		return "loading"
	case ChangeNotice:
		return "notice"
	case ChangeFocus:
		return "focus"
	}
	return "unknown"
}

// Change is emitted to subscribers when a container changes.
type Change struct {
	Kind ChangeKind
}

// Options tunes a State.
type Options struct {
	// NoticeTimeout auto-hides a shown notice after this long. Zero keeps it
	// until cleared or replaced.
	NoticeTimeout time.Duration
	// Throttle coalesces bursts of changes into one event per kind. Zero
	// delivers every change immediately.
	Throttle time.Duration
}

// State bundles the four containers.
type State struct {
	Items   *Collection
	Loading *Loading
	Notices *Notices
	Focus   *Focus

	bus *bus
}

// New builds an empty State.
func New(opts Options) *State {
	b := newBus(opts.Throttle)
	return &State{
		Items:   &Collection{emit: b.publish},
		Loading: &Loading{emit: b.publish},
		Notices: &Notices{timeout: opts.NoticeTimeout, emit: b.publish},
		Focus:   &Focus{emit: b.publish},
		bus:     b,
	}
}

// Snapshot is everything a renderer needs, copied at one moment.
type Snapshot struct {
	Items   []todo.Item
	Loading LoadingSet
	Notice  Notice
	Focused bool
}

// Snapshot copies the current state. Each container is read under its own
// lock, so the parts may straddle a concurrent change.
func (s *State) Snapshot() Snapshot {
	notice, _ := s.Notices.Current()
	return Snapshot{
		Items:   s.Items.Items(),
		Loading: s.Loading.Current(),
		Notice:  notice,
		Focused: s.Focus.Locked(),
	}
}

// Subscribe streams change events until ctx is cancelled. Callers should drain
// the channel; events are dropped rather than blocking writers, and a reader
// that falls behind should re-read a Snapshot.
func (s *State) Subscribe(ctx context.Context) <-chan Change {
	return s.bus.subscribe(ctx)
}

type bus struct {
	mu       sync.Mutex
	next     int
	subs     map[int]chan Change
	throttle *changeThrottle
}

func newBus(delay time.Duration) *bus {
	b := &bus{subs: make(map[int]chan Change)}
	if delay > 0 {
		b.throttle = newChangeThrottle(delay)
	}
	return b
}

func (b *bus) publish(kind ChangeKind) {
	if b.throttle != nil {
		b.throttle.Enqueue(kind, b.send)
		return
	}
	b.send(Change{Kind: kind})
}

func (b *bus) send(ev Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *bus) subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, 64)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// changeThrottle coalesces rapid notifications so a renderer redraws once
// per burst.
type changeThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending map[ChangeKind]struct{}
	delay   time.Duration
}

func newChangeThrottle(delay time.Duration) *changeThrottle {
	return &changeThrottle{
		delay:   delay,
		pending: make(map[ChangeKind]struct{}),
	}
}

func (t *changeThrottle) Enqueue(kind ChangeKind, send func(Change)) {
	t.mu.Lock()
	t.pending[kind] = struct{}{}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, func() {
			t.flush(send)
		})
	}
	t.mu.Unlock()
}

func (t *changeThrottle) flush(send func(Change)) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[ChangeKind]struct{})
	t.timer = nil
	t.mu.Unlock()

	for kind := range pending {
		send(Change{Kind: kind})
	}
}
