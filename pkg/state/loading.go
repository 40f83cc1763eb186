package state

import (
	"sort"
	"sync"
)

// LoadingMode distinguishes the three shapes of the busy set.
type LoadingMode int

const (
	// LoadingNone means nothing is in flight.
	LoadingNone LoadingMode = iota
	// LoadingAll marks every item busy.
	LoadingAll
	// LoadingExplicit marks exactly the listed ids busy.
	LoadingExplicit
)

func (m LoadingMode) String() string {
	switch m {
	case LoadingAll:
		return "all"
	case LoadingExplicit:
		return "explicit"
	default:
		return "none"
	}
}

// LoadingSet is a point-in-time copy of the busy set.
type LoadingSet struct {
	Mode LoadingMode
	IDs  []int
}

// Has reports whether id should render as busy.
func (s LoadingSet) Has(id int) bool {
	switch s.Mode {
	case LoadingAll:
		return true
	case LoadingExplicit:
		for _, v := range s.IDs {
			if v == id {
				return true
			}
		}
	}
	return false
}

// Loading tracks which items have an operation in flight. It is single
// flight: Begin replaces whatever was busy before, and End clears everything
// no matter who began it. Two operations started back to back without
// waiting will clobber each other's indicator.
type Loading struct {
	mu   sync.RWMutex
	mode LoadingMode
	ids  map[int]struct{}
	emit func(ChangeKind)
}

// Begin marks exactly ids busy and returns a guard that clears the set when
// released.
func (l *Loading) Begin(ids ...int) *Guard {
	l.mu.Lock()
	l.mode = LoadingExplicit
	l.ids = idSet(ids)
	l.mu.Unlock()
	l.changed()
	return &Guard{l: l}
}

// BeginAll marks every item busy.
func (l *Loading) BeginAll() *Guard {
	l.mu.Lock()
	l.mode = LoadingAll
	l.ids = nil
	l.mu.Unlock()
	l.changed()
	return &Guard{l: l}
}

// End clears the busy set.
func (l *Loading) End() {
	l.mu.Lock()
	l.mode = LoadingNone
	l.ids = nil
	l.mu.Unlock()
	l.changed()
}

// Busy reports whether id is currently marked busy.
func (l *Loading) Busy(id int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch l.mode {
	case LoadingAll:
		return true
	case LoadingExplicit:
		_, ok := l.ids[id]
		return ok
	}
	return false
}

// Current returns a copy of the busy set with ids sorted.
func (l *Loading) Current() LoadingSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	set := LoadingSet{Mode: l.mode}
	if l.mode == LoadingExplicit {
		set.IDs = make([]int, 0, len(l.ids))
		for id := range l.ids {
			set.IDs = append(set.IDs, id)
		}
		sort.Ints(set.IDs)
	}
	return set
}

func (l *Loading) changed() {
	if l.emit != nil {
		l.emit(ChangeLoading)
	}
}

// Guard is a scoped busy marker. Release is safe to call more than once and
// only the first call has an effect.
type Guard struct {
	l    *Loading
	once sync.Once
}

// Release clears the busy set.
func (g *Guard) Release() {
	if g == nil || g.l == nil {
		return
	}
	g.once.Do(g.l.End)
}
