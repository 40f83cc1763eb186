package state

import "sync"

// Focuser is implemented by the edit control that should take keyboard focus
// whenever the lock engages.
type Focuser interface {
	Focus()
}

// FocuserFunc adapts a function to Focuser.
type FocuserFunc func()

func (f FocuserFunc) Focus() { f() }

// Focus is the "focus stays on the active edit field" lock. Deletes release
// it while rows disappear and take it back once they finish.
type Focus struct {
	mu       sync.Mutex
	locked   bool
	next     int
	focusers map[int]Focuser
	emit     func(ChangeKind)
}

// Lock engages the lock. Attached focusers run only on a false to true
// transition.
func (f *Focus) Lock() {
	f.mu.Lock()
	if f.locked {
		f.mu.Unlock()
		return
	}
	f.locked = true
	targets := make([]Focuser, 0, len(f.focusers))
	for _, t := range f.focusers {
		targets = append(targets, t)
	}
	f.mu.Unlock()

	for _, t := range targets {
		t.Focus()
	}
	f.changed()
}

// Unlock releases the lock.
func (f *Focus) Unlock() {
	f.mu.Lock()
	was := f.locked
	f.locked = false
	f.mu.Unlock()
	if was {
		f.changed()
	}
}

func (f *Focus) Locked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked
}

// Attach registers t and returns a function that detaches it.
func (f *Focus) Attach(t Focuser) (detach func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.focusers == nil {
		f.focusers = make(map[int]Focuser)
	}
	id := f.next
	f.next++
	f.focusers[id] = t
	return func() {
		f.mu.Lock()
		delete(f.focusers, id)
		f.mu.Unlock()
	}
}

func (f *Focus) changed() {
	if f.emit != nil {
		f.emit(ChangeFocus)
	}
}
