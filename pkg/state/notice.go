package state

import (
	"sync"
	"time"
)

// Kind identifies a category of failed user action.
type Kind int

const (
	KindNone Kind = iota
	KindLoad
	KindAdd
	KindDelete
	KindUpdate
	KindClearCompleted
	KindEmpty
)

var messages = map[Kind]string{
	KindLoad:           "Unable to load todos",
	KindAdd:            "Unable to add a todo",
	KindDelete:         "Unable to delete a todo",
	KindUpdate:         "Unable to update a todo",
	KindClearCompleted: "Unable to clear completed todos",
	KindEmpty:          "Title should not be empty",
}

// Message is the fixed user-facing text for k.
func (k Kind) Message() string {
	return messages[k]
}

func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindAdd:
		return "add"
	case KindDelete:
		return "delete"
	case KindUpdate:
		return "update"
	case KindClearCompleted:
		return "clear-completed"
	case KindEmpty:
		return "empty"
	default:
		return "none"
	}
}

// Notice is the error banner currently shown to the user.
type Notice struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Shown   time.Time `json:"shown"`
}

// Notices holds the last surfaced error. When timeout is positive a shown
// notice clears itself after that long unless it was replaced or cleared.
type Notices struct {
	mu      sync.RWMutex
	current Notice
	seq     uint64
	timer   *time.Timer
	timeout time.Duration
	now     func() time.Time
	emit    func(ChangeKind)
}

// Show replaces the current notice with the message for kind.
func (n *Notices) Show(kind Kind) {
	if kind == KindNone {
		n.Clear()
		return
	}
	n.mu.Lock()
	n.seq++
	seq := n.seq
	n.current = Notice{Kind: kind, Message: kind.Message(), Shown: n.clock()}
	n.stopTimerLocked()
	if n.timeout > 0 {
		n.timer = time.AfterFunc(n.timeout, func() { n.expire(seq) })
	}
	n.mu.Unlock()
	n.changed()
}

// Clear removes the current notice.
func (n *Notices) Clear() {
	n.mu.Lock()
	n.seq++
	had := n.current.Kind != KindNone
	n.current = Notice{}
	n.stopTimerLocked()
	n.mu.Unlock()
	if had {
		n.changed()
	}
}

// Current returns the shown notice and whether there is one.
func (n *Notices) Current() (Notice, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current, n.current.Kind != KindNone
}

// Message returns the shown text, or "" when nothing is shown.
func (n *Notices) Message() string {
	cur, _ := n.Current()
	return cur.Message
}

func (n *Notices) expire(seq uint64) {
	n.mu.Lock()
	if n.seq != seq {
		n.mu.Unlock()
		return
	}
	n.current = Notice{}
	n.timer = nil
	n.mu.Unlock()
	n.changed()
}

func (n *Notices) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Notices) clock() time.Time {
	if n.now != nil {
		return n.now()
	}
	return time.Now()
}

func (n *Notices) changed() {
	if n.emit != nil {
		n.emit(ChangeNotice)
	}
}
