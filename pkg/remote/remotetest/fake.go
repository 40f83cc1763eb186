// Package remotetest provides an in-memory remote.Client for tests.
package remotetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"tableflip.dev/todosync/pkg/remote"
	"tableflip.dev/todosync/pkg/todo"
)

// Op names a remote call.
type Op string

const (
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpPatch  Op = "patch"
	OpRemove Op = "remove"
)

// Call records one request the fake received.
type Call struct {
	Op    Op
	ID    int
	Patch todo.Patch
	Draft todo.Draft
}

// ErrInjected is the default failure returned by Fail* helpers.
var ErrInjected = errors.New("remotetest: injected failure")

// Fake is a remote.Client that keeps items in memory. Failures may be
// injected per call kind and per id. It is safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	items  map[int]todo.Item
	order  []int
	nextID int
	calls  []Call

	fetchErr  error
	createErr error
	patchErr  map[int]error
	removeErr map[int]error

	// Before runs at the start of every call, outside the fake's lock. Tests
	// use it to observe in-flight state or to hold a call open.
	Before func(op Op, id int)
	// Canonicalize, when set, rewrites an item as the server would store it.
	Canonicalize func(todo.Item) todo.Item
}

var _ remote.Client = (*Fake)(nil)

// NewFake seeds the fake with items. New ids continue after the largest seed.
func NewFake(items ...todo.Item) *Fake {
	f := &Fake{
		items:     make(map[int]todo.Item),
		patchErr:  make(map[int]error),
		removeErr: make(map[int]error),
		nextID:    1,
	}
	for _, it := range items {
		f.items[it.ID] = it
		f.order = append(f.order, it.ID)
		if it.ID >= f.nextID {
			f.nextID = it.ID + 1
		}
	}
	return f
}

// FailFetch makes FetchAll return err.
func (f *Fake) FailFetch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = orInjected(err)
}

// FailCreate makes Create return err.
func (f *Fake) FailCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = orInjected(err)
}

// FailPatch makes Patch of id return err.
func (f *Fake) FailPatch(id int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchErr[id] = orInjected(err)
}

// FailRemove makes Remove of id return err.
func (f *Fake) FailRemove(id int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeErr[id] = orInjected(err)
}

// Heal clears every injected failure.
func (f *Fake) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = nil
	f.createErr = nil
	f.patchErr = make(map[int]error)
	f.removeErr = make(map[int]error)
}

func (f *Fake) FetchAll(ctx context.Context) ([]todo.Item, error) {
	f.before(OpFetch, 0)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpFetch})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]todo.Item, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id])
	}
	return out, nil
}

func (f *Fake) Create(ctx context.Context, draft todo.Draft) (todo.Item, error) {
	f.before(OpCreate, 0)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpCreate, Draft: draft})
	if err := ctx.Err(); err != nil {
		return todo.Item{}, err
	}
	if f.createErr != nil {
		return todo.Item{}, f.createErr
	}
	it := todo.Item{ID: f.nextID, UserID: draft.UserID, Title: draft.Title, Completed: draft.Completed}
	f.nextID++
	it = f.canonical(it)
	f.items[it.ID] = it
	f.order = append(f.order, it.ID)
	return it, nil
}

func (f *Fake) Patch(ctx context.Context, id int, patch todo.Patch) (todo.Item, error) {
	f.before(OpPatch, id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpPatch, ID: id, Patch: patch})
	if err := ctx.Err(); err != nil {
		return todo.Item{}, err
	}
	if err := f.patchErr[id]; err != nil {
		return todo.Item{}, err
	}
	it, ok := f.items[id]
	if !ok {
		return todo.Item{}, notFound(id)
	}
	it = f.canonical(patch.Apply(it))
	f.items[id] = it
	return it, nil
}

func (f *Fake) Remove(ctx context.Context, id int) error {
	f.before(OpRemove, id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpRemove, ID: id})
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.removeErr[id]; err != nil {
		return err
	}
	if _, ok := f.items[id]; !ok {
		return notFound(id)
	}
	delete(f.items, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// Calls returns every call received, in arrival order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOf returns the ids targeted by calls of op, in arrival order.
func (f *Fake) CallsOf(op Op) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int
	for _, c := range f.calls {
		if c.Op == op {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// SortedCallsOf is CallsOf sorted, for fan-outs with no ordering guarantee.
func (f *Fake) SortedCallsOf(op Op) []int {
	ids := f.CallsOf(op)
	sort.Ints(ids)
	return ids
}

// Stored returns what the fake currently holds, in creation order.
func (f *Fake) Stored() []todo.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]todo.Item, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id])
	}
	return out
}

func (f *Fake) before(op Op, id int) {
	if f.Before != nil {
		f.Before(op, id)
	}
}

func (f *Fake) canonical(it todo.Item) todo.Item {
	if f.Canonicalize != nil {
		return f.Canonicalize(it)
	}
	return it
}

func notFound(id int) error {
	return &remote.StatusError{Method: "fake", URL: fmt.Sprintf("todos/%d", id), Code: 404, Message: "Not Found"}
}

func orInjected(err error) error {
	if err == nil {
		return ErrInjected
	}
	return err
}
