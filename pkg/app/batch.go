package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"tableflip.dev/todosync/pkg/state"
	"tableflip.dev/todosync/pkg/todo"
)

// BatchError reports the ids that failed inside a fan-out. Siblings of a
// failed id were not aborted.
type BatchError struct {
	Op     string
	Total  int
	Failed map[int]error
}

// IDs returns the failed ids in ascending order.
func (e *BatchError) IDs() []int {
	ids := make([]int, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (e *BatchError) Error() string {
	ids := e.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("app: %s: %d of %d failed (ids %s)", e.Op, len(ids), e.Total, strings.Join(parts, ", "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, id := range e.IDs() {
		errs = append(errs, e.Failed[id])
	}
	return errs
}

// Outcome is how one id in a fan-out settled.
type Outcome struct {
	ID  int
	Err error
}

// Succeeded collects the ids whose outcome has no error.
func Succeeded(outcomes []Outcome) map[int]struct{} {
	ok := make(map[int]struct{}, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			ok[o.ID] = struct{}{}
		}
	}
	return ok
}

// ClearCompleted deletes every completed item concurrently, each the way
// DeleteItems does, and waits for all of them to settle. The collection is
// then rebuilt from the snapshot taken at the start minus exactly the ids
// whose delete succeeded. Any failure keeps its id in the list, shows the
// Delete notice once and yields a *BatchError.
func (s *Service) ClearCompleted(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	snapshot := s.State.Items.Items()
	completed := todo.FilterCompleted.Apply(snapshot)
	if len(completed) == 0 {
		return nil
	}

	s.State.Notices.Clear()
	outcomes := s.settleDeletes(ctx, todo.IDs(completed))
	s.State.Items.ReplaceAll(state.Reconcile(snapshot, Succeeded(outcomes)))

	failed := make(map[int]error)
	for _, o := range outcomes {
		if o.Err != nil {
			failed[o.ID] = o.Err
		}
	}
	if len(failed) > 0 {
		s.State.Notices.Show(state.KindDelete)
		s.log().Warn("clear completed partially failed", "failed", len(failed), "total", len(outcomes))
		return &BatchError{Op: "clear completed", Total: len(outcomes), Failed: failed}
	}
	return nil
}

// settleDeletes launches one ordered delete per id without waiting between them
// and returns every outcome, in ids order, once all have finished.
func (s *Service) settleDeletes(ctx context.Context, ids []int) []Outcome {
	outcomes := make([]Outcome, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			err := s.deleteInOrder(ctx, []int{id})
			outcomes[i] = Outcome{ID: id, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ToggleDecision picks the branch of ToggleAllCompleted.
type ToggleDecision int

const (
	// SomeIncomplete completes only the items that are not done yet.
	SomeIncomplete ToggleDecision = iota
	// AllCompleted reopens every item.
	AllCompleted
)

func (d ToggleDecision) String() string {
	if d == AllCompleted {
		return "all-completed"
	}
	return "some-incomplete"
}

// DecideToggle chooses the toggle-all branch for items.
func DecideToggle(items []todo.Item) ToggleDecision {
	if todo.AllCompleted(items) {
		return AllCompleted
	}
	return SomeIncomplete
}

// ToggleAllCompleted reopens everything when every item is done, otherwise
// completes the rest. An empty collection is left alone.
func (s *Service) ToggleAllCompleted(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	items := s.State.Items.Items()
	if len(items) == 0 {
		return nil
	}
	switch DecideToggle(items) {
	case AllCompleted:
		return s.reopenAll(ctx, items)
	default:
		return s.completeRest(ctx, items)
	}
}

// reopenAll patches every item to completed=false in parallel. It is all or
// nothing: on full success the collection becomes exactly the returned items;
// on any failure nothing is applied, even for calls that already succeeded.
func (s *Service) reopenAll(ctx context.Context, items []todo.Item) error {
	guard := s.State.Loading.Begin(todo.IDs(items)...)
	defer guard.Release()

	updated := make([]todo.Item, len(items))
	var g errgroup.Group
	for i, it := range items {
		i, id := i, it.ID
		g.Go(func() error {
			got, err := s.Remote.Patch(ctx, id, todo.CompletedPatch(false))
			if err != nil {
				return fmt.Errorf("app: reopen %d: %w", id, err)
			}
			updated[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.State.Notices.Show(state.KindUpdate)
		s.log().Warn("toggle all failed", "decision", AllCompleted.String(), "err", err)
		return err
	}
	s.State.Items.ReplaceAll(updated)
	return nil
}

// completeRest patches only the incomplete items to completed=true and, on
// success, flips exactly those items in place. Items outside the batch keep
// their local representation.
func (s *Service) completeRest(ctx context.Context, items []todo.Item) error {
	active := todo.FilterActive.Apply(items)
	ids := todo.IDs(active)
	guard := s.State.Loading.Begin(ids...)
	defer guard.Release()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.Remote.Patch(ctx, id, todo.CompletedPatch(true)); err != nil {
				return fmt.Errorf("app: complete %d: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.State.Notices.Show(state.KindUpdate)
		s.log().Warn("toggle all failed", "decision", SomeIncomplete.String(), "err", err)
		return err
	}

	touched := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		touched[id] = struct{}{}
	}
	s.State.Items.MapInPlace(func(it todo.Item) todo.Item {
		if _, ok := touched[it.ID]; ok {
			it.Completed = true
		}
		return it
	})
	return nil
}

// IsBatchError reports whether err carries a *BatchError.
func IsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
