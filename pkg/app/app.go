// Package app is the sync orchestrator. It drives the remote store and keeps
// the local state in pkg/state consistent with it, so UIs and CLIs share one
// implementation of every user action.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tableflip.dev/todosync/pkg/remote"
	"tableflip.dev/todosync/pkg/state"
	"tableflip.dev/todosync/pkg/todo"
)

// Service provides the user-facing operations. It is the only writer of
// State; renderers only read it.
type Service struct {
	Remote remote.Client
	State  *state.State
	// UserID owns items created through AddTitle.
	UserID int
	Logger *slog.Logger
}

var (
	// ErrNoRemote is returned when the service has no remote client.
	ErrNoRemote = errors.New("app: no remote configured")
	// ErrNoState is returned when the service has no state to drive.
	ErrNoState = errors.New("app: no state configured")
	// ErrNotFound is returned for an id missing from the local collection.
	ErrNotFound = errors.New("app: item not found")
	// ErrEmptyTitle is returned when a new item has a blank title.
	ErrEmptyTitle = errors.New("app: title should not be empty")
)

// New wires a Service around c with a fresh State.
func New(c remote.Client, userID int, opts state.Options) *Service {
	return &Service{Remote: c, State: state.New(opts), UserID: userID}
}

// Load replaces the collection with the remote list. Every row is busy while
// the fetch runs.
func (s *Service) Load(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	guard := s.State.Loading.BeginAll()
	defer guard.Release()

	items, err := s.Remote.FetchAll(ctx)
	if err != nil {
		s.State.Notices.Show(state.KindLoad)
		s.log().Warn("load failed", "err", err)
		return fmt.Errorf("app: load: %w", err)
	}
	s.State.Items.ReplaceAll(items)
	s.log().Debug("loaded", "count", len(items))
	return nil
}

// EditItem patches id and stores the canonical item the remote returns. On
// failure the Update notice is shown and the error is returned so the caller
// can keep its edit control open.
func (s *Service) EditItem(ctx context.Context, id int, patch todo.Patch) (todo.Item, error) {
	if err := s.ready(); err != nil {
		return todo.Item{}, err
	}
	guard := s.State.Loading.Begin(id)
	defer guard.Release()

	it, err := s.Remote.Patch(ctx, id, patch)
	if err != nil {
		s.State.Notices.Show(state.KindUpdate)
		s.log().Warn("edit failed", "id", id, "patch", patch.String(), "err", err)
		return todo.Item{}, fmt.Errorf("app: edit %d: %w", id, err)
	}
	s.State.Items.UpdateOne(id, it)
	return it, nil
}

// CreateItem creates draft remotely and appends the canonical item. It does
// not mark anything busy: creation has its own always-visible input.
func (s *Service) CreateItem(ctx context.Context, draft todo.Draft) (todo.Item, error) {
	if err := s.ready(); err != nil {
		return todo.Item{}, err
	}
	it, err := s.Remote.Create(ctx, todo.Draft{
		UserID:    draft.UserID,
		Completed: draft.Completed,
		Title:     draft.Title,
	})
	if err != nil {
		s.State.Notices.Show(state.KindAdd)
		s.log().Warn("create failed", "title", draft.Title, "err", err)
		return todo.Item{}, fmt.Errorf("app: create: %w", err)
	}
	if err := s.State.Items.Append(it); err != nil {
		return it, fmt.Errorf("app: create: %w", err)
	}
	return it, nil
}

// DeleteItems removes ids one at a time in order, waiting for each remote
// delete before issuing the next. Each local item goes away right after its
// own remote delete succeeds, so the first failure leaves earlier ids removed
// and the rest untouched. Focus is released while rows disappear and taken
// back on every exit path.
func (s *Service) DeleteItems(ctx context.Context, ids []int) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.State.Notices.Clear()
	if err := s.deleteInOrder(ctx, ids); err != nil {
		s.State.Notices.Show(state.KindDelete)
		return err
	}
	return nil
}

// deleteInOrder is DeleteItems without notice handling. Fan-outs clear the
// notice once up front and report failures after every sibling settles.
func (s *Service) deleteInOrder(ctx context.Context, ids []int) error {
	s.State.Focus.Unlock()
	guard := s.State.Loading.Begin(ids...)
	defer func() {
		s.State.Focus.Lock()
		guard.Release()
	}()

	for _, id := range ids {
		if err := s.Remote.Remove(ctx, id); err != nil {
			s.log().Warn("delete failed", "id", id, "err", err)
			return fmt.Errorf("app: delete %d: %w", id, err)
		}
		s.State.Items.RemoveMany(id)
	}
	return nil
}

// DeleteOne removes a single item without touching focus; the caller owns
// the edit control.
func (s *Service) DeleteOne(ctx context.Context, id int) error {
	if err := s.ready(); err != nil {
		return err
	}
	guard := s.State.Loading.Begin(id)
	defer guard.Release()

	if err := s.Remote.Remove(ctx, id); err != nil {
		s.State.Notices.Show(state.KindDelete)
		s.log().Warn("delete failed", "id", id, "err", err)
		return fmt.Errorf("app: delete %d: %w", id, err)
	}
	s.State.Items.RemoveMany(id)
	return nil
}

func (s *Service) ready() error {
	if s.Remote == nil {
		return ErrNoRemote
	}
	if s.State == nil {
		return ErrNoState
	}
	return nil
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
