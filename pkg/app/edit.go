package app

import (
	"context"
	"fmt"
	"strings"

	"tableflip.dev/todosync/pkg/state"
	"tableflip.dev/todosync/pkg/todo"
)

// EditResult tells the caller whether its edit control should stay open.
type EditResult int

const (
	// EditClosed means the edit finished and its control can go away.
	EditClosed EditResult = iota
	// EditOpen means the edit failed and its control should keep the input.
	EditOpen
)

func (r EditResult) String() string {
	if r == EditOpen {
		return "open"
	}
	return "closed"
}

// BeginEdit starts an edit session on id: focus locks onto the edit field.
func (s *Service) BeginEdit(id int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, ok := s.State.Items.Get(id); !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.State.Focus.Lock()
	return nil
}

// SubmitTitle finishes an edit of id's title with raw input.
//
// An unchanged title closes the edit without a remote call. A title that is
// blank after trimming clears any stale notice and deletes the item, it
// never patches. Otherwise the trimmed title is patched; on failure focus is
// re-locked and the edit stays open.
func (s *Service) SubmitTitle(ctx context.Context, id int, raw string) (EditResult, error) {
	if err := s.ready(); err != nil {
		return EditOpen, err
	}
	cur, ok := s.State.Items.Get(id)
	if !ok {
		return EditClosed, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	title := strings.TrimSpace(raw)
	if title == cur.Title {
		return EditClosed, nil
	}

	if title == "" {
		s.State.Notices.Clear()
		if err := s.DeleteOne(ctx, id); err != nil {
			return EditOpen, err
		}
		return EditClosed, nil
	}

	if _, err := s.EditItem(ctx, id, todo.TitlePatch(title)); err != nil {
		s.State.Focus.Lock()
		return EditOpen, err
	}
	return EditClosed, nil
}

// ToggleItem flips the completed flag of id.
func (s *Service) ToggleItem(ctx context.Context, id int) (todo.Item, error) {
	if err := s.ready(); err != nil {
		return todo.Item{}, err
	}
	cur, ok := s.State.Items.Get(id)
	if !ok {
		return todo.Item{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s.EditItem(ctx, id, todo.CompletedPatch(!cur.Completed))
}

// AddTitle creates an open item owned by the service's user. A blank title
// shows the Empty notice and makes no remote call.
func (s *Service) AddTitle(ctx context.Context, title string) (todo.Item, error) {
	if err := s.ready(); err != nil {
		return todo.Item{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		s.State.Notices.Show(state.KindEmpty)
		return todo.Item{}, ErrEmptyTitle
	}
	return s.CreateItem(ctx, todo.Draft{UserID: s.UserID, Title: title})
}

// ActiveCount is the number of items not yet completed.
func (s *Service) ActiveCount() int {
	return len(todo.FilterActive.Apply(s.State.Items.Items()))
}

// CompletedCount is the number of completed items.
func (s *Service) CompletedCount() int {
	return len(todo.FilterCompleted.Apply(s.State.Items.Items()))
}

// AllCompleted reports whether the toggle-all control should show as on.
func (s *Service) AllCompleted() bool {
	return todo.AllCompleted(s.State.Items.Items())
}
