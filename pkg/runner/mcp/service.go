// Package mcp exposes the todo actions as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tableflip.dev/todosync/pkg/app"
	"tableflip.dev/todosync/pkg/todo"
)

// Service runs one tool call at a time against app.Service. Every call
// reloads the remote list first so a long-lived server never acts on a stale
// collection.
type Service struct {
	App *app.Service

	mu sync.Mutex
}

// ListResult is what every tool returns: the list after the action, filtered
// for list_todos and complete otherwise.
type ListResult struct {
	Items  []todo.Item `json:"items"`
	Active int         `json:"active"`
	Notice string      `json:"notice,omitempty"`
	// Failed lists the ids a batch action could not apply.
	Failed []int `json:"failed,omitempty"`
}

// NewService wraps svc.
func NewService(svc *app.Service) *Service {
	return &Service{App: svc}
}

// ListTodos returns the remote list filtered by f.
func (s *Service) ListTodos(ctx context.Context, f todo.Filter) (ListResult, error) {
	return s.do(ctx, f, nil)
}

// AddTodo creates an open item titled title.
func (s *Service) AddTodo(ctx context.Context, title string) (ListResult, error) {
	return s.do(ctx, todo.FilterAll, func(ctx context.Context, svc *app.Service) error {
		_, err := svc.AddTitle(ctx, title)
		return err
	})
}

// RenameTodo submits title for id the way the edit field does, so a blank
// title deletes the item.
func (s *Service) RenameTodo(ctx context.Context, id int, title string) (ListResult, error) {
	return s.do(ctx, todo.FilterAll, func(ctx context.Context, svc *app.Service) error {
		if err := svc.BeginEdit(id); err != nil {
			return err
		}
		_, err := svc.SubmitTitle(ctx, id, title)
		return err
	})
}

// ToggleTodo flips the completed flag of id.
func (s *Service) ToggleTodo(ctx context.Context, id int) (ListResult, error) {
	return s.do(ctx, todo.FilterAll, func(ctx context.Context, svc *app.Service) error {
		_, err := svc.ToggleItem(ctx, id)
		return err
	})
}

// DeleteTodos removes ids in order and stops at the first failure.
func (s *Service) DeleteTodos(ctx context.Context, ids []int) (ListResult, error) {
	if len(ids) == 0 {
		return ListResult{}, errors.New("at least one id is required")
	}
	return s.do(ctx, todo.FilterAll, func(ctx context.Context, svc *app.Service) error {
		for _, id := range ids {
			if _, ok := svc.State.Items.Get(id); !ok {
				return fmt.Errorf("%w: %d", app.ErrNotFound, id)
			}
		}
		return svc.DeleteItems(ctx, ids)
	})
}

// ClearCompleted deletes every completed item.
func (s *Service) ClearCompleted(ctx context.Context) (ListResult, error) {
	return s.do(ctx, todo.FilterAll, func(ctx context.Context, svc *app.Service) error {
		return svc.ClearCompleted(ctx)
	})
}

// ToggleAll completes the rest, or reopens everything when all are done.
func (s *Service) ToggleAll(ctx context.Context) (ListResult, error) {
	return s.do(ctx, todo.FilterAll, func(ctx context.Context, svc *app.Service) error {
		return svc.ToggleAllCompleted(ctx)
	})
}

// do loads, applies action and snapshots the result. The result is filled in
// even when action fails so the caller can report the notice and failed ids.
func (s *Service) do(ctx context.Context, f todo.Filter, action func(context.Context, *app.Service) error) (ListResult, error) {
	if s.App == nil {
		return ListResult{}, errors.New("service is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.App.Load(ctx)
	if err == nil && action != nil {
		err = action(ctx, s.App)
	}

	snap := s.App.State.Snapshot()
	res := ListResult{
		Items:  f.Apply(snap.Items),
		Active: len(todo.FilterActive.Apply(snap.Items)),
		Notice: snap.Notice.Message,
	}
	if be, ok := app.IsBatchError(err); ok {
		res.Failed = be.IDs()
	}
	return res, err
}
