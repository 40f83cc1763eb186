// Package remote talks to the todo store over its four calls: fetch the
// list, create, patch and delete by id.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tableflip.dev/todosync/pkg/todo"
)

// Client is the boundary to the remote store. Create and Patch return the
// canonical item as stored; every call fails with a non-nil error the
// caller can inspect.
type Client interface {
	FetchAll(ctx context.Context) ([]todo.Item, error)
	Create(ctx context.Context, draft todo.Draft) (todo.Item, error)
	Patch(ctx context.Context, id int, patch todo.Patch) (todo.Item, error)
	Remove(ctx context.Context, id int) error
}

// ErrNotFound is matched by a StatusError carrying 404.
var ErrNotFound = errors.New("remote: not found")

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	Method  string
	URL     string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("remote: %s %s: status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("remote: %s %s: status %d: %s", e.Method, e.URL, e.Code, msg)
}

// Is lets errors.Is(err, ErrNotFound) match a 404.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == 404
}

// Temporary reports whether retrying the same call may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == 408 || e.Code == 429 || e.Code >= 500
}
