// Package todos provides the runner logic behind the todo CLI commands. Every
// runner loads the list, performs one action through app.Service and prints
// the resulting list.
package todos

import (
	"context"
	"errors"
	"fmt"

	"tableflip.dev/todosync/pkg/app"
	"tableflip.dev/todosync/pkg/printers"
	"tableflip.dev/todosync/pkg/state"
	"tableflip.dev/todosync/pkg/todo"
)

// Session is what every runner shares.
type Session struct {
	Service *app.Service
	Printer *printers.PrettyPrint
	Filter  todo.Filter
	JSON    bool
}

// View is the JSON form of the printed list.
type View struct {
	Items  []todo.Item `json:"items"`
	Busy   []int       `json:"busy,omitempty"`
	Active int         `json:"active"`
	Notice string      `json:"notice,omitempty"`
}

// NewView renders snap filtered by f.
func NewView(snap state.Snapshot, f todo.Filter) View {
	v := View{
		Items:  f.Apply(snap.Items),
		Active: len(todo.FilterActive.Apply(snap.Items)),
		Notice: snap.Notice.Message,
	}
	if snap.Loading.Mode == state.LoadingExplicit {
		v.Busy = snap.Loading.IDs
	}
	return v
}

// run loads the list, applies action and prints the result. The list is
// printed even when action fails so its notice is visible; the action's error
// is returned.
func (s *Session) run(ctx context.Context, action func(context.Context, *app.Service) error) error {
	if s.Service == nil {
		return errors.New("can not run, no service")
	}
	if err := s.Service.Load(ctx); err != nil {
		if perr := s.print(); perr != nil {
			return perr
		}
		return err
	}
	var err error
	if action != nil {
		err = action(ctx, s.Service)
	}
	if perr := s.print(); perr != nil {
		return perr
	}
	return err
}

func (s *Session) print() error {
	pp := s.Printer
	if pp == nil {
		pp = &printers.PrettyPrint{}
	}
	f := s.Filter
	if f == "" {
		f = todo.FilterAll
	}
	snap := s.Service.State.Snapshot()
	if s.JSON {
		return pp.JSON(NewView(snap, f))
	}
	pp.NewLine()
	pp.Snapshot(title(f), snap, f)
	return nil
}

func title(f todo.Filter) string {
	switch f {
	case todo.FilterActive:
		return "active"
	case todo.FilterCompleted:
		return "completed"
	default:
		return "todos"
	}
}

// List prints the list.
type List struct {
	Session
}

func (l *List) Do(ctx context.Context) error {
	return l.run(ctx, nil)
}

// Add creates an item from Title.
type Add struct {
	Session
	Title string
}

func (a *Add) Do(ctx context.Context) error {
	return a.run(ctx, func(ctx context.Context, svc *app.Service) error {
		_, err := svc.AddTitle(ctx, a.Title)
		return err
	})
}

// Edit replaces the title of ID. A blank title deletes the item.
type Edit struct {
	Session
	ID    int
	Title string
}

func (e *Edit) Do(ctx context.Context) error {
	return e.run(ctx, func(ctx context.Context, svc *app.Service) error {
		if err := svc.BeginEdit(e.ID); err != nil {
			return err
		}
		_, err := svc.SubmitTitle(ctx, e.ID, e.Title)
		return err
	})
}

// Toggle flips each of IDs in order, stopping at the first failure.
type Toggle struct {
	Session
	IDs []int
}

func (t *Toggle) Do(ctx context.Context) error {
	return t.run(ctx, func(ctx context.Context, svc *app.Service) error {
		for _, id := range t.IDs {
			if _, err := svc.ToggleItem(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes IDs one after another.
type Delete struct {
	Session
	IDs []int
}

func (d *Delete) Do(ctx context.Context) error {
	return d.run(ctx, func(ctx context.Context, svc *app.Service) error {
		for _, id := range d.IDs {
			if _, ok := svc.State.Items.Get(id); !ok {
				return fmt.Errorf("%w: %d", app.ErrNotFound, id)
			}
		}
		return svc.DeleteItems(ctx, d.IDs)
	})
}

// ClearCompleted deletes every completed item.
type ClearCompleted struct {
	Session
}

func (c *ClearCompleted) Do(ctx context.Context) error {
	return c.run(ctx, func(ctx context.Context, svc *app.Service) error {
		return svc.ClearCompleted(ctx)
	})
}

// ToggleAll completes everything, or reopens everything when all items are
// already done.
type ToggleAll struct {
	Session
}

func (t *ToggleAll) Do(ctx context.Context) error {
	return t.run(ctx, func(ctx context.Context, svc *app.Service) error {
		return svc.ToggleAllCompleted(ctx)
	})
}
