// Package todo defines the task item shared by the remote store, the local
// collection and the CLI.
package todo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item is a single todo as the remote store returns it. ID is assigned by the
// remote store and never changes afterwards.
type Item struct {
	ID        int    `json:"id"`
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Draft is the payload used to create an item. The remote store assigns the id.
type Draft struct {
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// TitlePatch builds a patch that only changes the title.
func TitlePatch(title string) Patch {
	return Patch{Title: &title}
}

// CompletedPatch builds a patch that only changes the completed flag.
func CompletedPatch(completed bool) Patch {
	return Patch{Completed: &completed}
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Completed == nil
}

// Apply returns a copy of it with the patch fields applied.
func (p Patch) Apply(it Item) Item {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
	}
	return it
}

func (p Patch) String() string {
	parts := make([]string, 0, 2)
	if p.Title != nil {
		parts = append(parts, fmt.Sprintf("title=%q", *p.Title))
	}
	if p.Completed != nil {
		parts = append(parts, fmt.Sprintf("completed=%t", *p.Completed))
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Draft returns the create payload for an item, dropping its id.
func (it Item) Draft() Draft {
	return Draft{UserID: it.UserID, Title: it.Title, Completed: it.Completed}
}

func (it Item) String() string {
	mark := " "
	if it.Completed {
		mark = "x"
	}
	return fmt.Sprintf("[%s] %d %s", mark, it.ID, it.Title)
}

// IDs returns the ids of items in order.
func IDs(items []Item) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// AllCompleted reports whether every item is completed. It is false for an
// empty list.
func AllCompleted(items []Item) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !it.Completed {
			return false
		}
	}
	return true
}

// Filter selects which items a view shows.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter maps user input to a Filter.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterCompleted:
		return FilterCompleted, nil
	}
	return "", fmt.Errorf("todo: unknown filter %q", s)
}

// Apply returns the items matching f, preserving order.
func (f Filter) Apply(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		switch f {
		case FilterActive:
			if it.Completed {
				continue
			}
		case FilterCompleted:
			if !it.Completed {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// MarshalList serialises items for CLI output.
func MarshalList(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.MarshalIndent(items, "", "  ")
}
