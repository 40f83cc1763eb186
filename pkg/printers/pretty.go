package printers

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/todosync/pkg/state"
	"tableflip.dev/todosync/pkg/todo"
)

const (
	done = "[x]"
	open = "[ ]"
	busy = "…"
)

type PrettyPrint struct {
	ShowID bool
	// Out defaults to color.Output.
	Out io.Writer
}

func (pp *PrettyPrint) out() io.Writer {
	if pp.Out != nil {
		return pp.Out
	}
	return color.Output
}

func (pp *PrettyPrint) NewLine() {
	_, _ = fmt.Fprintln(pp.out(), "")
}

func (pp *PrettyPrint) Title(title string) {
	t := color.New(color.Bold, color.Underline)
	_, _ = t.Fprintln(pp.out(), title)
}

func (pp *PrettyPrint) TitleWithCount(title string, count int) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.out(), title)
	_, _ = c.Fprintf(pp.out(), " - %d", count)

	switch count {
	case 1:
		_, _ = c.Fprintln(pp.out(), " item")
	default:
		_, _ = c.Fprintln(pp.out(), " items")
	}
}

// Items prints one row per item. Rows in loading are marked busy.
func (pp *PrettyPrint) Items(loading state.LoadingSet, items ...todo.Item) {
	if len(items) == 0 {
		f := color.New(color.Faint, color.Italic)
		_, _ = f.Fprint(pp.out(), " none\n\n")
		return
	}

	y := color.New(color.FgHiYellow, color.Italic, color.Faint)
	g := color.New(color.FgGreen)
	s := color.New(color.Faint, color.CrossedOut)

	tbl := uitable.New()
	tbl.Separator = "  "
	for _, it := range items {
		mark, title := open, it.Title
		if it.Completed {
			mark, title = g.Sprint(done), s.Sprint(it.Title)
		}
		row := []interface{}{}
		if pp.ShowID {
			row = append(row, y.Sprint(strconv.Itoa(it.ID)))
		}
		row = append(row, mark, title)
		if loading.Has(it.ID) {
			row = append(row, y.Sprint(busy))
		}
		tbl.AddRow(row...)
	}
	if pp.ShowID {
		tbl.RightAlign(0)
	}
	_, _ = fmt.Fprintln(pp.out(), tbl)
	pp.NewLine()
}

// Notice prints the current error banner, if any.
func (pp *PrettyPrint) Notice(n state.Notice) {
	if n.Kind == state.KindNone {
		return
	}
	r := color.New(color.FgRed, color.Bold)
	_, _ = r.Fprintln(pp.out(), n.Message)
}

// Footer prints the remaining count the way the list footer reads.
func (pp *PrettyPrint) Footer(active int) {
	c := color.New(color.Faint)
	switch active {
	case 1:
		_, _ = c.Fprintln(pp.out(), "1 item left")
	default:
		_, _ = c.Fprintf(pp.out(), "%d items left\n", active)
	}
}

// Snapshot prints the list under title filtered by f, then the footer and
// any notice.
func (pp *PrettyPrint) Snapshot(title string, snap state.Snapshot, f todo.Filter) {
	shown := f.Apply(snap.Items)
	pp.TitleWithCount(title, len(shown))
	pp.Items(snap.Loading, shown...)
	pp.Footer(len(todo.FilterActive.Apply(snap.Items)))
	pp.Notice(snap.Notice)
}

// JSON writes v as indented JSON.
func (pp *PrettyPrint) JSON(v interface{}) error {
	enc := json.NewEncoder(pp.out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
