package commands

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/todosync/pkg/commands/options"
	"tableflip.dev/todosync/pkg/runner/todos"
	"tableflip.dev/todosync/pkg/todo"
)

func addList(topLevel *cobra.Command, e *env) {
	fo := &options.FilterOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "get"},
		Short:   "List todos.",
		Example: `
todosync list
todosync list --filter active
todosync list --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := fo.Get()
			if err != nil {
				return err
			}
			s, err := e.session(f)
			if err != nil {
				return err
			}
			l := todos.List{Session: s}
			return output.HandleError(l.Do(cmd.Context()))
		},
	}
	options.AddFilterArg(cmd, fo)

	topLevel.AddCommand(cmd)
}

func addAdd(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a todo.",
		Example: `
todosync add buy milk
`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a title")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.session(todo.FilterAll)
			if err != nil {
				return err
			}
			a := todos.Add{Session: s, Title: strings.Join(args, " ")}
			return output.HandleError(a.Do(cmd.Context()))
		},
	}

	topLevel.AddCommand(cmd)
}

func addEdit(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "edit <id> [title]",
		Short: "Change the title of a todo. An empty title deletes it.",
		Example: `
todosync edit 3 buy oat milk
todosync edit 3 ""
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.New("requires a todo id")
			}
			s, err := e.session(todo.FilterAll)
			if err != nil {
				return err
			}
			ed := todos.Edit{Session: s, ID: id, Title: strings.Join(args[1:], " ")}
			return output.HandleError(ed.Do(cmd.Context()))
		},
	}

	topLevel.AddCommand(cmd)
}

func addToggle(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:     "toggle <id>...",
		Aliases: []string{"complete", "done"},
		Short:   "Flip todos between active and completed.",
		Example: `
todosync toggle 3
todosync done 3 4
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := options.ParseIDs(args)
			if err != nil {
				return err
			}
			s, err := e.session(todo.FilterAll)
			if err != nil {
				return err
			}
			t := todos.Toggle{Session: s, IDs: ids}
			return output.HandleError(t.Do(cmd.Context()))
		},
	}

	topLevel.AddCommand(cmd)
}

func addDelete(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete todos in order, stopping at the first failure.",
		Example: `
todosync delete 3
todosync rm 3 4 5
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := options.ParseIDs(args)
			if err != nil {
				return err
			}
			s, err := e.session(todo.FilterAll)
			if err != nil {
				return err
			}
			d := todos.Delete{Session: s, IDs: ids}
			return output.HandleError(d.Do(cmd.Context()))
		},
	}

	topLevel.AddCommand(cmd)
}

func addClearCompleted(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed todo.",
		Example: `
todosync clear-completed
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.session(todo.FilterAll)
			if err != nil {
				return err
			}
			c := todos.ClearCompleted{Session: s}
			return output.HandleError(c.Do(cmd.Context()))
		},
	}

	topLevel.AddCommand(cmd)
}

func addToggleAll(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "toggle-all",
		Short: "Complete every todo, or reopen all of them when all are done.",
		Example: `
todosync toggle-all
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.session(todo.FilterAll)
			if err != nil {
				return err
			}
			t := todos.ToggleAll{Session: s}
			return output.HandleError(t.Do(cmd.Context()))
		},
	}

	topLevel.AddCommand(cmd)
}
