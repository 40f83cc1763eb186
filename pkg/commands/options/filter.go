package options

import (
	"github.com/spf13/cobra"

	"tableflip.dev/todosync/pkg/todo"
)

// FilterOptions
type FilterOptions struct {
	Filter string
}

func AddFilterArg(cmd *cobra.Command, o *FilterOptions) {
	cmd.Flags().StringVarP(&o.Filter, "filter", "f", string(todo.FilterAll),
		`Which todos to show. One of "all", "active" or "completed".`)
	_ = cmd.RegisterFlagCompletionFunc("filter", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(todo.FilterAll), string(todo.FilterActive), string(todo.FilterCompleted)}, cobra.ShellCompDirectiveNoFileComp
	})
}

func (o *FilterOptions) Get() (todo.Filter, error) {
	return todo.ParseFilter(o.Filter)
}
