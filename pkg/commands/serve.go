package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/todosync/pkg/config"
	"tableflip.dev/todosync/pkg/server"
	"tableflip.dev/todosync/pkg/store"
)

func addServe(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference todo service backed by a local store.",
		Example: `
todosync serve
todosync serve --listen :9090 --path /tmp/todos
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := store.Load(e.cfg, store.WithLogger(e.logger))
			if err != nil {
				return err
			}
			s := server.New(p, e.logger)
			return s.Run(cmd.Context(), e.cfg.Listen)
		},
	}

	cmd.Flags().String("listen", config.DefaultListen, "Address to listen on.")
	cmd.Flags().String("path", config.DefaultPath, "Directory the store keeps its files in.")
	_ = e.v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	_ = e.v.BindPFlag("path", cmd.Flags().Lookup("path"))

	topLevel.AddCommand(cmd)
}
