package commands

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tableflip.dev/todosync/pkg/app"
	"tableflip.dev/todosync/pkg/commands/options"
	"tableflip.dev/todosync/pkg/config"
	"tableflip.dev/todosync/pkg/logging"
	"tableflip.dev/todosync/pkg/printers"
	"tableflip.dev/todosync/pkg/remote"
	"tableflip.dev/todosync/pkg/runner/todos"
	"tableflip.dev/todosync/pkg/state"
	"tableflip.dev/todosync/pkg/todo"
)

var (
	output = &options.OutputOptions{}
)

// env is what PersistentPreRunE resolves for every subcommand.
type env struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func New() *cobra.Command {
	e := &env{v: config.New()}

	cmd := &cobra.Command{
		Use:           "todosync",
		Short:         "Keep a todo list in sync with a remote todo service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return e.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("api", config.DefaultAPI, "Base URL of the todo service.")
	flags.Int("user", 1, "User id whose todos are synced.")
	flags.Duration("notice-timeout", config.DefaultNoticeTimeout, "How long an error notice stays up. Zero keeps it until replaced.")
	flags.String("log-file", "", "Write logs to this rotating file instead of stderr.")
	flags.String("log-level", "info", `Log level. One of "debug", "info", "warn" or "error".`)
	for _, name := range []string{"api", "user", "notice-timeout", "log-file", "log-level"} {
		_ = e.v.BindPFlag(name, flags.Lookup(name))
	}
	options.AddOutputArg(cmd, output)

	addCommands(cmd, e)
	return cmd
}

func addCommands(topLevel *cobra.Command, e *env) {
	addList(topLevel, e)
	addAdd(topLevel, e)
	addEdit(topLevel, e)
	addToggle(topLevel, e)
	addDelete(topLevel, e)
	addClearCompleted(topLevel, e)
	addToggleAll(topLevel, e)
	addServe(topLevel, e)
	addMCP(topLevel, e)
	addVersion(topLevel)
}

func (e *env) setup() error {
	cfg, err := config.Load(e.v)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	e.cfg, e.logger, e.closer = cfg, logger, closer
	return nil
}

func (e *env) teardown() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

func (e *env) service() (*app.Service, error) {
	c, err := remote.NewHTTP(e.cfg.API, e.cfg.User, remote.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	svc := app.New(c, e.cfg.User, state.Options{NoticeTimeout: e.cfg.NoticeTimeout})
	svc.Logger = e.logger
	return svc, nil
}

func (e *env) session(f todo.Filter) (todos.Session, error) {
	svc, err := e.service()
	if err != nil {
		return todos.Session{}, err
	}
	return todos.Session{
		Service: svc,
		Printer: &printers.PrettyPrint{ShowID: output.ShowID},
		Filter:  f,
		JSON:    output.JSON,
	}, nil
}
