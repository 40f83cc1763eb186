package options

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tableflip.dev/todosync/pkg/app"
)

// OutputOptions
type OutputOptions struct {
	JSON   bool
	ShowID bool
}

// AddOutputArg registers output flags on cmd and every subcommand.
func AddOutputArg(cmd *cobra.Command, po *OutputOptions) {
	cmd.PersistentFlags().BoolVar(&po.JSON, "json", false,
		"Output as JSON.")
	cmd.PersistentFlags().BoolVarP(&po.ShowID, "show-id", "k", true,
		"Show the id of each todo.")
}

// HandleError prints err as JSON when JSON output is on. A partial batch
// failure also lists the ids that failed.
func (o *OutputOptions) HandleError(err error) error {
	if o.JSON && err != nil {
		out := map[string]interface{}{
			"error": err.Error(),
		}
		var be *app.BatchError
		if errors.As(err, &be) {
			out["failed"] = be.IDs()
		}
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(color.Output, string(b))
		return nil
	}
	return err
}
