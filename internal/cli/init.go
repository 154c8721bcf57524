package cli

import (
	"io"

	"github.com/spf13/cobra"

	"gihan9a/configdist/internal/config"
	"gihan9a/configdist/internal/notify"
)

func newInitCommand(out io.Writer) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default task file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveDefaultConfig(path); err != nil {
				return usageError(err)
			}
			notify.NewConsole(out).Notify(notify.Record{
				Severity: notify.Success,
				Message:  "Task file `" + path + "` generated. Edit its targets to match your project.",
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", config.DefaultFile, "Path where the task file should be generated")
	return cmd
}
