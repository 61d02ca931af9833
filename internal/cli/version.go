package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentplatform/version"
)

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validFormat(a.output); err != nil {
				return exitWithCode(ExitUsage, err)
			}
			info := version.Get()
			return render(cmd.OutOrStdout(), a.output, info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "agentchat %s (%s)\n", info.Short(), info.GoVersion)
				return err
			})
		},
	}
}
