package cmd

import (
	"fmt"

	"github.com/josephlewis42/tsh/core/shell"
	"github.com/spf13/cobra"
)

var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the commands the shell runs itself.",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range shell.BuiltinNames() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, shell.AllBuiltins[name].Description())
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
