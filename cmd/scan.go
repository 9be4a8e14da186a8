package cmd

import (
	"fmt"
	"strings"

	"github.com/josephlewis42/tsh/core/pipeline"
	"github.com/josephlewis42/tsh/core/shell"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

type scanResult struct {
	Tokens     []string           `json:"tokens"`
	Background bool               `json:"background,omitempty"`
	Pipeline   *pipeline.Pipeline `json:"pipeline"`
}

var scanCmd = &cobra.Command{
	Use:   "scan -- LINE...",
	Short: "Show how a command line is split into pipeline stages.",
	Long: `Show how a command line is split into pipeline stages without running it.

The arguments are joined with spaces and parsed like a line typed at the
prompt, so quote the line or put it after --:

	tsh scan -- 'cat < in.txt | sort -r > out.txt'
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		line, err := shell.ParseLine(strings.Join(args, " "))
		if err != nil {
			return err
		}

		p, err := pipeline.Scan(line.Tokens)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(scanResult{
			Tokens:     line.Tokens,
			Background: line.Background,
			Pipeline:   p,
		})
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
