package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/josephlewis42/tsh/core/config"
	"github.com/josephlewis42/tsh/core/logger"
	"github.com/josephlewis42/tsh/core/logging"
	"github.com/josephlewis42/tsh/core/shell"
)

var (
	cfgPath  string
	verbose  bool
	noPrompt bool
	command  string

	// exitCode is the status the process exits with once the command is done.
	exitCode int
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// loadShellConfig loads the configuration the shell runs with. The shell
// works without a configuration directory, it just doesn't persist anything.
func loadShellConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		configuration = config.Default()
	case err != nil:
		return nil, err
	}

	if err := configuration.ApplyEnv(); err != nil {
		return nil, err
	}
	if verbose {
		configuration.Verbose = true
		configuration.LogLevel = "debug"
	}
	if noPrompt {
		configuration.EmitPrompt = false
	}

	return configuration, configuration.Validate()
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tsh",
	Short: "A tiny shell",
	Long: `A tiny shell that runs pipelines of programs.

Each line is a pipeline: prog [args...] [< in] [| prog [args...]]... [> out]
Operators must be separated by whitespace.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cmd.SilenceUsage = true

		configuration, err := loadShellConfig()
		if err != nil {
			return err
		}

		diagnostics, err := logging.New(logging.Config{
			Level:       configuration.LogLevel,
			Development: configuration.Verbose,
		}, os.Stderr)
		if err != nil {
			return err
		}
		defer diagnostics.Sync()

		events := logger.NewNopLogger()
		eventLog, err := configuration.OpenEventLog()
		if err != nil {
			return err
		}
		if eventLog != nil {
			defer closeWith(&err, eventLog)
			events = logger.NewJsonLinesLogRecorder(eventLog)
		}

		sh, err := shell.New(shell.Options{
			Config: configuration,
			Events: events.NewSession(),
			Logger: diagnostics,
		})
		if err != nil {
			return err
		}
		defer closeWith(&err, sh)

		diagnostics.Debug("starting shell",
			zap.String("config", configuration.Dir()),
			zap.Bool("search_path", configuration.SearchPath),
			zap.Bool("terminal_handoff", configuration.TerminalHandoff))

		if cmd.Flags().Changed("command") {
			exitCode = sh.RunLine(command)
			return nil
		}

		exitCode = sh.Run()
		return nil
	},
}

func closeWith(err *error, c io.Closer) {
	*err = multierr.Append(*err, c.Close())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the status of every stage and debug logs")
	rootCmd.Flags().BoolVarP(&noPrompt, "no-prompt", "p", false, "don't print a prompt")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit with its status")
}
