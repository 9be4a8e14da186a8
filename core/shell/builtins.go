package shell

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	getopt "github.com/pborman/getopt/v2"
)

// AllBuiltins holds a list of all registered shell builtins.
var AllBuiltins = make(map[string]Builtin)

// Builtin is a command the shell runs itself. Builtins never reach the
// pipeline runner.
type Builtin interface {
	Main(s *Shell, args []string) int
	Description() string
}

// SimpleCommand is a builtin with getopt style flags.
type SimpleCommand struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the command.
	Short string
	// Setup registers the command's flags.
	Setup func(flags *getopt.Set)
	// Callback runs the command once its flags are parsed.
	Callback func(s *Shell, flags *getopt.Set) int
	// NegativeNumbers treats arguments like -1 as operands rather than flags.
	NegativeNumbers bool
}

func (c *SimpleCommand) Description() string {
	return c.Short
}

// PrintHelp writes help for the command to the given writer.
func (c *SimpleCommand) PrintHelp(w io.Writer, flags *getopt.Set) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, c.Use)
	fmt.Fprintln(w, c.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	flags.PrintOptions(w)
}

// Main parses the flags and runs the callback if that was successful.
func (c *SimpleCommand) Main(s *Shell, args []string) int {
	flags := getopt.New()
	if c.Setup != nil {
		c.Setup(flags)
	}
	showHelp := flags.BoolLong("help", 'h', "show this help and exit")

	if c.NegativeNumbers {
		args = endFlagsAtNumber(args)
	}

	if err := flags.Getopt(args, nil); err != nil {
		fmt.Fprintf(s.stderr(), "error: %s\n\n", err)
		c.PrintHelp(s.stdout(), flags)
		return 2
	}

	if *showHelp {
		c.PrintHelp(s.stdout(), flags)
		return 0
	}

	return c.Callback(s, flags)
}

var _ Builtin = (*SimpleCommand)(nil)

// endFlagsAtNumber inserts "--" before the first argument that is a negative
// number so getopt stops looking for flags there.
func endFlagsAtNumber(args []string) []string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return args
		}
		if len(arg) > 1 && arg[0] == '-' && arg[1] >= '0' && arg[1] <= '9' {
			out := append([]string{}, args[:i]...)
			out = append(out, "--")
			return append(out, args[i:]...)
		}
	}
	return args
}

func quit(s *Shell, flags *getopt.Set) int {
	s.Exit(0)
	return 0
}

func exit(s *Shell, flags *getopt.Set) int {
	code := s.LastStatus()
	switch args := flags.Args(); len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(s.stderr(), "exit: %s: numeric argument required\n", args[0])
			code = 2
			break
		}
		// Statuses wrap like the kernel's 8 bit exit code.
		code = int(uint8(n))
	default:
		fmt.Fprintln(s.stderr(), "exit: too many arguments")
		return 1
	}

	s.Exit(code)
	return code
}

func help(s *Shell, flags *getopt.Set) int {
	w := s.stdout()
	fmt.Fprintln(w, "tsh, a tiny shell")
	fmt.Fprintln(w, "Run programs and pipelines: prog [args...] [< in] [| prog [args...]]... [> out]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")

	for _, name := range BuiltinNames() {
		fmt.Fprintf(w, "  %-6s %s\n", name, AllBuiltins[name].Description())
	}

	return 0
}

// BuiltinNames returns the names of every builtin, sorted.
func BuiltinNames() []string {
	var names []string
	for name := range AllBuiltins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	AllBuiltins["quit"] = &SimpleCommand{
		Use:      "quit",
		Short:    "Exit the shell with status 0.",
		Callback: quit,
	}
	AllBuiltins["exit"] = &SimpleCommand{
		Use:      "exit [n]",
		Short:    "Exit the shell with status n, or the status of the last command.",
		Callback: exit,

		NegativeNumbers: true,
	}
	AllBuiltins["help"] = &SimpleCommand{
		Use:      "help",
		Short:    "Show this help.",
		Callback: help,
	}
}
