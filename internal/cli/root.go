// Package cli implements the configdist command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gihan9a/configdist/internal/config"
	xlog "gihan9a/configdist/internal/log"
	"gihan9a/configdist/internal/notify"
	"gihan9a/configdist/internal/reconcile"
)

const version = "0.1.0"

// Exit codes
const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitUsageError = 2
	ExitDrift      = 3
)

// exitError carries an exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: ExitUsageError, err: err} }

func failure(err error) error { return &exitError{code: ExitFailure, err: err} }

// errDrift is returned in check mode when an own file is out of date
var errDrift = errors.New("configuration is not up to date")

type options struct {
	configFile string
	dist       string
	own        string
	indent     string
	check      bool
	watch      bool
	verbose    bool
	noColor    bool
}

// NewRootCommand builds the command tree writing to out and errOut
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "configdist [targets...]",
		Short: "Keep local JSON config files in sync with their dist templates",
		Long: `configdist creates each own config file from its dist template when it is
missing. When it exists, keys the template has and the own file lacks are
added automatically; keys only the own file has are listed as removal
suggestions and never deleted.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := ""
			if opts.verbose {
				level = "debug"
			}
			xlog.Configure(xlog.Config{Level: level, Output: errOut, Console: true})
			if opts.noColor {
				notify.SetColor(false)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args, notify.NewConsole(out))
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Path to the task file (default "+config.DefaultFile+")")
	flags.StringVar(&opts.dist, "dist", "", "Dist template path; with --own, replaces the task file targets")
	flags.StringVar(&opts.own, "own", "", "Own config path; with --dist, replaces the task file targets")
	flags.StringVar(&opts.indent, "indent", "", "Indentation used when rewriting own files")
	flags.BoolVar(&opts.check, "check", false, "Report drift without writing; exit 3 when an own file is out of date")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "Keep running and reconcile again whenever a dist file changes")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	root.MarkFlagsMutuallyExclusive("check", "watch")

	root.AddCommand(newInitCommand(out))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print configdist version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "configdist version %s\n", version)
		},
	})

	return root
}

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	root := NewRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return exitCode(root.Execute(), os.Stderr)
}

func exitCode(err error, errOut io.Writer) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, errDrift) {
		return ExitDrift
	}

	// Task failures were already reported by the reconciler
	var rerr *reconcile.Error
	if errors.As(err, &rerr) {
		return ExitFailure
	}

	var ee *exitError
	if errors.As(err, &ee) {
		fmt.Fprintf(errOut, "Error: %v\n", ee.err)
		return ee.code
	}

	// Anything else comes from flag or argument parsing
	fmt.Fprintf(errOut, "Error: %v\n", err)
	return ExitUsageError
}
