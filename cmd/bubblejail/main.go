// Command bubblejail is the CLI surface described in spec.md §4.8/§6
// (C10): create/edit/run instances, list instances/profiles/services,
// generate desktop entries, and serve shell completion. Subcommand
// trees follow ehrlich-b-wingthing/cmd/wt's one-function-per-command
// cobra layout.
package main

import (
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bubblejail/bubblejail/internal/bjerror"
	"github.com/bubblejail/bubblejail/internal/cliutil"
	"github.com/bubblejail/bubblejail/internal/nslimits"
)

func main() {
	// The namespaces_limits helper is re-exec'd as this same binary
	// (internal/nslimits.selfApplyFlag); intercept it before cobra ever
	// sees argv, the same short-circuit setuid-helper pattern many CLI
	// tools use ahead of their flag framework.
	if nslimits.IsSelfApplyInvocation(os.Args) {
		nslimits.RunSelfApply(os.Args[2:])
		return
	}

	os.Exit(mainExitCode())
}

func mainExitCode() int {
	var verbose bool

	root := &cobra.Command{
		Use:           "bubblejail",
		Short:         "Launch and manage bubblewrap-sandboxed desktop applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cliutil.SetVerbose(verbose)
	}

	root.AddCommand(
		createCmd(),
		runCmd(),
		listCmd(),
		editCmd(),
		generateDesktopEntryCmd(),
		autoCompleteCmd(),
	)

	if err := root.Execute(); err != nil {
		return reportAndExitCode(err)
	}
	return 0
}

// reportAndExitCode logs err in spec.md §7's single-line
// "bubblejail: <kind>: <detail>" form, posts a desktop notification for
// non-trivial failures, and returns the exit code its bjerror.Kind maps
// to (or 1, for an error that never went through bjerror).
func reportAndExitCode(err error) int {
	var bjErr *bjerror.Error
	if errors.As(err, &bjErr) {
		cliutil.Errorf(bjErr)
		if bjErr.Kind != bjerror.KindAlreadyRunning && bjErr.Kind != bjerror.KindCancelled {
			cliutil.Notify("bubblejail error", bjErr.Error())
		}
		if bjErr.Kind == bjerror.KindSandboxExit {
			if code, convErr := strconv.Atoi(bjErr.Detail); convErr == nil {
				return sandboxExitCode(code)
			}
		}
		return bjErr.Kind.ExitCode()
	}
	cliutil.Errorf(err)
	return 1
}

// sandboxExitCode caps a passthrough sandboxed-program exit code at
// 125 per spec.md §6, leaving 126-255 free for bubblejail's own
// machine-readable exit codes.
func sandboxExitCode(code int) int {
	if code > 125 {
		return 125
	}
	if code < 0 {
		return 125
	}
	return code
}
