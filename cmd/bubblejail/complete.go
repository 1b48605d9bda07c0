package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// autoCompleteCmd implements spec.md §4.8's `auto-complete COMP_LINE`:
// a raw bash-style completion shim that tokenizes COMP_LINE itself and
// asks cobra's command tree for the matching subcommand names,
// alongside cobra's own generated completion scripts
// (`bubblejail completion bash|zsh|fish`, stock cobra machinery) which
// a packaged shell-completion file can source directly. Grounded on
// ehrlich-b-wingthing/cmd/wt's multi-command cobra tree for the
// command-tree shape this walks.
func autoCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "auto-complete [COMP_LINE]",
		Short:  "Bash-compatible completion shim",
		Hidden: true,
		Args:   cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			compLine := os.Getenv("COMP_LINE")
			if len(args) > 0 {
				compLine = args[0]
			}

			words := strings.Fields(compLine)
			var toComplete string
			if len(words) > 1 {
				if strings.HasSuffix(compLine, " ") {
					toComplete = ""
				} else {
					toComplete = words[len(words)-1]
					words = words[:len(words)-1]
				}
			}
			if len(words) > 0 {
				words = words[1:] // drop the program name itself
			}

			target, _, err := cmd.Root().Find(words)
			if err != nil {
				target = cmd.Root()
			}
			for _, name := range subcommandNames(target) {
				if strings.HasPrefix(name, toComplete) {
					fmt.Println(name)
				}
			}
			return nil
		},
	}
}

func subcommandNames(cmd *cobra.Command) []string {
	var names []string
	for _, c := range cmd.Commands() {
		if !c.Hidden {
			names = append(names, c.Name())
		}
	}
	return names
}
