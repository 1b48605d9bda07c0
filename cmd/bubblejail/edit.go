package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/bubblejail/bubblejail/internal/instance"
)

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit NAME",
		Short: "Edit an instance's services.toml in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := instance.Open(args[0])
			if err != nil {
				return err
			}

			// Serialize against a concurrent `run` startup per spec.md
			// §4.4/§5 — the same advisory instance.Lock both edit and the
			// Runner's startup path take.
			lock, err := inst.Lock()
			if err != nil {
				return fmt.Errorf("instance %q is in use: %w", inst.Name, err)
			}
			defer lock.Release()

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}

			path := inst.Dir + "/services.toml"
			cmd2 := exec.Command(editor, path)
			cmd2.Stdin, cmd2.Stdout, cmd2.Stderr = os.Stdin, os.Stdout, os.Stderr
			return cmd2.Run()
		},
	}
}
