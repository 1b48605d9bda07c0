package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bubblejail/bubblejail/internal/instance"
)

func createCmd() *cobra.Command {
	var profileName string
	var noDesktopEntry bool

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new sandbox instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var profile *instance.Profile
			if profileName != "" {
				p, err := instance.FindProfile(profileName)
				if err != nil {
					return fmt.Errorf("profile %q: %w", profileName, err)
				}
				profile = p
			}

			inst, err := instance.Create(name, profile)
			if err != nil {
				return err
			}
			fmt.Printf("created instance %q at %s\n", inst.Name, inst.Dir)

			if !noDesktopEntry {
				entryName := inst.Name
				if profile != nil && profile.DesktopEntryName != "" {
					entryName = profile.DesktopEntryName
				}
				path, err := writeDesktopEntry(inst.Name, entryName)
				if err != nil {
					fmt.Printf("warning: could not write desktop entry: %v\n", err)
				} else {
					fmt.Printf("wrote desktop entry %s\n", path)
				}
			}
			if profile != nil && profile.ImportTip != "" {
				fmt.Println(profile.ImportTip)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profileName, "profile", "", "seed the new instance from a named profile")
	cmd.Flags().BoolVar(&noDesktopEntry, "no-desktop-entry", false, "do not generate a desktop entry")
	return cmd
}
