package main

import (
	"fmt"
	"os"
	"path/filepath"

	xdg "github.com/cep21/xdgbasedir"
	"github.com/spf13/cobra"

	"github.com/bubblejail/bubblejail/internal/instance"
)

// generate-desktop-entry and create's desktop-entry step are explicit
// external collaborators per spec.md §1 ("a simple file writer"); this
// file is intentionally minimal, stdlib plus the same xdgbasedir
// already used throughout internal/instance for every other XDG path.

func generateDesktopEntryCmd() *cobra.Command {
	var profileName, desktopEntryName string

	cmd := &cobra.Command{
		Use:   "generate-desktop-entry NAME",
		Short: "(Re)generate the desktop entry for an existing instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := instance.Open(name); err != nil {
				return err
			}

			entryName := name
			switch {
			case desktopEntryName != "":
				entryName = desktopEntryName
			case profileName != "":
				p, err := instance.FindProfile(profileName)
				if err != nil {
					return fmt.Errorf("profile %q: %w", profileName, err)
				}
				if p.DesktopEntryName != "" {
					entryName = p.DesktopEntryName
				}
			}

			path, err := writeDesktopEntry(name, entryName)
			if err != nil {
				return err
			}
			fmt.Printf("wrote desktop entry %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&profileName, "profile", "", "take the desktop entry name from this profile")
	cmd.Flags().StringVar(&desktopEntryName, "desktop-entry", "", "original application name shown in the generated entry")
	return cmd
}

// writeDesktopEntry writes $XDG_DATA_HOME/applications/bubblejail-<name>.desktop
// per spec.md §6, with Exec=bubblejail run <name> -- and
// Name=<original> (bubble).
func writeDesktopEntry(instanceName, originalName string) (string, error) {
	dataHome, err := xdg.DataHomeDirectory()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(dataHome, "applications")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("bubblejail-%s.desktop", instanceName))

	contents := fmt.Sprintf(
		"[Desktop Entry]\nType=Application\nVersion=1.0\nName=%s (bubble)\nExec=bubblejail run %s --\nIcon=bubblejail\nTerminal=false\nCategories=\n",
		originalName, instanceName,
	)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		return "", err
	}
	return path, nil
}
