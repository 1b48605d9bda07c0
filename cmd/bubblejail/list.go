package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bubblejail/bubblejail/internal/instance"
	"github.com/bubblejail/bubblejail/internal/service"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "list {instances|profiles|services}",
		Short:     "List instances, profiles, or built-in services",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"instances", "profiles", "services"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "instances":
				names, err := instance.List()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Println(n)
				}
			case "profiles":
				names, err := instance.ListProfiles()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Println(n)
				}
			case "services":
				r := service.NewRegistry()
				for _, name := range r.List() {
					fmt.Println(name)
				}
			}
			return nil
		},
	}
	return cmd
}
