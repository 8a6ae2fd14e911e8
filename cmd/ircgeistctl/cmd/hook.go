package cmd

import (
	"github.com/mfulz/ircgeist/internal/controlcli"
	"github.com/spf13/cobra"
)

// HookCmd lists hook points and their subscriber handles.
var HookCmd = &cobra.Command{
	Use:   "hooks",
	Short: "List hook points and subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		hooks, err := controlcli.ListHooks(clientCfg, target)
		if err != nil {
			return err
		}
		for _, h := range hooks.Hooks {
			cmd.Printf("%s (%d)\n", h.Name, len(h.Subscribers))
			for _, id := range h.Subscribers {
				cmd.Printf("  %s\n", id)
			}
		}
		return nil
	},
}
