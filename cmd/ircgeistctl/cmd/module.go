package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/mfulz/ircgeist/internal/controlcli"
	"github.com/spf13/cobra"
)

// ModuleCmd is the root command for module management.
var ModuleCmd = &cobra.Command{
	Use:     "module",
	Aliases: []string{"mod"},
	Short:   "List, load and unload modules",
}

var moduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := controlcli.ListModules(clientCfg, target)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODULE\tKIND\tLOADED")
		for _, m := range list.Modules {
			fmt.Fprintf(w, "%s\t%s\t%v\n", m.Name, m.Kind, m.Loaded)
		}
		return w.Flush()
	},
}

// moduleAction builds a subcommand that applies fn to each named module.
func moduleAction(use, short, done string, fn func(name string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <module>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if err := fn(name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				cmd.Printf("%s %s\n", done, name)
			}
			return nil
		},
	}
}

func init() {
	ModuleCmd.AddCommand(
		moduleListCmd,
		moduleAction("load", "Load modules", "Loaded", func(name string) error {
			return controlcli.LoadModule(clientCfg, target, name)
		}),
		moduleAction("unload", "Unload modules", "Unloaded", func(name string) error {
			return controlcli.UnloadModule(clientCfg, target, name)
		}),
		moduleAction("reload", "Reload modules", "Reloaded", func(name string) error {
			return controlcli.ReloadModule(clientCfg, target, name)
		}),
	)
}
