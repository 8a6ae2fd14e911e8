package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/mfulz/ircgeist/internal/controlcli"
	"github.com/spf13/cobra"
)

// PingCmd checks that the daemon answers.
var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon is alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ping, err := controlcli.Ping(clientCfg, target)
		if err != nil {
			return err
		}
		state := "disconnected"
		if ping.Connected {
			state = "linked"
		}
		cmd.Printf("%s is alive (%s)\n", ping.Server, state)
		return nil
	},
}

// StatsCmd is the root command for usage reports.
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage reports",
}

var statsCommandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Show per-command usage counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := controlcli.CommandStats(clientCfg, target)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COMMAND\tCOUNT\tBYTES\tREMOTE")
		for _, c := range stats.Commands {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", c.Name, c.Count, c.Bytes, c.RemoteCount)
		}
		return w.Flush()
	},
}

var statsNetworkCmd = &cobra.Command{
	Use:   "network",
	Short: "Show uplink state and network size",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := controlcli.NetworkStats(clientCfg, target)
		if err != nil {
			return err
		}
		if !n.Connected {
			cmd.Println("Uplink:  not connected")
		} else {
			cmd.Printf("Uplink:  %s\n", n.Uplink)
		}
		cmd.Printf("Servers: %d\nClients: %d\n", n.Servers, n.Clients)
		return nil
	},
}

func init() {
	StatsCmd.AddCommand(statsCommandsCmd, statsNetworkCmd)
}
