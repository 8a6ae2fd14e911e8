package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mfulz/ircgeist/internal/controlcli"
	"github.com/mfulz/ircgeist/protocol"
	"github.com/spf13/cobra"
)

var akillDuration time.Duration

// AkillCmd manages network bans.
var AkillCmd = &cobra.Command{
	Use:   "akill",
	Short: "List, add and remove network bans",
}

var akillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored akills",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := controlcli.ListAkills(clientCfg, target)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMASK\tSETTER\tEXPIRES\tREASON")
		for _, a := range list.Akills {
			expires := "never"
			if a.Duration > 0 {
				expires = (time.Duration(a.Remaining) * time.Second).String()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Mask, a.Setter, expires, a.Reason)
		}
		return w.Flush()
	},
}

var akillAddCmd = &cobra.Command{
	Use:   "add <user@host> <reason>...",
	Short: "Ban a mask on the network",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := controlcli.AddAkill(clientCfg, target, protocol.AkillAddRequest{
			Mask:     args[0],
			Reason:   strings.Join(args[1:], " "),
			Duration: int64(akillDuration / time.Second),
		})
		if err != nil {
			return err
		}
		cmd.Printf("Added akill %d on %s\n", id, args[0])
		return nil
	},
}

var akillDelCmd = &cobra.Command{
	Use:   "del <id>...",
	Short: "Remove akills by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid akill id %q", arg)
			}
			if err := controlcli.DeleteAkill(clientCfg, target, id); err != nil {
				return fmt.Errorf("%d: %w", id, err)
			}
			cmd.Printf("Removed akill %d\n", id)
		}
		return nil
	},
}

func init() {
	akillAddCmd.Flags().DurationVar(&akillDuration, "duration", 0, "Ban duration (0 is permanent)")
	AkillCmd.AddCommand(akillListCmd, akillAddCmd, akillDelCmd)
}
