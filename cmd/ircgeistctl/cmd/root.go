// Package cmd provides the ircgeistctl subcommands. Every command talks to
// one daemon selected by --daemon from the client config or directly via
// --addr/--token.
package cmd

import (
	"github.com/mfulz/ircgeist/internal/configcli"
	"github.com/mfulz/ircgeist/internal/controlcli"
	"github.com/spf13/cobra"
)

var (
	configPath string
	target     controlcli.Target
	clientCfg  *configcli.Config
)

var rootCmd = &cobra.Command{
	Use:           "ircgeistctl",
	Short:         "Control interface for the ircgeist services daemon",
	Long:          `ircgeistctl inspects and manages a running ircgeistd: command usage, hooks, modules and akills.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if target.Addr != "" {
			clientCfg = &configcli.Config{}
			return nil
		}
		cfg, err := configcli.LoadConfig(configPath)
		if err != nil {
			return err
		}
		clientCfg = cfg
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to ircgeistctl.yaml")
	flags.StringVarP(&target.Daemon, "daemon", "d", "", "Daemon name from the client config")
	flags.StringVarP(&target.User, "user", "u", "", "Control user to authenticate as")
	flags.StringVar(&target.Addr, "addr", "", "Direct daemon address (unix socket path or host:port)")
	flags.StringVar(&target.Token, "token", "", "Auth token for --addr")

	rootCmd.AddCommand(PingCmd, StatsCmd, ModuleCmd, HookCmd, AkillCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
