// Command ircgeistd is the ircgeist services daemon. It loads its
// configuration, opens the database, starts the control interfaces and
// links to the configured uplink, loading the autoload modules on start.
// On SIGINT or SIGTERM it unloads all modules and exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/acl"
	"github.com/mfulz/ircgeist/internal/configd"
	"github.com/mfulz/ircgeist/internal/control"
	"github.com/mfulz/ircgeist/internal/logging"
	"github.com/mfulz/ircgeist/internal/modmgr"
	"github.com/mfulz/ircgeist/internal/services"
	"github.com/mfulz/ircgeist/internal/store/sqlite"
	"github.com/spf13/cobra"

	_ "github.com/mfulz/ircgeist/internal/modules/akill"
	_ "github.com/mfulz/ircgeist/internal/modules/core"
	_ "github.com/mfulz/ircgeist/internal/modules/oftc"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "ircgeistd",
	Short:        "IRC network services daemon",
	Long:         `ircgeistd links to an IRC server as a services server and routes its traffic to loadable modules.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to ircgeistd.yaml")
}

func run(ctx context.Context) error {
	cfg, err := configd.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("[ircgeistd] Failed to load config: %w", err)
	}
	logging.Log.Info("[ircgeistd] Configuration loaded successfully")

	if err := acl.Init(cfg.ACL, acl.Permissions); err != nil {
		return fmt.Errorf("[ircgeistd] Invalid acl config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o750); err != nil {
		return fmt.Errorf("[ircgeistd] Failed to create database dir: %w", err)
	}
	store, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("[ircgeistd] Failed to open database: %w", err)
	}
	defer store.Close()

	host := interfaces.NewHost(cfg.Services.Name, store, logging.Log)
	host.Description = cfg.Services.Description
	svc := services.New(host, modmgr.New(host, cfg.Modules.Scripts), cfg.ServiceConfig())

	servers, err := control.StartAll(ctx, cfg.Control.Instances, control.NewRouter(svc, cfg.Modules.ACLs), logging.Log)
	if err != nil {
		return fmt.Errorf("[ircgeistd] Failed to start control interface: %w", err)
	}
	defer func() {
		for _, s := range servers {
			_ = s.Close()
		}
	}()

	logging.Log.Infof("[ircgeistd] Running as %s", cfg.Services.Name)
	if err := svc.Run(ctx); err != nil {
		return err
	}
	logging.Log.Info("[ircgeistd] Shutdown complete. Exiting.")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.Log.Error(err)
		_ = logging.Log.Sync()
		os.Exit(1)
	}
}
