// Command ircgeistctl provides CLI control over the ircgeistd daemon.
// It communicates via a configured control interface (unix socket or TCP)
// and provides commands to inspect usage, hooks and to manage modules.
package main

import (
	"os"

	"github.com/mfulz/ircgeist/cmd/ircgeistctl/cmd"
	"github.com/mfulz/ircgeist/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.Log.Errorf("[ircgeistctl] %v", err)
		_ = logging.Log.Sync()
		os.Exit(1)
	}
}
