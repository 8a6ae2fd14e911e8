package configloader

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfig overrides the config file search for every subsystem.
const EnvConfig = "IRCGEIST_CONFIG"

// SystemDir holds system-wide config files.
const SystemDir = "/etc/ircgeist"

// ResolveConfigPath returns the best config path for a given subsystem and filename.
// It checks, in order:
// 1. explicit, if not empty (e.g. from a --config flag)
// 2. $IRCGEIST_CONFIG if set
// 3. ~/.ircgeist/<subsystem>/<file>
// 4. /etc/ircgeist/<file>
func ResolveConfigPath(explicit, subsystem, file string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".ircgeist", subsystem, file)
		if _, err := os.Stat(userPath); err == nil {
			return userPath, nil
		}
	}
	systemPath := filepath.Join(SystemDir, file)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath, nil
	}
	return "", fmt.Errorf("no config found for %s/%s", subsystem, file)
}
