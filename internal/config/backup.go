package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lumen-launcher/lumen/internal/errors"
)

const (
	// MaxBackups bounds how many config backups are kept.
	MaxBackups = 3

	// backupSuffix marks backup files next to the config.
	backupSuffix = ".bak"
)

// BackupUserConfig writes a timestamped copy of the user config before
// it is overwritten. Returns the backup path, or "" when there is no
// config to back up.
func BackupUserConfig() (string, error) {
	if !UserConfigExists() {
		return "", nil
	}

	configPath := GetUserConfigPath()
	backupPath := fmt.Sprintf("%s%s.%s", configPath, backupSuffix, time.Now().Format("20060102-150405"))

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", errors.New(errors.ErrCodeConfigInvalid, "cannot read config for backup", err)
	}
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", errors.New(errors.ErrCodeConfigInvalid, "cannot write config backup", err).
			WithDetail("path", backupPath)
	}

	// Pruning old backups is best effort.
	_ = pruneBackups()

	return backupPath, nil
}

// ListUserConfigBackups returns the existing backups, newest first.
func ListUserConfigBackups() ([]string, error) {
	configPath := GetUserConfigPath()
	dir := filepath.Dir(configPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(errors.ErrCodeConfigInvalid, "cannot list config directory", err)
	}

	prefix := filepath.Base(configPath) + backupSuffix + "."
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}

	sort.Slice(backups, func(i, j int) bool {
		ii, _ := os.Stat(backups[i])
		jj, _ := os.Stat(backups[j])
		if ii == nil || jj == nil {
			return false
		}
		return ii.ModTime().After(jj.ModTime())
	})
	return backups, nil
}

func pruneBackups() error {
	backups, err := ListUserConfigBackups()
	if err != nil {
		return err
	}
	for _, b := range backups[min(len(backups), MaxBackups):] {
		_ = os.Remove(b)
	}
	return nil
}
