package ilpatch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrNoBackup is returned by Restore when there is no backup to restore.
var ErrNoBackup = errors.New("no backup found")

// Restore copies the backup of the module at path back over the module. The
// backup is kept. An empty suffix uses DefaultBackupSuffix.
func Restore(path, suffix string) error {
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	backup := path + suffix

	if _, err := os.Stat(backup); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", backup, ErrNoBackup)
		}
		return err
	}
	if err := copyFile(backup, path); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return nil
}
