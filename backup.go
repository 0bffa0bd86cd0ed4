package ilpatch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultBackupSuffix is appended to the module path to name its backup.
const DefaultBackupSuffix = ".old"

var (
	ErrBackup      = errors.New("backup failed")
	ErrCommit      = errors.New("write failed")
	ErrNotBackedUp = errors.New("no backup made before commit")
)

// State is the progress of a Transaction.
type State int

const (
	Unmodified State = iota
	BackedUp
	Committed
)

func (s State) String() string {
	switch s {
	case Unmodified:
		return "unmodified"
	case BackedUp:
		return "backed up"
	case Committed:
		return "committed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Committer writes a module back to its file.
type Committer interface {
	Commit() error
}

// Transaction orders the writes of one patch: the module file is copied to
// its backup, and only then is the module committed.
type Transaction struct {
	path   string
	suffix string
	state  State
	log    *zap.Logger
}

// NewTransaction starts a transaction for the module at path. An empty
// suffix uses DefaultBackupSuffix. A nil logger disables logging.
func NewTransaction(path, suffix string, log *zap.Logger) *Transaction {
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Transaction{path: path, suffix: suffix, log: log}
}

// State returns the current state.
func (tx *Transaction) State() State { return tx.state }

// BackupPath returns the path of the backup file.
func (tx *Transaction) BackupPath() string { return tx.path + tx.suffix }

// Backup copies the module file to the backup path, replacing an existing
// backup. It can only be done once.
func (tx *Transaction) Backup() error {
	if tx.state != Unmodified {
		return fmt.Errorf("%w: transaction is %s", ErrBackup, tx.state)
	}
	if err := copyFile(tx.path, tx.BackupPath()); err != nil {
		return fmt.Errorf("%w: %w", ErrBackup, err)
	}
	tx.state = BackedUp
	tx.log.Info("backed up module", zap.String("path", tx.path), zap.String("backup", tx.BackupPath()))
	return nil
}

// Commit writes the module through c. The backup must have been made.
func (tx *Transaction) Commit(c Committer) error {
	switch tx.state {
	case Unmodified:
		return ErrNotBackedUp
	case Committed:
		return fmt.Errorf("%w: already committed", ErrCommit)
	}
	if err := c.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	tx.state = Committed
	tx.log.Info("wrote module", zap.String("path", tx.path))
	return nil
}

// copyFile copies src to dst through a temporary file in dst's directory, so
// dst is either the old file or a complete copy.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
