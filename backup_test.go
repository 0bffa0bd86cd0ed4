package ilpatch_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pboyd/ilpatch"
)

type commitFunc func() error

func (f commitFunc) Commit() error { return f() }

func TestTransaction(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "module.dll")
	require.NoError(os.WriteFile(path, []byte("v1"), 0o640))
	require.NoError(os.WriteFile(path+".old", []byte("stale backup"), 0o644))

	tx := ilpatch.NewTransaction(path, "", nil)
	assert.Equal(ilpatch.Unmodified, tx.State())

	committed := false
	commit := commitFunc(func() error {
		committed = true
		return os.WriteFile(path, []byte("v2"), 0o640)
	})
	assert.ErrorIs(tx.Commit(commit), ilpatch.ErrNotBackedUp)
	assert.False(committed)

	require.NoError(tx.Backup())
	assert.Equal(ilpatch.BackedUp, tx.State())
	assert.Equal([]byte("v1"), readFile(t, path+".old"))
	assert.ErrorIs(tx.Backup(), ilpatch.ErrBackup)

	info, err := os.Stat(path + ".old")
	require.NoError(err)
	assert.Equal(os.FileMode(0o640), info.Mode().Perm())

	require.NoError(tx.Commit(commit))
	assert.True(committed)
	assert.Equal(ilpatch.Committed, tx.State())
	assert.ErrorIs(tx.Commit(commit), ilpatch.ErrCommit)

	assert.Equal([]byte("v2"), readFile(t, path))
	assert.Equal([]byte("v1"), readFile(t, path+".old"))
}

func TestTransaction_Backup_MissingSource(t *testing.T) {
	dir := t.TempDir()
	tx := ilpatch.NewTransaction(filepath.Join(dir, "missing.dll"), ".old", nil)
	assert.ErrorIs(t, tx.Backup(), ilpatch.ErrBackup)
	assert.Equal(t, ilpatch.Unmodified, tx.State())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransaction_CommitFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "module.dll")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	tx := ilpatch.NewTransaction(path, ".old", nil)
	require.NoError(t, tx.Backup())

	err := tx.Commit(commitFunc(func() error { return errors.New("boom") }))
	assert.ErrorIs(t, err, ilpatch.ErrCommit)
	assert.Equal(t, ilpatch.BackedUp, tx.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "backed up", ilpatch.BackedUp.String())
	assert.Equal(t, "State(7)", ilpatch.State(7).String())
}

func TestRestore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := game(t, heatMeter())
	original := readFile(t, path)

	_, err := ilpatch.New(ilpatch.DefaultTarget()).Patch(openGame(t, path))
	require.NoError(err)
	require.NotEqual(original, readFile(t, path))

	require.NoError(ilpatch.Restore(path, ""))
	assert.Equal(original, readFile(t, path))
	assert.FileExists(path + ".old")

	report, err := ilpatch.New(ilpatch.DefaultTarget()).Inspect(openGame(t, path))
	require.NoError(err)
	assert.Equal(ilpatch.Patchable, report.Classification)
}

func TestRestore_NoBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "module.dll")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	assert.ErrorIs(t, ilpatch.Restore(path, ".old"), ilpatch.ErrNoBackup)
	assert.Equal(t, []byte("v1"), readFile(t, path))
}
