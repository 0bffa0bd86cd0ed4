package ilpatch_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pboyd/ilpatch"
	"github.com/pboyd/ilpatch/cil"
	"github.com/pboyd/ilpatch/container"
)

func TestPatch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := game(t, heatMeter())
	original := readFile(t, path)

	p := ilpatch.New(ilpatch.DefaultTarget(), ilpatch.WithLogger(zaptest.NewLogger(t)))
	result, err := p.Patch(openGame(t, path))
	require.NoError(err)
	assert.True(result.Patched)
	assert.Equal(ilpatch.Patchable, result.Classification)
	assert.Equal(46, result.Instructions)
	assert.Equal(path+".old", result.Backup)

	assert.Equal(original, readFile(t, result.Backup))
	assert.NotEqual(original, readFile(t, path))

	report, err := p.Inspect(openGame(t, path))
	require.NoError(err)
	assert.Equal(ilpatch.AlreadyPatched, report.Classification)
	c, err := ilpatch.ConversionProbe(report.Body)
	require.NoError(err)
	assert.InDelta(37.0, c, 1e-4)
}

func TestPatch_Idempotent(t *testing.T) {
	require := require.New(t)

	path := game(t, heatMeter())
	p := ilpatch.New(ilpatch.DefaultTarget())

	first, err := p.Patch(openGame(t, path))
	require.NoError(err)
	require.True(first.Patched)

	require.NoError(os.Remove(first.Backup))
	patched := readFile(t, path)

	second, err := p.Patch(openGame(t, path))
	require.NoError(err)
	assert.False(t, second.Patched)
	assert.Equal(t, ilpatch.AlreadyPatched, second.Classification)
	assert.Empty(t, second.Backup)
	assert.NoFileExists(t, first.Backup)
	assert.Equal(t, patched, readFile(t, path))
}

func TestPatch_Unrecognized(t *testing.T) {
	tests := map[string]*cil.MethodBody{
		"short":            filler(40, nil),
		"wrong constant":   filler(46, cil.Create(cil.LdcR4, float32(0))),
		"anchor not call":  filler(42, cil.Create(cil.Nop, nil)),
		"single statement": filler(1, nil),
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := game(t, body)
			original := readFile(t, path)

			result, err := ilpatch.New(ilpatch.DefaultTarget()).Patch(openGame(t, path))
			require.NoError(t, err)
			assert.False(t, result.Patched)
			assert.Equal(t, ilpatch.Unrecognized, result.Classification)
			assert.NoFileExists(t, path+".old")
			assert.Equal(t, original, readFile(t, path))
		})
	}
}

func TestPatch_NotFound(t *testing.T) {
	path := game(t, heatMeter())

	tests := map[string]struct {
		target ilpatch.Target
		want   error
	}{
		"type":   {ilpatch.Target{Type: "uGUI_HeatMeter", Method: "SetValue"}, container.ErrTypeNotFound},
		"method": {ilpatch.Target{Type: "uGUI_BodyHeatMeter", Method: "GetValue"}, container.ErrMethodNotFound},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ilpatch.New(tc.target).Patch(openGame(t, path))
			assert.ErrorIs(t, err, tc.want)
			assert.NoFileExists(t, path+".old")
		})
	}
}

func TestPatch_Declined(t *testing.T) {
	path := game(t, heatMeter())
	original := readFile(t, path)

	var seen *ilpatch.Report
	p := ilpatch.New(ilpatch.DefaultTarget(), ilpatch.WithConfirm(func(r *ilpatch.Report) error {
		seen = r
		return ilpatch.ErrDeclined
	}))
	result, err := p.Patch(openGame(t, path))
	assert.ErrorIs(t, err, ilpatch.ErrDeclined)
	assert.False(t, result.Patched)

	require.NotNil(t, seen)
	assert.Equal(t, ilpatch.Patchable, seen.Classification)
	assert.Equal(t, 42, seen.Body.Len())
	assert.NoFileExists(t, path+".old")
	assert.Equal(t, original, readFile(t, path))
}

func TestPatch_BackupSuffix(t *testing.T) {
	path := game(t, heatMeter())
	original := readFile(t, path)

	result, err := ilpatch.New(ilpatch.DefaultTarget(), ilpatch.WithBackupSuffix(".bak")).Patch(openGame(t, path))
	require.NoError(t, err)
	assert.Equal(t, path+".bak", result.Backup)
	assert.Equal(t, original, readFile(t, path+".bak"))
}

// fakeModule serves one body from memory and records commits.
type fakeModule struct {
	path    string
	body    *cil.MethodBody
	commits int
	commit  func() error
}

func (m *fakeModule) Path() string { return m.path }

func (m *fakeModule) MethodBody(typeName, methodName string) (*cil.MethodBody, error) {
	return m.body, nil
}

func (m *fakeModule) Commit() error {
	m.commits++
	if m.commit != nil {
		return m.commit()
	}
	return nil
}

func TestPatch_BackupBeforeCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Assembly-CSharp.dll")
	original := []byte("original module bytes")
	require.NoError(t, os.WriteFile(path, original, 0o644))

	m := &fakeModule{path: path, body: heatMeter()}
	m.commit = func() error {
		backup, err := os.ReadFile(path + ".old")
		if err != nil {
			return err
		}
		if string(backup) != string(original) {
			return errors.New("backup differs from original")
		}
		return os.WriteFile(path, []byte("patched"), 0o644)
	}

	result, err := ilpatch.New(ilpatch.DefaultTarget()).Patch(m)
	require.NoError(t, err)
	assert.True(t, result.Patched)
	assert.Equal(t, 1, m.commits)
}

func TestPatch_BackupFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Assembly-CSharp.dll")
	require.NoError(t, os.WriteFile(path, []byte("module"), 0o644))

	m := &fakeModule{path: path, body: heatMeter()}
	p := ilpatch.New(ilpatch.DefaultTarget(), ilpatch.WithBackupSuffix("/missing/backup"))
	result, err := p.Patch(m)
	assert.ErrorIs(t, err, ilpatch.ErrBackup)
	assert.False(t, result.Patched)
	assert.Zero(t, m.commits)
	assert.Equal(t, []byte("module"), readFile(t, path))
}

func TestPatch_CommitFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Assembly-CSharp.dll")
	require.NoError(t, os.WriteFile(path, []byte("module"), 0o644))

	errDisk := errors.New("disk full")
	m := &fakeModule{path: path, body: heatMeter(), commit: func() error { return errDisk }}
	result, err := ilpatch.New(ilpatch.DefaultTarget()).Patch(m)
	assert.ErrorIs(t, err, ilpatch.ErrCommit)
	assert.ErrorIs(t, err, errDisk)
	assert.False(t, result.Patched)
	assert.Equal(t, []byte("module"), readFile(t, path+".old"))
}

func TestPatch_CustomClassifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Assembly-CSharp.dll")
	require.NoError(t, os.WriteFile(path, []byte("module"), 0o644))

	m := &fakeModule{path: path, body: filler(3, nil)}
	p := ilpatch.New(ilpatch.DefaultTarget(),
		ilpatch.WithClassifier(ilpatch.ClassifierFunc(func(*cil.MethodBody) ilpatch.Classification {
			return ilpatch.Patchable
		})),
		ilpatch.WithPlan(ilpatch.Plan{{0, cil.Create(cil.Pop, nil)}}),
	)
	result, err := p.Patch(m)
	require.NoError(t, err)
	assert.True(t, result.Patched)
	assert.Equal(t, 4, m.body.Len())
	assert.Equal(t, cil.Pop, m.body.At(1).OpCode)
}
