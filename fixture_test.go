package ilpatch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pboyd/ilpatch/cil"
	"github.com/pboyd/ilpatch/container"
	"github.com/pboyd/ilpatch/internal/testasm"
	"github.com/pboyd/ilpatch/resolve"
)

const lerp = cil.Token(0x0a000001)

// heatMeter returns a body shaped like the unpatched SetValue: 42
// instructions with the call consuming the temperature at index 38.
func heatMeter() *cil.MethodBody {
	ret := cil.Create(cil.Ret, nil)
	ins := []*cil.Instruction{
		cil.Create(cil.Ldarg1, nil),
		cil.Create(cil.LdcR4, float32(0)),
		cil.Create(cil.BltS, ret),
	}
	for len(ins) < 37 {
		ins = append(ins, cil.Create(cil.Ldarg0, nil), cil.Create(cil.Pop, nil))
	}
	ins = append(ins,
		cil.Create(cil.Ldarg1, nil),
		cil.Create(cil.Call, lerp),
		cil.Create(cil.Nop, nil),
		cil.Create(cil.Nop, nil),
		ret,
	)
	return &cil.MethodBody{MaxStack: 8, Instructions: ins}
}

// filler returns a body of n instructions with at placed at index 38.
func filler(n int, at *cil.Instruction) *cil.MethodBody {
	ins := make([]*cil.Instruction, n)
	for i := range ins {
		ins[i] = cil.Create(cil.Nop, nil)
	}
	if at != nil && n > 38 {
		ins[38] = at
	}
	return &cil.MethodBody{MaxStack: 8, Instructions: ins}
}

func encode(t *testing.T, body *cil.MethodBody) []byte {
	t.Helper()
	b, err := body.Encode()
	require.NoError(t, err)
	return b
}

// game writes an Assembly-CSharp module with the given SetValue body and the
// UnityEngine module it references into a fresh directory.
func game(t *testing.T, body *cil.MethodBody) string {
	t.Helper()
	dir := t.TempDir()
	testasm.Write(t, dir, testasm.Module{Name: "UnityEngine"})
	return testasm.Write(t, dir, testasm.Module{
		Name: "Assembly-CSharp",
		Types: []testasm.Type{{
			Name:    "uGUI_BodyHeatMeter",
			Methods: []testasm.Method{{Name: "SetValue", Body: encode(t, body)}},
		}},
		References: []testasm.AssemblyRef{{Name: "UnityEngine"}},
		MemberRefs: []testasm.MemberRef{{Namespace: "UnityEngine", Type: "Mathf", Name: "Lerp"}},
	})
}

func openGame(t *testing.T, path string) *container.Container {
	t.Helper()
	dir, err := resolve.NewDirectory(filepath.Dir(path))
	require.NoError(t, err)
	c, err := container.Open(path, resolve.NewChain(nil, resolve.NewDefault(), dir))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}
