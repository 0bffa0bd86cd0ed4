package ilpatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pboyd/ilpatch"
	"github.com/pboyd/ilpatch/cil"
)

func TestCelsiusPlan_Additive(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	body := heatMeter()
	before := ilpatch.Snapshot(body)
	call := body.At(38)

	plan := ilpatch.CelsiusPlan()
	require.NoError(plan.Apply(body))
	require.Equal(46, body.Len())

	want := []*cil.Instruction{
		cil.Create(cil.LdcR4, float32(32)),
		cil.Create(cil.Sub, nil),
		cil.Create(cil.LdcR4, float32(1.8)),
		cil.Create(cil.Div, nil),
	}
	for i, w := range want {
		assert.True(w.Equal(body.At(38+i)), "index %d: %v", 38+i, body.At(38+i))
	}

	assert.Same(call, body.At(42))
	assert.True(before[38].Equal(body.At(42)))
	for i := 0; i < 38; i++ {
		assert.True(before[i].Equal(body.At(i)), "index %d", i)
	}
	assert.NoError(plan.Verify(before, body.Instructions))
	assert.Equal(uint16(9), body.MaxStack)
}

func TestPlan_Apply_Shift(t *testing.T) {
	assert := assert.New(t)

	body := filler(5, nil)
	orig := body.Clone()
	a := cil.Create(cil.LdcI41, nil)
	b := cil.Create(cil.LdcI42, nil)
	c := cil.Create(cil.LdcI43, nil)

	plan := ilpatch.Plan{{3, c}, {1, a}, {1, b}}
	require.NoError(t, plan.Apply(body))

	got := []cil.Code{}
	for _, ins := range body.Instructions {
		got = append(got, ins.OpCode)
	}
	assert.Equal([]cil.Code{cil.Nop, cil.Nop, cil.LdcI41, cil.LdcI42, cil.Nop, cil.Nop, cil.LdcI43, cil.Nop}, got)

	// Original instruction k sits at k plus the insertions anchored before it.
	for k, ins := range orig {
		shift := 0
		for _, in := range plan {
			if in.Anchor < k {
				shift++
			}
		}
		assert.Same(ins, body.At(k+shift), "original %d", k)
	}

	assert.NotSame(a, body.At(2), "plan instructions are copied")
}

func TestPlan_Apply_OutOfRange(t *testing.T) {
	body := filler(40, nil)
	before := body.Clone()

	err := ilpatch.Plan{{10, cil.Create(cil.Nop, nil)}, {40, cil.Create(cil.Nop, nil)}}.Apply(body)
	assert.ErrorIs(t, err, cil.ErrIndexOutOfRange)
	assert.Equal(t, before, body.Instructions)
}

func TestPlan_Verify(t *testing.T) {
	plan := ilpatch.CelsiusPlan()

	tests := map[string]struct {
		edit func(body *cil.MethodBody)
		want []string
	}{
		"original changed": {
			edit: func(body *cil.MethodBody) { body.At(42).OpCode = cil.Callvirt },
			want: []string{"instruction 42"},
		},
		"inserted changed": {
			edit: func(body *cil.MethodBody) { body.At(40).Operand = float32(1.5) },
			want: []string{"instruction 40"},
		},
		"instruction removed": {
			edit: func(body *cil.MethodBody) { body.Instructions = body.Instructions[:45] },
			want: []string{"length: 45 != 46"},
		},
		"several": {
			edit: func(body *cil.MethodBody) {
				body.At(0).OpCode = cil.Ldarg2
				body.At(41).OpCode = cil.Mul
			},
			want: []string{"instruction 0", "instruction 41"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			body := heatMeter()
			before := ilpatch.Snapshot(body)
			require.NoError(t, plan.Apply(body))
			tc.edit(body)

			err := plan.Verify(before, body.Instructions)
			require.Error(t, err)
			for _, w := range tc.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestConversionProbe(t *testing.T) {
	body := heatMeter()
	_, err := ilpatch.ConversionProbe(body)
	assert.Error(t, err, "unpatched body")

	require.NoError(t, ilpatch.CelsiusPlan().Apply(body))
	c, err := ilpatch.ConversionProbe(body)
	require.NoError(t, err)
	assert.InDelta(t, 37.0, c, 1e-4)
}

func TestCelsiusPlan_Formula(t *testing.T) {
	tests := map[string]struct {
		f, c float32
	}{
		"body":     {98.6, 37},
		"freezing": {32, 0},
		"boiling":  {212, 100},
		"crossing": {-40, -40},
	}

	var region []*cil.Instruction
	for _, in := range ilpatch.CelsiusPlan() {
		region = append(region, in.Instruction)
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			stack, err := cil.Eval(region, tc.f)
			require.NoError(t, err)
			require.Len(t, stack, 1)
			assert.InDelta(t, tc.c, stack[0], 1e-4)
		})
	}
}
