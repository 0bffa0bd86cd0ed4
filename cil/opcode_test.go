package cil

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	tests := map[string]struct {
		code    Code
		name    string
		operand OperandType
		size    int
	}{
		"ldc.r4":    {LdcR4, "ldc.r4", ShortInlineR, 1},
		"sub":       {Sub, "sub", InlineNone, 1},
		"call":      {Call, "call", InlineMethod, 1},
		"br.s":      {BrS, "br.s", ShortInlineBrTarget, 1},
		"switch":    {Switch, "switch", InlineSwitch, 1},
		"ceq":       {Ceq, "ceq", InlineNone, 2},
		"ldloc":     {Ldloc, "ldloc", InlineVar, 2},
		"readonly.": {Readonly, "readonly.", InlineNone, 2},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			info, ok := GetInfo(tc.code)
			assert.True(ok)
			assert.Equal(tc.name, info.Name)
			assert.Equal(tc.operand, info.Operand)
			assert.Equal(tc.size, tc.code.Size())
			assert.Equal(tc.name, tc.code.String())
		})
	}
}

func TestGetInfo_Table(t *testing.T) {
	count := 0
	for b := 0; b < 256; b++ {
		for _, c := range []Code{Code(b), Code(twoBytePrefix)<<8 | Code(b)} {
			info, ok := GetInfo(c)
			if !ok {
				continue
			}
			count++
			assert.Equal(t, c, info.Code)
			assert.NotEmpty(t, info.Name)
		}
	}
	assert.Greater(t, count, 200)
}

func TestGetInfo_Unknown(t *testing.T) {
	_, ok := GetInfo(0xa6)
	assert.False(t, ok)
	_, ok = GetInfo(0x1234)
	assert.False(t, ok)
	assert.Equal(t, "unknown(0x00a6)", Code(0xa6).String())
}

func TestLongForm(t *testing.T) {
	assert.Equal(t, Br, LongForm(BrS))
	assert.Equal(t, BltUn, LongForm(BltUnS))
	assert.Equal(t, Leave, LongForm(LeaveS))
	assert.Equal(t, Nop, LongForm(Nop))
	assert.Equal(t, Br, LongForm(Br))
}

func TestOperandType_IsToken(t *testing.T) {
	assert.True(t, InlineMethod.IsToken())
	assert.True(t, InlineString.IsToken())
	assert.False(t, ShortInlineR.IsToken())
	assert.False(t, InlineBrTarget.IsToken())
}

func TestFprint(t *testing.T) {
	body, _, err := DecodeBody(tinyBody)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, body))

	want := "   0  IL_0000: ldarg.0\n" +
		"   1  IL_0001: ldc.r4 32\n" +
		"   2  IL_0006: sub\n" +
		"   3  IL_0007: ret\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestFprint_Handlers(t *testing.T) {
	tryStart := Create(Nop, nil)
	handler := Create(Pop, nil)
	end := Create(Ret, nil)
	body := &MethodBody{
		MaxStack:     1,
		Instructions: []*Instruction{tryStart, Create(LeaveS, end), handler, Create(LeaveS, end), end},
		Handlers: []*ExceptionHandler{{
			Kind:         HandlerCatch,
			TryStart:     tryStart,
			TryEnd:       handler,
			HandlerStart: handler,
			HandlerEnd:   end,
			CatchType:    Token(0x01000002),
		}},
	}
	_, err := body.Encode()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, body))

	want := "   0  IL_0000: nop\n" +
		"   1  IL_0001: leave.s IL_0006\n" +
		"   2  IL_0003: pop\n" +
		"   3  IL_0004: leave.s IL_0006\n" +
		"   4  IL_0006: ret\n" +
		"      .try IL_0000 to IL_0003 catch IL_0003 to IL_0006 type 0x01000002\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}
