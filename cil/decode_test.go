package cil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ldarg.0; ldc.r4 32; sub; ret
var tinyBody = []byte{0x22, 0x02, 0x22, 0x00, 0x00, 0x00, 0x42, 0x59, 0x2a}

func TestDecodeBody_Tiny(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	body, n, err := DecodeBody(tinyBody)
	require.NoError(err)
	assert.Equal(len(tinyBody), n)
	assert.Equal(uint16(8), body.MaxStack)
	assert.False(body.InitLocals)
	require.Equal(4, body.Len())

	wantOps := []Code{Ldarg0, LdcR4, Sub, Ret}
	wantOffsets := []int{0, 1, 6, 7}
	for i, ins := range body.Instructions {
		assert.Equal(wantOps[i], ins.OpCode)
		assert.Equal(wantOffsets[i], ins.Offset)
	}

	f, ok := body.At(1).Float32()
	assert.True(ok)
	assert.Equal(float32(32), f)
}

func TestDecodeBody_TrailingData(t *testing.T) {
	data := append(append([]byte(nil), tinyBody...), 0xff, 0xff)
	_, n, err := DecodeBody(data)
	require.NoError(t, err)
	assert.Equal(t, len(tinyBody), n)
}

func TestDecodeBody_Errors(t *testing.T) {
	tests := map[string]struct {
		data []byte
		want error
	}{
		"empty": {
			data: nil,
			want: ErrTruncated,
		},
		"bad header": {
			data: []byte{0x00, 0x2a},
			want: ErrBadHeader,
		},
		"tiny truncated": {
			data: tinyBody[:5],
			want: ErrTruncated,
		},
		"fat truncated": {
			data: []byte{0x03, 0x30, 0x08, 0x00},
			want: ErrTruncated,
		},
		"unknown opcode": {
			data: []byte{0x06, 0xa6},
			want: ErrUnknownOpcode,
		},
		"truncated operand": {
			data: []byte{0x0a, 0x22, 0x00},
			want: ErrTruncated,
		},
		"branch into operand": {
			data: []byte{0x22, 0x2b, 0x01, 0x20, 0x00, 0x00, 0x00, 0x00, 0x2a},
			want: ErrBadTarget,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeBody(tc.data)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecodeBody_Branches(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// br.s +1; nop; ret
	body, _, err := DecodeBody([]byte{0x12, 0x2b, 0x01, 0x00, 0x2a})
	require.NoError(err)
	require.Equal(3, body.Len())
	assert.Same(body.At(2), body.At(0).Operand)

	// switch (ret, nop); nop; ret
	code := []byte{
		0x45, 0x02, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x2a,
	}
	data := append([]byte{byte(len(code)<<2 | 0x2)}, code...)
	body, _, err = DecodeBody(data)
	require.NoError(err)
	require.Equal(3, body.Len())
	targets, ok := body.At(0).Operand.([]*Instruction)
	require.True(ok)
	require.Len(targets, 2)
	assert.Same(body.At(2), targets[0])
	assert.Same(body.At(1), targets[1])
	assert.Equal(13, body.At(1).Offset)
}

func TestDecodeBody_FatWithHandlers(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data := []byte{
		// fat header: flags MoreSects|InitLocals, size 3 dwords
		0x1b, 0x30, 0x02, 0x00,
		0x06, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x11,
		// nop; leave.s IL_0005; pop; ret; ret
		0x00, 0xde, 0x02, 0x26, 0x2a, 0x2a,
		0x00, 0x00,
		// small EH section, one clause
		0x01, 0x10, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x03, 0x03, 0x00, 0x02, 0x01, 0x00, 0x00, 0x01,
	}
	body, n, err := DecodeBody(data)
	require.NoError(err)
	assert.Equal(len(data), n)
	assert.Equal(uint16(2), body.MaxStack)
	assert.True(body.InitLocals)
	assert.Equal(Token(0x11000001), body.LocalVarSig)
	require.Equal(5, body.Len())
	require.Len(body.Handlers, 1)

	h := body.Handlers[0]
	assert.Equal(HandlerCatch, h.Kind)
	assert.Same(body.At(0), h.TryStart)
	assert.Same(body.At(2), h.TryEnd)
	assert.Same(body.At(2), h.HandlerStart)
	assert.Same(body.At(4), h.HandlerEnd)
	assert.Equal(Token(0x01000001), h.CatchType)
	assert.Same(body.At(4), body.At(1).Operand)
}
