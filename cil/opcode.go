// Package cil models the Common Intermediate Language instruction stream of a
// managed method: opcodes, decoded instructions and method bodies.
package cil

import "fmt"

// Code is an opcode. One byte opcodes use their byte value, two byte opcodes
// are stored as 0xFE00 | second byte.
type Code uint16

const (
	Nop         Code = 0x00
	Break       Code = 0x01
	Ldarg0      Code = 0x02
	Ldarg1      Code = 0x03
	Ldarg2      Code = 0x04
	Ldarg3      Code = 0x05
	Ldloc0      Code = 0x06
	Ldloc1      Code = 0x07
	Ldloc2      Code = 0x08
	Ldloc3      Code = 0x09
	Stloc0      Code = 0x0a
	Stloc1      Code = 0x0b
	Stloc2      Code = 0x0c
	Stloc3      Code = 0x0d
	LdargS      Code = 0x0e
	LdargaS     Code = 0x0f
	StargS      Code = 0x10
	LdlocS      Code = 0x11
	LdlocaS     Code = 0x12
	StlocS      Code = 0x13
	Ldnull      Code = 0x14
	LdcI4M1     Code = 0x15
	LdcI40      Code = 0x16
	LdcI41      Code = 0x17
	LdcI42      Code = 0x18
	LdcI43      Code = 0x19
	LdcI44      Code = 0x1a
	LdcI45      Code = 0x1b
	LdcI46      Code = 0x1c
	LdcI47      Code = 0x1d
	LdcI48      Code = 0x1e
	LdcI4S      Code = 0x1f
	LdcI4       Code = 0x20
	LdcI8       Code = 0x21
	LdcR4       Code = 0x22
	LdcR8       Code = 0x23
	Dup         Code = 0x25
	Pop         Code = 0x26
	Jmp         Code = 0x27
	Call        Code = 0x28
	Calli       Code = 0x29
	Ret         Code = 0x2a
	BrS         Code = 0x2b
	BrfalseS    Code = 0x2c
	BrtrueS     Code = 0x2d
	BeqS        Code = 0x2e
	BgeS        Code = 0x2f
	BgtS        Code = 0x30
	BleS        Code = 0x31
	BltS        Code = 0x32
	BneUnS      Code = 0x33
	BgeUnS      Code = 0x34
	BgtUnS      Code = 0x35
	BleUnS      Code = 0x36
	BltUnS      Code = 0x37
	Br          Code = 0x38
	Brfalse     Code = 0x39
	Brtrue      Code = 0x3a
	Beq         Code = 0x3b
	Bge         Code = 0x3c
	Bgt         Code = 0x3d
	Ble         Code = 0x3e
	Blt         Code = 0x3f
	BneUn       Code = 0x40
	BgeUn       Code = 0x41
	BgtUn       Code = 0x42
	BleUn       Code = 0x43
	BltUn       Code = 0x44
	Switch      Code = 0x45
	LdindI1     Code = 0x46
	LdindU1     Code = 0x47
	LdindI2     Code = 0x48
	LdindU2     Code = 0x49
	LdindI4     Code = 0x4a
	LdindU4     Code = 0x4b
	LdindI8     Code = 0x4c
	LdindI      Code = 0x4d
	LdindR4     Code = 0x4e
	LdindR8     Code = 0x4f
	LdindRef    Code = 0x50
	StindRef    Code = 0x51
	StindI1     Code = 0x52
	StindI2     Code = 0x53
	StindI4     Code = 0x54
	StindI8     Code = 0x55
	StindR4     Code = 0x56
	StindR8     Code = 0x57
	Add         Code = 0x58
	Sub         Code = 0x59
	Mul         Code = 0x5a
	Div         Code = 0x5b
	DivUn       Code = 0x5c
	Rem         Code = 0x5d
	RemUn       Code = 0x5e
	And         Code = 0x5f
	Or          Code = 0x60
	Xor         Code = 0x61
	Shl         Code = 0x62
	Shr         Code = 0x63
	ShrUn       Code = 0x64
	Neg         Code = 0x65
	Not         Code = 0x66
	ConvI1      Code = 0x67
	ConvI2      Code = 0x68
	ConvI4      Code = 0x69
	ConvI8      Code = 0x6a
	ConvR4      Code = 0x6b
	ConvR8      Code = 0x6c
	ConvU4      Code = 0x6d
	ConvU8      Code = 0x6e
	Callvirt    Code = 0x6f
	Cpobj       Code = 0x70
	Ldobj       Code = 0x71
	Ldstr       Code = 0x72
	Newobj      Code = 0x73
	Castclass   Code = 0x74
	Isinst      Code = 0x75
	ConvRUn     Code = 0x76
	Unbox       Code = 0x79
	Throw       Code = 0x7a
	Ldfld       Code = 0x7b
	Ldflda      Code = 0x7c
	Stfld       Code = 0x7d
	Ldsfld      Code = 0x7e
	Ldsflda     Code = 0x7f
	Stsfld      Code = 0x80
	Stobj       Code = 0x81
	ConvOvfI1Un Code = 0x82
	ConvOvfI2Un Code = 0x83
	ConvOvfI4Un Code = 0x84
	ConvOvfI8Un Code = 0x85
	ConvOvfU1Un Code = 0x86
	ConvOvfU2Un Code = 0x87
	ConvOvfU4Un Code = 0x88
	ConvOvfU8Un Code = 0x89
	ConvOvfIUn  Code = 0x8a
	ConvOvfUUn  Code = 0x8b
	Box         Code = 0x8c
	Newarr      Code = 0x8d
	Ldlen       Code = 0x8e
	Ldelema     Code = 0x8f
	LdelemI1    Code = 0x90
	LdelemU1    Code = 0x91
	LdelemI2    Code = 0x92
	LdelemU2    Code = 0x93
	LdelemI4    Code = 0x94
	LdelemU4    Code = 0x95
	LdelemI8    Code = 0x96
	LdelemI     Code = 0x97
	LdelemR4    Code = 0x98
	LdelemR8    Code = 0x99
	LdelemRef   Code = 0x9a
	StelemI     Code = 0x9b
	StelemI1    Code = 0x9c
	StelemI2    Code = 0x9d
	StelemI4    Code = 0x9e
	StelemI8    Code = 0x9f
	StelemR4    Code = 0xa0
	StelemR8    Code = 0xa1
	StelemRef   Code = 0xa2
	Ldelem      Code = 0xa3
	Stelem      Code = 0xa4
	UnboxAny    Code = 0xa5
	ConvOvfI1   Code = 0xb3
	ConvOvfU1   Code = 0xb4
	ConvOvfI2   Code = 0xb5
	ConvOvfU2   Code = 0xb6
	ConvOvfI4   Code = 0xb7
	ConvOvfU4   Code = 0xb8
	ConvOvfI8   Code = 0xb9
	ConvOvfU8   Code = 0xba
	Refanyval   Code = 0xc2
	Ckfinite    Code = 0xc3
	Mkrefany    Code = 0xc6
	Ldtoken     Code = 0xd0
	ConvU2      Code = 0xd1
	ConvU1      Code = 0xd2
	ConvI       Code = 0xd3
	ConvOvfI    Code = 0xd4
	ConvOvfU    Code = 0xd5
	AddOvf      Code = 0xd6
	AddOvfUn    Code = 0xd7
	MulOvf      Code = 0xd8
	MulOvfUn    Code = 0xd9
	SubOvf      Code = 0xda
	SubOvfUn    Code = 0xdb
	Endfinally  Code = 0xdc
	Leave       Code = 0xdd
	LeaveS      Code = 0xde
	StindI      Code = 0xdf
	ConvU       Code = 0xe0

	Arglist     Code = 0xfe00
	Ceq         Code = 0xfe01
	Cgt         Code = 0xfe02
	CgtUn       Code = 0xfe03
	Clt         Code = 0xfe04
	CltUn       Code = 0xfe05
	Ldftn       Code = 0xfe06
	Ldvirtftn   Code = 0xfe07
	Ldarg       Code = 0xfe09
	Ldarga      Code = 0xfe0a
	Starg       Code = 0xfe0b
	Ldloc       Code = 0xfe0c
	Ldloca      Code = 0xfe0d
	Stloc       Code = 0xfe0e
	Localloc    Code = 0xfe0f
	Endfilter   Code = 0xfe11
	Unaligned   Code = 0xfe12
	Volatile    Code = 0xfe13
	Tail        Code = 0xfe14
	Initobj     Code = 0xfe15
	Constrained Code = 0xfe16
	Cpblk       Code = 0xfe17
	Initblk     Code = 0xfe18
	No          Code = 0xfe19
	Rethrow     Code = 0xfe1a
	Sizeof      Code = 0xfe1c
	Refanytype  Code = 0xfe1d
	Readonly    Code = 0xfe1e
)

const twoBytePrefix = 0xfe

// OperandType describes the inline operand that follows an opcode.
type OperandType uint8

const (
	InlineNone OperandType = iota
	ShortInlineI
	InlineI
	InlineI8
	ShortInlineR
	InlineR
	InlineMethod
	InlineField
	InlineType
	InlineTok
	InlineString
	InlineSig
	ShortInlineBrTarget
	InlineBrTarget
	InlineSwitch
	ShortInlineVar
	InlineVar
	ShortInlineArg
	InlineArg
)

// Size returns the encoded operand size in bytes. InlineSwitch is variable
// and reports only its count prefix.
func (t OperandType) Size() int {
	switch t {
	case InlineNone:
		return 0
	case ShortInlineI, ShortInlineBrTarget, ShortInlineVar, ShortInlineArg:
		return 1
	case InlineVar, InlineArg:
		return 2
	case InlineI8, InlineR:
		return 8
	default:
		return 4
	}
}

// IsToken reports whether the operand is a metadata token.
func (t OperandType) IsToken() bool {
	switch t {
	case InlineMethod, InlineField, InlineType, InlineTok, InlineString, InlineSig:
		return true
	}
	return false
}

// VarStack marks a stack effect that depends on a call signature.
const VarStack = -1

// Info contains information about an opcode.
type Info struct {
	Code    Code
	Name    string
	Operand OperandType
	Pop     int
	Push    int
}

// Size returns the size of the opcode itself, not counting the operand.
func (c Code) Size() int {
	if c>>8 == twoBytePrefix {
		return 2
	}
	return 1
}

func (c Code) String() string {
	if info, ok := GetInfo(c); ok {
		return info.Name
	}
	return fmt.Sprintf("unknown(0x%04x)", uint16(c))
}

var (
	oneByte [256]*Info
	twoByte [256]*Info
)

// GetInfo returns the description of an opcode.
func GetInfo(c Code) (Info, bool) {
	var info *Info
	switch {
	case c>>8 == twoBytePrefix:
		info = twoByte[c&0xff]
	case c>>8 == 0:
		info = oneByte[c]
	}
	if info == nil {
		return Info{}, false
	}
	return *info, true
}

func init() {
	const v = VarStack
	ops := []Info{
		{Nop, "nop", InlineNone, 0, 0},
		{Break, "break", InlineNone, 0, 0},
		{Ldarg0, "ldarg.0", InlineNone, 0, 1},
		{Ldarg1, "ldarg.1", InlineNone, 0, 1},
		{Ldarg2, "ldarg.2", InlineNone, 0, 1},
		{Ldarg3, "ldarg.3", InlineNone, 0, 1},
		{Ldloc0, "ldloc.0", InlineNone, 0, 1},
		{Ldloc1, "ldloc.1", InlineNone, 0, 1},
		{Ldloc2, "ldloc.2", InlineNone, 0, 1},
		{Ldloc3, "ldloc.3", InlineNone, 0, 1},
		{Stloc0, "stloc.0", InlineNone, 1, 0},
		{Stloc1, "stloc.1", InlineNone, 1, 0},
		{Stloc2, "stloc.2", InlineNone, 1, 0},
		{Stloc3, "stloc.3", InlineNone, 1, 0},
		{LdargS, "ldarg.s", ShortInlineArg, 0, 1},
		{LdargaS, "ldarga.s", ShortInlineArg, 0, 1},
		{StargS, "starg.s", ShortInlineArg, 1, 0},
		{LdlocS, "ldloc.s", ShortInlineVar, 0, 1},
		{LdlocaS, "ldloca.s", ShortInlineVar, 0, 1},
		{StlocS, "stloc.s", ShortInlineVar, 1, 0},
		{Ldnull, "ldnull", InlineNone, 0, 1},
		{LdcI4M1, "ldc.i4.m1", InlineNone, 0, 1},
		{LdcI40, "ldc.i4.0", InlineNone, 0, 1},
		{LdcI41, "ldc.i4.1", InlineNone, 0, 1},
		{LdcI42, "ldc.i4.2", InlineNone, 0, 1},
		{LdcI43, "ldc.i4.3", InlineNone, 0, 1},
		{LdcI44, "ldc.i4.4", InlineNone, 0, 1},
		{LdcI45, "ldc.i4.5", InlineNone, 0, 1},
		{LdcI46, "ldc.i4.6", InlineNone, 0, 1},
		{LdcI47, "ldc.i4.7", InlineNone, 0, 1},
		{LdcI48, "ldc.i4.8", InlineNone, 0, 1},
		{LdcI4S, "ldc.i4.s", ShortInlineI, 0, 1},
		{LdcI4, "ldc.i4", InlineI, 0, 1},
		{LdcI8, "ldc.i8", InlineI8, 0, 1},
		{LdcR4, "ldc.r4", ShortInlineR, 0, 1},
		{LdcR8, "ldc.r8", InlineR, 0, 1},
		{Dup, "dup", InlineNone, 1, 2},
		{Pop, "pop", InlineNone, 1, 0},
		{Jmp, "jmp", InlineMethod, v, v},
		{Call, "call", InlineMethod, v, v},
		{Calli, "calli", InlineSig, v, v},
		{Ret, "ret", InlineNone, v, 0},
		{BrS, "br.s", ShortInlineBrTarget, 0, 0},
		{BrfalseS, "brfalse.s", ShortInlineBrTarget, 1, 0},
		{BrtrueS, "brtrue.s", ShortInlineBrTarget, 1, 0},
		{BeqS, "beq.s", ShortInlineBrTarget, 2, 0},
		{BgeS, "bge.s", ShortInlineBrTarget, 2, 0},
		{BgtS, "bgt.s", ShortInlineBrTarget, 2, 0},
		{BleS, "ble.s", ShortInlineBrTarget, 2, 0},
		{BltS, "blt.s", ShortInlineBrTarget, 2, 0},
		{BneUnS, "bne.un.s", ShortInlineBrTarget, 2, 0},
		{BgeUnS, "bge.un.s", ShortInlineBrTarget, 2, 0},
		{BgtUnS, "bgt.un.s", ShortInlineBrTarget, 2, 0},
		{BleUnS, "ble.un.s", ShortInlineBrTarget, 2, 0},
		{BltUnS, "blt.un.s", ShortInlineBrTarget, 2, 0},
		{Br, "br", InlineBrTarget, 0, 0},
		{Brfalse, "brfalse", InlineBrTarget, 1, 0},
		{Brtrue, "brtrue", InlineBrTarget, 1, 0},
		{Beq, "beq", InlineBrTarget, 2, 0},
		{Bge, "bge", InlineBrTarget, 2, 0},
		{Bgt, "bgt", InlineBrTarget, 2, 0},
		{Ble, "ble", InlineBrTarget, 2, 0},
		{Blt, "blt", InlineBrTarget, 2, 0},
		{BneUn, "bne.un", InlineBrTarget, 2, 0},
		{BgeUn, "bge.un", InlineBrTarget, 2, 0},
		{BgtUn, "bgt.un", InlineBrTarget, 2, 0},
		{BleUn, "ble.un", InlineBrTarget, 2, 0},
		{BltUn, "blt.un", InlineBrTarget, 2, 0},
		{Switch, "switch", InlineSwitch, 1, 0},
		{LdindI1, "ldind.i1", InlineNone, 1, 1},
		{LdindU1, "ldind.u1", InlineNone, 1, 1},
		{LdindI2, "ldind.i2", InlineNone, 1, 1},
		{LdindU2, "ldind.u2", InlineNone, 1, 1},
		{LdindI4, "ldind.i4", InlineNone, 1, 1},
		{LdindU4, "ldind.u4", InlineNone, 1, 1},
		{LdindI8, "ldind.i8", InlineNone, 1, 1},
		{LdindI, "ldind.i", InlineNone, 1, 1},
		{LdindR4, "ldind.r4", InlineNone, 1, 1},
		{LdindR8, "ldind.r8", InlineNone, 1, 1},
		{LdindRef, "ldind.ref", InlineNone, 1, 1},
		{StindRef, "stind.ref", InlineNone, 2, 0},
		{StindI1, "stind.i1", InlineNone, 2, 0},
		{StindI2, "stind.i2", InlineNone, 2, 0},
		{StindI4, "stind.i4", InlineNone, 2, 0},
		{StindI8, "stind.i8", InlineNone, 2, 0},
		{StindR4, "stind.r4", InlineNone, 2, 0},
		{StindR8, "stind.r8", InlineNone, 2, 0},
		{Add, "add", InlineNone, 2, 1},
		{Sub, "sub", InlineNone, 2, 1},
		{Mul, "mul", InlineNone, 2, 1},
		{Div, "div", InlineNone, 2, 1},
		{DivUn, "div.un", InlineNone, 2, 1},
		{Rem, "rem", InlineNone, 2, 1},
		{RemUn, "rem.un", InlineNone, 2, 1},
		{And, "and", InlineNone, 2, 1},
		{Or, "or", InlineNone, 2, 1},
		{Xor, "xor", InlineNone, 2, 1},
		{Shl, "shl", InlineNone, 2, 1},
		{Shr, "shr", InlineNone, 2, 1},
		{ShrUn, "shr.un", InlineNone, 2, 1},
		{Neg, "neg", InlineNone, 1, 1},
		{Not, "not", InlineNone, 1, 1},
		{ConvI1, "conv.i1", InlineNone, 1, 1},
		{ConvI2, "conv.i2", InlineNone, 1, 1},
		{ConvI4, "conv.i4", InlineNone, 1, 1},
		{ConvI8, "conv.i8", InlineNone, 1, 1},
		{ConvR4, "conv.r4", InlineNone, 1, 1},
		{ConvR8, "conv.r8", InlineNone, 1, 1},
		{ConvU4, "conv.u4", InlineNone, 1, 1},
		{ConvU8, "conv.u8", InlineNone, 1, 1},
		{Callvirt, "callvirt", InlineMethod, v, v},
		{Cpobj, "cpobj", InlineType, 2, 0},
		{Ldobj, "ldobj", InlineType, 1, 1},
		{Ldstr, "ldstr", InlineString, 0, 1},
		{Newobj, "newobj", InlineMethod, v, 1},
		{Castclass, "castclass", InlineType, 1, 1},
		{Isinst, "isinst", InlineType, 1, 1},
		{ConvRUn, "conv.r.un", InlineNone, 1, 1},
		{Unbox, "unbox", InlineType, 1, 1},
		{Throw, "throw", InlineNone, 1, 0},
		{Ldfld, "ldfld", InlineField, 1, 1},
		{Ldflda, "ldflda", InlineField, 1, 1},
		{Stfld, "stfld", InlineField, 2, 0},
		{Ldsfld, "ldsfld", InlineField, 0, 1},
		{Ldsflda, "ldsflda", InlineField, 0, 1},
		{Stsfld, "stsfld", InlineField, 1, 0},
		{Stobj, "stobj", InlineType, 2, 0},
		{ConvOvfI1Un, "conv.ovf.i1.un", InlineNone, 1, 1},
		{ConvOvfI2Un, "conv.ovf.i2.un", InlineNone, 1, 1},
		{ConvOvfI4Un, "conv.ovf.i4.un", InlineNone, 1, 1},
		{ConvOvfI8Un, "conv.ovf.i8.un", InlineNone, 1, 1},
		{ConvOvfU1Un, "conv.ovf.u1.un", InlineNone, 1, 1},
		{ConvOvfU2Un, "conv.ovf.u2.un", InlineNone, 1, 1},
		{ConvOvfU4Un, "conv.ovf.u4.un", InlineNone, 1, 1},
		{ConvOvfU8Un, "conv.ovf.u8.un", InlineNone, 1, 1},
		{ConvOvfIUn, "conv.ovf.i.un", InlineNone, 1, 1},
		{ConvOvfUUn, "conv.ovf.u.un", InlineNone, 1, 1},
		{Box, "box", InlineType, 1, 1},
		{Newarr, "newarr", InlineType, 1, 1},
		{Ldlen, "ldlen", InlineNone, 1, 1},
		{Ldelema, "ldelema", InlineType, 2, 1},
		{LdelemI1, "ldelem.i1", InlineNone, 2, 1},
		{LdelemU1, "ldelem.u1", InlineNone, 2, 1},
		{LdelemI2, "ldelem.i2", InlineNone, 2, 1},
		{LdelemU2, "ldelem.u2", InlineNone, 2, 1},
		{LdelemI4, "ldelem.i4", InlineNone, 2, 1},
		{LdelemU4, "ldelem.u4", InlineNone, 2, 1},
		{LdelemI8, "ldelem.i8", InlineNone, 2, 1},
		{LdelemI, "ldelem.i", InlineNone, 2, 1},
		{LdelemR4, "ldelem.r4", InlineNone, 2, 1},
		{LdelemR8, "ldelem.r8", InlineNone, 2, 1},
		{LdelemRef, "ldelem.ref", InlineNone, 2, 1},
		{StelemI, "stelem.i", InlineNone, 3, 0},
		{StelemI1, "stelem.i1", InlineNone, 3, 0},
		{StelemI2, "stelem.i2", InlineNone, 3, 0},
		{StelemI4, "stelem.i4", InlineNone, 3, 0},
		{StelemI8, "stelem.i8", InlineNone, 3, 0},
		{StelemR4, "stelem.r4", InlineNone, 3, 0},
		{StelemR8, "stelem.r8", InlineNone, 3, 0},
		{StelemRef, "stelem.ref", InlineNone, 3, 0},
		{Ldelem, "ldelem", InlineType, 2, 1},
		{Stelem, "stelem", InlineType, 3, 0},
		{UnboxAny, "unbox.any", InlineType, 1, 1},
		{ConvOvfI1, "conv.ovf.i1", InlineNone, 1, 1},
		{ConvOvfU1, "conv.ovf.u1", InlineNone, 1, 1},
		{ConvOvfI2, "conv.ovf.i2", InlineNone, 1, 1},
		{ConvOvfU2, "conv.ovf.u2", InlineNone, 1, 1},
		{ConvOvfI4, "conv.ovf.i4", InlineNone, 1, 1},
		{ConvOvfU4, "conv.ovf.u4", InlineNone, 1, 1},
		{ConvOvfI8, "conv.ovf.i8", InlineNone, 1, 1},
		{ConvOvfU8, "conv.ovf.u8", InlineNone, 1, 1},
		{Refanyval, "refanyval", InlineType, 1, 1},
		{Ckfinite, "ckfinite", InlineNone, 1, 1},
		{Mkrefany, "mkrefany", InlineType, 1, 1},
		{Ldtoken, "ldtoken", InlineTok, 0, 1},
		{ConvU2, "conv.u2", InlineNone, 1, 1},
		{ConvU1, "conv.u1", InlineNone, 1, 1},
		{ConvI, "conv.i", InlineNone, 1, 1},
		{ConvOvfI, "conv.ovf.i", InlineNone, 1, 1},
		{ConvOvfU, "conv.ovf.u", InlineNone, 1, 1},
		{AddOvf, "add.ovf", InlineNone, 2, 1},
		{AddOvfUn, "add.ovf.un", InlineNone, 2, 1},
		{MulOvf, "mul.ovf", InlineNone, 2, 1},
		{MulOvfUn, "mul.ovf.un", InlineNone, 2, 1},
		{SubOvf, "sub.ovf", InlineNone, 2, 1},
		{SubOvfUn, "sub.ovf.un", InlineNone, 2, 1},
		{Endfinally, "endfinally", InlineNone, 0, 0},
		{Leave, "leave", InlineBrTarget, 0, 0},
		{LeaveS, "leave.s", ShortInlineBrTarget, 0, 0},
		{StindI, "stind.i", InlineNone, 2, 0},
		{ConvU, "conv.u", InlineNone, 1, 1},

		{Arglist, "arglist", InlineNone, 0, 1},
		{Ceq, "ceq", InlineNone, 2, 1},
		{Cgt, "cgt", InlineNone, 2, 1},
		{CgtUn, "cgt.un", InlineNone, 2, 1},
		{Clt, "clt", InlineNone, 2, 1},
		{CltUn, "clt.un", InlineNone, 2, 1},
		{Ldftn, "ldftn", InlineMethod, 0, 1},
		{Ldvirtftn, "ldvirtftn", InlineMethod, 1, 1},
		{Ldarg, "ldarg", InlineArg, 0, 1},
		{Ldarga, "ldarga", InlineArg, 0, 1},
		{Starg, "starg", InlineArg, 1, 0},
		{Ldloc, "ldloc", InlineVar, 0, 1},
		{Ldloca, "ldloca", InlineVar, 0, 1},
		{Stloc, "stloc", InlineVar, 1, 0},
		{Localloc, "localloc", InlineNone, 1, 1},
		{Endfilter, "endfilter", InlineNone, 1, 0},
		{Unaligned, "unaligned.", ShortInlineI, 0, 0},
		{Volatile, "volatile.", InlineNone, 0, 0},
		{Tail, "tail.", InlineNone, 0, 0},
		{Initobj, "initobj", InlineType, 1, 0},
		{Constrained, "constrained.", InlineType, 0, 0},
		{Cpblk, "cpblk", InlineNone, 3, 0},
		{Initblk, "initblk", InlineNone, 3, 0},
		{No, "no.", ShortInlineI, 0, 0},
		{Rethrow, "rethrow", InlineNone, 0, 0},
		{Sizeof, "sizeof", InlineType, 0, 1},
		{Refanytype, "refanytype", InlineNone, 1, 1},
		{Readonly, "readonly.", InlineNone, 0, 0},
	}
	for i := range ops {
		op := &ops[i]
		if op.Code>>8 == twoBytePrefix {
			twoByte[op.Code&0xff] = op
		} else {
			oneByte[op.Code] = op
		}
	}
}

// shortToLong maps short branch forms to their long equivalents.
var shortToLong = map[Code]Code{
	BrS:      Br,
	BrfalseS: Brfalse,
	BrtrueS:  Brtrue,
	BeqS:     Beq,
	BgeS:     Bge,
	BgtS:     Bgt,
	BleS:     Ble,
	BltS:     Blt,
	BneUnS:   BneUn,
	BgeUnS:   BgeUn,
	BgtUnS:   BgtUn,
	BleUnS:   BleUn,
	BltUnS:   BltUn,
	LeaveS:   Leave,
}

// LongForm returns the long branch form of a short branch opcode, or the
// opcode itself.
func LongForm(c Code) Code {
	if long, ok := shortToLong[c]; ok {
		return long
	}
	return c
}
