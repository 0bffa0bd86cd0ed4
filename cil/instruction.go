package cil

import (
	"fmt"
	"math"
	"strings"
)

// Token is a metadata token: table id in the high byte, one-based row in the
// low three bytes.
type Token uint32

// Table returns the metadata table id of the token.
func (t Token) Table() uint8 { return uint8(t >> 24) }

// Row returns the one-based row index of the token.
func (t Token) Row() uint32 { return uint32(t) & 0x00ffffff }

func (t Token) String() string { return fmt.Sprintf("0x%08x", uint32(t)) }

// Variable is a local variable or argument index.
type Variable uint16

// Instruction is a single opcode with its operand.
//
// Operand holds one of: nil, int8, int32, int64, float32, float64, Token,
// Variable, *Instruction (branch target) or []*Instruction (switch targets).
type Instruction struct {
	OpCode  Code
	Operand any

	// Offset is the byte offset within the method body. It is set by
	// DecodeBody and Encode.
	Offset int
}

// Create returns a new instruction.
func Create(op Code, operand any) *Instruction {
	return &Instruction{OpCode: op, Operand: operand}
}

// Size returns the encoded size of the instruction in bytes.
func (ins *Instruction) Size() int {
	info, ok := GetInfo(ins.OpCode)
	if !ok {
		return ins.OpCode.Size()
	}
	size := ins.OpCode.Size() + info.Operand.Size()
	if info.Operand == InlineSwitch {
		targets, _ := ins.Operand.([]*Instruction)
		size += 4 * len(targets)
	}
	return size
}

// Float32 returns the operand as a float32, if it is one.
func (ins *Instruction) Float32() (float32, bool) {
	f, ok := ins.Operand.(float32)
	return f, ok
}

// Equal reports whether two instructions have the same opcode and operand.
// Branch operands are compared by the identity of their targets.
func (ins *Instruction) Equal(other *Instruction) bool {
	if ins == nil || other == nil {
		return ins == other
	}
	if ins.OpCode != other.OpCode {
		return false
	}
	switch a := ins.Operand.(type) {
	case float32:
		b, ok := other.Operand.(float32)
		return ok && math.Float32bits(a) == math.Float32bits(b)
	case float64:
		b, ok := other.Operand.(float64)
		return ok && math.Float64bits(a) == math.Float64bits(b)
	case []*Instruction:
		b, ok := other.Operand.([]*Instruction)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	default:
		return ins.Operand == other.Operand
	}
}

func (ins *Instruction) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "IL_%04x: %s", ins.Offset, ins.OpCode)
	if operand := formatOperand(ins.Operand); operand != "" {
		buf.WriteByte(' ')
		buf.WriteString(operand)
	}
	return buf.String()
}

func formatOperand(operand any) string {
	switch v := operand.(type) {
	case nil:
		return ""
	case *Instruction:
		return fmt.Sprintf("IL_%04x", v.Offset)
	case []*Instruction:
		labels := make([]string, len(v))
		for i, t := range v {
			labels[i] = fmt.Sprintf("IL_%04x", t.Offset)
		}
		return "(" + strings.Join(labels, ", ") + ")"
	case float32:
		return fmt.Sprintf("%g", v)
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

// validOperand checks that the operand's Go type matches the opcode.
func validOperand(info Info, operand any) bool {
	switch info.Operand {
	case InlineNone:
		return operand == nil
	case ShortInlineI:
		_, ok := operand.(int8)
		return ok
	case InlineI:
		_, ok := operand.(int32)
		return ok
	case InlineI8:
		_, ok := operand.(int64)
		return ok
	case ShortInlineR:
		_, ok := operand.(float32)
		return ok
	case InlineR:
		_, ok := operand.(float64)
		return ok
	case ShortInlineBrTarget, InlineBrTarget:
		t, ok := operand.(*Instruction)
		return ok && t != nil
	case InlineSwitch:
		_, ok := operand.([]*Instruction)
		return ok
	case ShortInlineVar, ShortInlineArg:
		v, ok := operand.(Variable)
		return ok && v <= math.MaxUint8
	case InlineVar, InlineArg:
		_, ok := operand.(Variable)
		return ok
	default:
		_, ok := operand.(Token)
		return ok
	}
}
