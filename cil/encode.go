package cil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrForeignTarget is returned when a branch or handler references an
// instruction that is not part of the body.
var ErrForeignTarget = errors.New("target instruction is not in the method body")

// Encode serializes the body, header and exception sections included.
//
// Offsets of all instructions are recomputed. Short branches whose
// displacement no longer fits in a signed byte are promoted to their long
// form; long forms are never shortened.
func (b *MethodBody) Encode() ([]byte, error) {
	index := make(map[*Instruction]int, len(b.Instructions))
	for i, ins := range b.Instructions {
		if ins == nil {
			return nil, fmt.Errorf("instruction %d is nil", i)
		}
		info, ok := GetInfo(ins.OpCode)
		if !ok {
			return nil, fmt.Errorf("instruction %d: opcode 0x%x: %w", i, uint16(ins.OpCode), ErrUnknownOpcode)
		}
		if !validOperand(info, ins.Operand) {
			return nil, fmt.Errorf("instruction %d: invalid operand %T for %s", i, ins.Operand, info.Name)
		}
		index[ins] = i
	}
	for i, ins := range b.Instructions {
		for _, t := range branchTargets(ins) {
			if _, ok := index[t]; !ok {
				return nil, fmt.Errorf("instruction %d (%s): %w", i, ins.OpCode, ErrForeignTarget)
			}
		}
	}
	for i, h := range b.Handlers {
		for _, t := range []*Instruction{h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd, h.FilterStart} {
			if t == nil {
				continue
			}
			if _, ok := index[t]; !ok {
				return nil, fmt.Errorf("exception handler %d: %w", i, ErrForeignTarget)
			}
		}
	}

	codeSize := b.layout()
	code := make([]byte, 0, codeSize)
	for _, ins := range b.Instructions {
		code = appendInstruction(code, ins)
	}

	var out []byte
	if b.isTiny(len(code)) {
		out = append(out, byte(len(code)<<2|headerTiny))
		out = append(out, code...)
		return out, nil
	}

	flags := uint16(headerFat)
	if len(b.Handlers) > 0 {
		flags |= flagMoreSects
	}
	if b.InitLocals {
		flags |= flagInitLocals
	}
	out = binary.LittleEndian.AppendUint16(out, flags|(fatHeaderSize/4)<<12)
	out = binary.LittleEndian.AppendUint16(out, b.MaxStack)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(code)))
	out = binary.LittleEndian.AppendUint32(out, uint32(b.LocalVarSig))
	out = append(out, code...)

	if len(b.Handlers) > 0 {
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
		out = append(out, b.encodeHandlers(len(code))...)
	}
	return out, nil
}

func (b *MethodBody) isTiny(codeSize int) bool {
	return codeSize < tinyMaxCode &&
		b.MaxStack <= tinyMaxStack &&
		b.LocalVarSig == 0 &&
		!b.InitLocals &&
		len(b.Handlers) == 0
}

// layout assigns offsets, promoting short branches until every displacement
// fits. It returns the code size.
func (b *MethodBody) layout() int {
	for {
		offset := 0
		for _, ins := range b.Instructions {
			ins.Offset = offset
			offset += ins.Size()
		}

		promoted := false
		for _, ins := range b.Instructions {
			info, _ := GetInfo(ins.OpCode)
			if info.Operand != ShortInlineBrTarget {
				continue
			}
			target := ins.Operand.(*Instruction)
			disp := target.Offset - (ins.Offset + ins.Size())
			if disp < math.MinInt8 || disp > math.MaxInt8 {
				ins.OpCode = LongForm(ins.OpCode)
				promoted = true
			}
		}
		if !promoted {
			return offset
		}
	}
}

func appendInstruction(buf []byte, ins *Instruction) []byte {
	if ins.OpCode.Size() == 2 {
		buf = append(buf, twoBytePrefix, byte(ins.OpCode))
	} else {
		buf = append(buf, byte(ins.OpCode))
	}

	info, _ := GetInfo(ins.OpCode)
	end := ins.Offset + ins.Size()
	switch info.Operand {
	case InlineNone:
	case ShortInlineI:
		buf = append(buf, byte(ins.Operand.(int8)))
	case InlineI:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(ins.Operand.(int32)))
	case InlineI8:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(ins.Operand.(int64)))
	case ShortInlineR:
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(ins.Operand.(float32)))
	case InlineR:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(ins.Operand.(float64)))
	case ShortInlineVar, ShortInlineArg:
		buf = append(buf, byte(ins.Operand.(Variable)))
	case InlineVar, InlineArg:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(ins.Operand.(Variable)))
	case ShortInlineBrTarget:
		buf = append(buf, byte(int8(ins.Operand.(*Instruction).Offset-end)))
	case InlineBrTarget:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(ins.Operand.(*Instruction).Offset-end)))
	case InlineSwitch:
		targets := ins.Operand.([]*Instruction)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(targets)))
		for _, t := range targets {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(t.Offset-end)))
		}
	default:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(ins.Operand.(Token)))
	}
	return buf
}

type clause struct {
	kind, tryOff, tryLen, handlerOff, handlerLen, extra uint32
}

func (b *MethodBody) encodeHandlers(codeSize int) []byte {
	offsetOf := func(ins *Instruction) uint32 {
		if ins == nil {
			return uint32(codeSize)
		}
		return uint32(ins.Offset)
	}

	clauses := make([]clause, len(b.Handlers))
	small := 4+smallClauseSize*len(b.Handlers) <= math.MaxUint8
	for i, h := range b.Handlers {
		c := clause{
			kind:       uint32(h.Kind),
			tryOff:     offsetOf(h.TryStart),
			handlerOff: offsetOf(h.HandlerStart),
		}
		c.tryLen = offsetOf(h.TryEnd) - c.tryOff
		c.handlerLen = offsetOf(h.HandlerEnd) - c.handlerOff
		switch h.Kind {
		case HandlerFilter:
			c.extra = offsetOf(h.FilterStart)
		case HandlerCatch:
			c.extra = uint32(h.CatchType)
		}
		if c.tryOff > math.MaxUint16 || c.handlerOff > math.MaxUint16 ||
			c.tryLen > math.MaxUint8 || c.handlerLen > math.MaxUint8 {
			small = false
		}
		clauses[i] = c
	}

	var out []byte
	if small {
		size := 4 + smallClauseSize*len(clauses)
		out = append(out, sectEHTable, byte(size), 0, 0)
		for _, c := range clauses {
			out = binary.LittleEndian.AppendUint16(out, uint16(c.kind))
			out = binary.LittleEndian.AppendUint16(out, uint16(c.tryOff))
			out = append(out, byte(c.tryLen))
			out = binary.LittleEndian.AppendUint16(out, uint16(c.handlerOff))
			out = append(out, byte(c.handlerLen))
			out = binary.LittleEndian.AppendUint32(out, c.extra)
		}
		return out
	}

	size := 4 + fatClauseSize*len(clauses)
	out = append(out, sectEHTable|sectFatFormat, byte(size), byte(size>>8), byte(size>>16))
	for _, c := range clauses {
		for _, v := range []uint32{c.kind, c.tryOff, c.tryLen, c.handlerOff, c.handlerLen, c.extra} {
			out = binary.LittleEndian.AppendUint32(out, v)
		}
	}
	return out
}

func branchTargets(ins *Instruction) []*Instruction {
	switch v := ins.Operand.(type) {
	case *Instruction:
		return []*Instruction{v}
	case []*Instruction:
		return v
	}
	return nil
}
