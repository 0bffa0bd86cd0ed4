package cil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	headerTiny     = 0x2
	headerFat      = 0x3
	headerTypeMask = 0x3

	flagMoreSects  = 0x08
	flagInitLocals = 0x10

	fatHeaderSize = 12
	tinyMaxCode   = 64
	tinyMaxStack  = 8

	sectEHTable   = 0x01
	sectFatFormat = 0x40
	sectMoreSects = 0x80

	smallClauseSize = 12
	fatClauseSize   = 24
)

var (
	ErrTruncated     = errors.New("method body truncated")
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrBadTarget     = errors.New("branch target is not an instruction boundary")
	ErrBadHeader     = errors.New("invalid method body header")
)

// DecodeBody decodes the method body at the start of data. It returns the
// body and the number of bytes it occupies, including exception sections.
func DecodeBody(data []byte) (*MethodBody, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrTruncated
	}

	body := &MethodBody{}
	var (
		code       []byte
		headerSize int
		moreSects  bool
	)

	switch data[0] & headerTypeMask {
	case headerTiny:
		size := int(data[0] >> 2)
		headerSize = 1
		if len(data) < headerSize+size {
			return nil, 0, ErrTruncated
		}
		code = data[headerSize : headerSize+size]
		body.MaxStack = tinyMaxStack
	case headerFat:
		if len(data) < fatHeaderSize {
			return nil, 0, ErrTruncated
		}
		flagsSize := binary.LittleEndian.Uint16(data)
		headerSize = int(flagsSize>>12) * 4
		if headerSize < fatHeaderSize {
			return nil, 0, fmt.Errorf("fat header size %d: %w", headerSize, ErrBadHeader)
		}
		body.MaxStack = binary.LittleEndian.Uint16(data[2:])
		size := int(binary.LittleEndian.Uint32(data[4:]))
		body.LocalVarSig = Token(binary.LittleEndian.Uint32(data[8:]))
		body.InitLocals = flagsSize&flagInitLocals != 0
		moreSects = flagsSize&flagMoreSects != 0
		if size < 0 || len(data)-headerSize < size {
			return nil, 0, ErrTruncated
		}
		code = data[headerSize : headerSize+size]
	default:
		return nil, 0, fmt.Errorf("header byte 0x%02x: %w", data[0], ErrBadHeader)
	}

	byOffset, err := decodeInstructions(body, code)
	if err != nil {
		return nil, 0, err
	}

	consumed := headerSize + len(code)
	for moreSects {
		pos := align4(consumed)
		if len(data) < pos+4 {
			return nil, 0, ErrTruncated
		}
		kind := data[pos]
		var dataSize, clauseSize int
		if kind&sectFatFormat != 0 {
			dataSize = int(data[pos+1]) | int(data[pos+2])<<8 | int(data[pos+3])<<16
			clauseSize = fatClauseSize
		} else {
			dataSize = int(data[pos+1])
			clauseSize = smallClauseSize
		}
		if dataSize < 4 || len(data) < pos+dataSize {
			return nil, 0, ErrTruncated
		}
		if kind&sectEHTable != 0 {
			clauses := data[pos+4 : pos+dataSize]
			for len(clauses) >= clauseSize {
				h, err := decodeClause(clauses[:clauseSize], kind&sectFatFormat != 0, byOffset, len(code))
				if err != nil {
					return nil, 0, err
				}
				body.Handlers = append(body.Handlers, h)
				clauses = clauses[clauseSize:]
			}
		}
		consumed = pos + dataSize
		moreSects = kind&sectMoreSects != 0
	}

	return body, consumed, nil
}

func decodeInstructions(body *MethodBody, code []byte) (map[int]*Instruction, error) {
	type pending struct {
		ins     *Instruction
		targets []int
	}
	var branches []pending
	byOffset := make(map[int]*Instruction)

	for off := 0; off < len(code); {
		start := off
		op := Code(code[off])
		off++
		if op == twoBytePrefix {
			if off >= len(code) {
				return nil, ErrTruncated
			}
			op = Code(twoBytePrefix)<<8 | Code(code[off])
			off++
		}
		info, ok := GetInfo(op)
		if !ok {
			return nil, fmt.Errorf("opcode 0x%x at offset %d: %w", uint16(op), start, ErrUnknownOpcode)
		}

		operandSize := info.Operand.Size()
		if len(code)-off < operandSize {
			return nil, fmt.Errorf("operand of %s at offset %d: %w", info.Name, start, ErrTruncated)
		}
		operand := code[off : off+operandSize]
		off += operandSize

		ins := &Instruction{OpCode: op, Offset: start}
		switch info.Operand {
		case InlineNone:
		case ShortInlineI:
			ins.Operand = int8(operand[0])
		case InlineI:
			ins.Operand = int32(binary.LittleEndian.Uint32(operand))
		case InlineI8:
			ins.Operand = int64(binary.LittleEndian.Uint64(operand))
		case ShortInlineR:
			ins.Operand = math.Float32frombits(binary.LittleEndian.Uint32(operand))
		case InlineR:
			ins.Operand = math.Float64frombits(binary.LittleEndian.Uint64(operand))
		case ShortInlineVar, ShortInlineArg:
			ins.Operand = Variable(operand[0])
		case InlineVar, InlineArg:
			ins.Operand = Variable(binary.LittleEndian.Uint16(operand))
		case ShortInlineBrTarget:
			branches = append(branches, pending{ins, []int{off + int(int8(operand[0]))}})
		case InlineBrTarget:
			branches = append(branches, pending{ins, []int{off + int(int32(binary.LittleEndian.Uint32(operand)))}})
		case InlineSwitch:
			n := int(binary.LittleEndian.Uint32(operand))
			if n < 0 || (len(code)-off)/4 < n {
				return nil, fmt.Errorf("switch at offset %d: %w", start, ErrTruncated)
			}
			base := off + 4*n
			targets := make([]int, n)
			for i := range targets {
				targets[i] = base + int(int32(binary.LittleEndian.Uint32(code[off+4*i:])))
			}
			off = base
			branches = append(branches, pending{ins, targets})
		default:
			ins.Operand = Token(binary.LittleEndian.Uint32(operand))
		}

		byOffset[start] = ins
		body.Instructions = append(body.Instructions, ins)
	}

	for _, b := range branches {
		resolved := make([]*Instruction, len(b.targets))
		for i, target := range b.targets {
			t, ok := byOffset[target]
			if !ok {
				return nil, fmt.Errorf("%s at offset %d targets %d: %w", b.ins.OpCode, b.ins.Offset, target, ErrBadTarget)
			}
			resolved[i] = t
		}
		if b.ins.OpCode == Switch {
			b.ins.Operand = resolved
		} else {
			b.ins.Operand = resolved[0]
		}
	}

	return byOffset, nil
}

func decodeClause(raw []byte, fat bool, byOffset map[int]*Instruction, codeSize int) (*ExceptionHandler, error) {
	var kind, tryOff, tryLen, handlerOff, handlerLen, extra uint32
	if fat {
		kind = binary.LittleEndian.Uint32(raw)
		tryOff = binary.LittleEndian.Uint32(raw[4:])
		tryLen = binary.LittleEndian.Uint32(raw[8:])
		handlerOff = binary.LittleEndian.Uint32(raw[12:])
		handlerLen = binary.LittleEndian.Uint32(raw[16:])
		extra = binary.LittleEndian.Uint32(raw[20:])
	} else {
		kind = uint32(binary.LittleEndian.Uint16(raw))
		tryOff = uint32(binary.LittleEndian.Uint16(raw[2:]))
		tryLen = uint32(raw[4])
		handlerOff = uint32(binary.LittleEndian.Uint16(raw[5:]))
		handlerLen = uint32(raw[7])
		extra = binary.LittleEndian.Uint32(raw[8:])
	}

	at := func(off uint32, endOK bool) (*Instruction, error) {
		if endOK && int(off) == codeSize {
			return nil, nil
		}
		ins, ok := byOffset[int(off)]
		if !ok {
			return nil, fmt.Errorf("exception clause offset %d: %w", off, ErrBadTarget)
		}
		return ins, nil
	}

	h := &ExceptionHandler{Kind: HandlerKind(kind)}
	var err error
	if h.TryStart, err = at(tryOff, false); err != nil {
		return nil, err
	}
	if h.TryEnd, err = at(tryOff+tryLen, true); err != nil {
		return nil, err
	}
	if h.HandlerStart, err = at(handlerOff, false); err != nil {
		return nil, err
	}
	if h.HandlerEnd, err = at(handlerOff+handlerLen, true); err != nil {
		return nil, err
	}
	switch h.Kind {
	case HandlerFilter:
		if h.FilterStart, err = at(extra, false); err != nil {
			return nil, err
		}
	case HandlerCatch:
		h.CatchType = Token(extra)
	}
	return h, nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}
