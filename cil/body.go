package cil

import (
	"errors"
	"fmt"
)

// HandlerKind is the kind of an exception handling clause.
type HandlerKind uint32

const (
	HandlerCatch   HandlerKind = 0x0
	HandlerFilter  HandlerKind = 0x1
	HandlerFinally HandlerKind = 0x2
	HandlerFault   HandlerKind = 0x4
)

func (k HandlerKind) String() string {
	switch k {
	case HandlerCatch:
		return "catch"
	case HandlerFilter:
		return "filter"
	case HandlerFinally:
		return "finally"
	case HandlerFault:
		return "fault"
	default:
		return fmt.Sprintf("handler(%d)", uint32(k))
	}
}

// ExceptionHandler is one exception handling clause. A nil end instruction
// means the range runs to the end of the method body.
type ExceptionHandler struct {
	Kind         HandlerKind
	TryStart     *Instruction
	TryEnd       *Instruction
	HandlerStart *Instruction
	HandlerEnd   *Instruction
	FilterStart  *Instruction
	CatchType    Token
}

// MethodBody is the ordered instruction sequence of a method along with its
// header fields and exception clauses.
type MethodBody struct {
	MaxStack     uint16
	InitLocals   bool
	LocalVarSig  Token
	Instructions []*Instruction
	Handlers     []*ExceptionHandler
}

// ErrIndexOutOfRange is returned for positional edits outside the body.
var ErrIndexOutOfRange = errors.New("instruction index out of range")

// Len returns the number of instructions.
func (b *MethodBody) Len() int { return len(b.Instructions) }

// At returns the instruction at index i, or nil when i is out of range.
func (b *MethodBody) At(i int) *Instruction {
	if i < 0 || i >= len(b.Instructions) {
		return nil
	}
	return b.Instructions[i]
}

// Index returns the position of ins in the body, or -1.
func (b *MethodBody) Index(ins *Instruction) int {
	for i, candidate := range b.Instructions {
		if candidate == ins {
			return i
		}
	}
	return -1
}

// InsertAfter inserts ins directly after the instruction at index. Every
// instruction after index moves up by one position.
func (b *MethodBody) InsertAfter(index int, ins *Instruction) error {
	if index < 0 || index >= len(b.Instructions) {
		return fmt.Errorf("insert after %d of %d: %w", index, len(b.Instructions), ErrIndexOutOfRange)
	}
	return b.insert(index+1, ins)
}

// InsertBefore inserts ins at index, moving the instruction that was there
// and everything after it up by one position.
func (b *MethodBody) InsertBefore(index int, ins *Instruction) error {
	if index < 0 || index >= len(b.Instructions) {
		return fmt.Errorf("insert before %d of %d: %w", index, len(b.Instructions), ErrIndexOutOfRange)
	}
	return b.insert(index, ins)
}

func (b *MethodBody) insert(pos int, ins *Instruction) error {
	if ins == nil {
		return errors.New("nil instruction")
	}
	info, ok := GetInfo(ins.OpCode)
	if !ok {
		return fmt.Errorf("unknown opcode %v", ins.OpCode)
	}
	if !validOperand(info, ins.Operand) {
		return fmt.Errorf("invalid operand %T for %s", ins.Operand, info.Name)
	}

	b.Instructions = append(b.Instructions, nil)
	copy(b.Instructions[pos+1:], b.Instructions[pos:])
	b.Instructions[pos] = ins
	return nil
}

// Clone returns a shallow copy of the instruction list. The instructions
// themselves are shared.
func (b *MethodBody) Clone() []*Instruction {
	out := make([]*Instruction, len(b.Instructions))
	copy(out, b.Instructions)
	return out
}
