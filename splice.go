package ilpatch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pboyd/ilpatch/cil"
)

// Insertion adds one instruction after the instruction at Anchor. Anchor
// counts instructions of the body before any insertion.
type Insertion struct {
	Anchor      int
	Instruction *cil.Instruction
}

// Plan is a set of insertions. Nothing is removed or changed.
type Plan []Insertion

// CelsiusPlan converts the value on the stack before original instruction
// 38 from Fahrenheit to Celsius.
func CelsiusPlan() Plan {
	const anchor = 37
	return Plan{
		{anchor, cil.Create(cil.LdcR4, float32(32))},
		{anchor, cil.Create(cil.Sub, nil)},
		{anchor, cil.Create(cil.LdcR4, float32(1.8))},
		{anchor, cil.Create(cil.Div, nil)},
	}
}

// sorted orders the insertions by anchor, keeping plan order within an
// anchor.
func (p Plan) sorted() Plan {
	out := slices.Clone(p)
	slices.SortStableFunc(out, func(a, b Insertion) int { return a.Anchor - b.Anchor })
	return out
}

// positions returns where each sorted insertion lands in the new body.
// Every insertion moves the ones after it by one.
func (p Plan) positions() []int {
	pos := make([]int, len(p))
	for i, ins := range p {
		pos[i] = ins.Anchor + 1 + i
	}
	return pos
}

// Apply performs the insertions on body in ascending anchor order. Each
// insertion goes to a new instruction; the plan itself is not shared with
// the body. The body is not touched if any anchor is out of range.
func (p Plan) Apply(body *cil.MethodBody) error {
	sorted := p.sorted()
	n := body.Len()
	for _, ins := range sorted {
		if ins.Anchor < 0 || ins.Anchor >= n {
			return fmt.Errorf("anchor %d of %d: %w", ins.Anchor, n, cil.ErrIndexOutOfRange)
		}
		if ins.Instruction == nil {
			return errors.New("insertion without instruction")
		}
	}

	for i, ins := range sorted {
		next := cil.Create(ins.Instruction.OpCode, ins.Instruction.Operand)
		if err := body.InsertAfter(ins.Anchor+i, next); err != nil {
			return err
		}
	}
	body.MaxStack += p.stackGrowth()
	return nil
}

// stackGrowth is the deepest the inserted instructions take the stack above
// where they found it.
func (p Plan) stackGrowth() uint16 {
	depth, peak := 0, 0
	for _, ins := range p.sorted() {
		info, ok := cil.GetInfo(ins.Instruction.OpCode)
		if !ok || info.Pop == cil.VarStack || info.Push == cil.VarStack {
			continue
		}
		depth += info.Push - info.Pop
		peak = max(peak, depth)
	}
	return uint16(peak)
}

// Region returns the instructions a patched body holds where the plan
// inserted them. Only plans that insert at a single anchor have a region.
func (p Plan) Region(body *cil.MethodBody) ([]*cil.Instruction, error) {
	if len(p) == 0 {
		return nil, nil
	}
	sorted := p.sorted()
	anchor := sorted[0].Anchor
	if sorted[len(sorted)-1].Anchor != anchor {
		return nil, errors.New("plan spans several anchors")
	}
	start := anchor + 1
	if start+len(p) > body.Len() {
		return nil, fmt.Errorf("region %d+%d of %d: %w", start, len(p), body.Len(), cil.ErrIndexOutOfRange)
	}
	return body.Instructions[start : start+len(p)], nil
}

// ProbeFahrenheit is the input used by ConversionProbe.
const ProbeFahrenheit = float32(98.6)

// ConversionProbe runs the spliced instructions of a patched body on
// ProbeFahrenheit and returns the value they leave on the stack.
func ConversionProbe(body *cil.MethodBody) (float32, error) {
	region, err := CelsiusPlan().Region(body)
	if err != nil {
		return 0, err
	}
	stack, err := cil.Eval(region, ProbeFahrenheit)
	if err != nil {
		return 0, err
	}
	if len(stack) != 1 {
		return 0, fmt.Errorf("%d values left on the stack", len(stack))
	}
	switch v := stack[0].(type) {
	case float32:
		return v, nil
	case float64:
		return float32(v), nil
	}
	return 0, fmt.Errorf("result %T: %w", stack[0], cil.ErrTypeMismatch)
}
