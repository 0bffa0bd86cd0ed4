package ilpatch

import (
	"errors"
	"fmt"

	"github.com/pboyd/ilpatch/cil"
)

type bodyDifferences struct {
	Length       *lengthDifference
	Instructions []*instructionDifference
}

func (d *bodyDifferences) Error() error {
	errs := []error{}
	if d.Length != nil {
		errs = append(errs, fmt.Errorf("length: %d != %d", d.Length.A, d.Length.B))
	}
	for i, ins := range d.Instructions {
		if ins != nil {
			errs = append(errs, fmt.Errorf("instruction %d: %v != %v", i, ins.A, ins.B))
		}
	}

	return errors.Join(errs...)
}

type lengthDifference struct {
	A int
	B int
}

type instructionDifference struct {
	A *cil.Instruction
	B *cil.Instruction
}

// Verify checks that after is before with exactly the plan's insertions: the
// new instructions at their positions and every original instruction kept,
// unchanged and in order. before should be a Snapshot taken ahead of Apply.
// The result joins every difference found.
func (p Plan) Verify(before, after []*cil.Instruction) error {
	return diffBodies(p, before, after).Error()
}

func diffBodies(p Plan, before, after []*cil.Instruction) *bodyDifferences {
	diff := bodyDifferences{
		Instructions: make([]*instructionDifference, len(after)),
	}
	if want := len(before) + len(p); len(after) != want {
		diff.Length = &lengthDifference{A: len(after), B: want}
	}

	sorted := p.sorted()
	inserted := map[int]*cil.Instruction{}
	for i, pos := range sorted.positions() {
		inserted[pos] = sorted[i].Instruction
	}

	orig := 0
	for i, ins := range after {
		want, ok := inserted[i]
		if !ok {
			if orig >= len(before) {
				diff.Instructions[i] = &instructionDifference{A: ins, B: nil}
				continue
			}
			want = before[orig]
			orig++
		}
		if !ins.Equal(want) {
			diff.Instructions[i] = &instructionDifference{A: ins, B: want}
		}
	}

	return &diff
}

// Snapshot copies the instructions of body so later edits to them show up in
// Verify.
func Snapshot(body *cil.MethodBody) []*cil.Instruction {
	out := make([]*cil.Instruction, body.Len())
	for i, ins := range body.Instructions {
		c := *ins
		out[i] = &c
	}
	return out
}
