package ilpatch

import (
	"github.com/pboyd/ilpatch/cil"
)

// Classification is the recognized shape of a method body.
type Classification int

const (
	Unrecognized Classification = iota
	Patchable
	AlreadyPatched
)

func (c Classification) String() string {
	switch c {
	case Patchable:
		return "patchable"
	case AlreadyPatched:
		return "already patched"
	default:
		return "unrecognized"
	}
}

// Classifier decides whether a method body can be patched.
type Classifier interface {
	Classify(body *cil.MethodBody) Classification
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(body *cil.MethodBody) Classification

func (f ClassifierFunc) Classify(body *cil.MethodBody) Classification { return f(body) }

// Fingerprint recognizes a body by its instruction count and the instruction
// at one index. The patched shape is the original plus the splice, with the
// first spliced instruction at the anchor.
type Fingerprint struct {
	Length int
	Anchor int
	Call   cil.Code

	PatchedLength  int
	PatchedOp      cil.Code
	PatchedOperand float32
}

// DefaultFingerprint matches SetValue of the body heat meter.
func DefaultFingerprint() Fingerprint {
	return Fingerprint{
		Length: 42,
		Anchor: 38,
		Call:   cil.Call,

		PatchedLength:  46,
		PatchedOp:      cil.LdcR4,
		PatchedOperand: 32,
	}
}

// Classify checks for the unpatched shape first, then the patched one.
func (f Fingerprint) Classify(body *cil.MethodBody) Classification {
	if body == nil {
		return Unrecognized
	}

	n := body.Len()
	anchor := body.At(f.Anchor)
	if anchor == nil {
		return Unrecognized
	}

	if n == f.Length && anchor.OpCode == f.Call {
		return Patchable
	}
	if n == f.PatchedLength && anchor.OpCode == f.PatchedOp {
		if v, ok := anchor.Float32(); ok && v == f.PatchedOperand {
			return AlreadyPatched
		}
	}
	return Unrecognized
}
