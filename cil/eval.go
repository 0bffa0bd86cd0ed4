package cil

import (
	"errors"
	"fmt"
)

var (
	ErrStackUnderflow = errors.New("evaluation stack underflow")
	ErrUnsupported    = errors.New("instruction not supported by evaluator")
	ErrTypeMismatch   = errors.New("operand type mismatch")
	ErrDivideByZero   = errors.New("integer divide by zero")
)

// Eval runs a straight-line instruction sequence over an initial evaluation
// stack and returns the final stack, bottom first.
//
// Only constant loads, arithmetic and a few stack operations are supported.
// Stack values are int32, int64, float32 or float64.
func Eval(instructions []*Instruction, stack ...any) ([]any, error) {
	s := append([]any(nil), stack...)

	pop := func() (any, error) {
		if len(s) == 0 {
			return nil, ErrStackUnderflow
		}
		v := s[len(s)-1]
		s = s[:len(s)-1]
		return v, nil
	}

	for _, ins := range instructions {
		switch ins.OpCode {
		case Nop:
		case LdcI4M1, LdcI40, LdcI41, LdcI42, LdcI43, LdcI44, LdcI45, LdcI46, LdcI47, LdcI48:
			s = append(s, int32(ins.OpCode)-int32(LdcI40))
		case LdcI4S:
			s = append(s, int32(ins.Operand.(int8)))
		case LdcI4, LdcI8, LdcR4, LdcR8:
			s = append(s, ins.Operand)
		case Dup:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			s = append(s, v, v)
		case Pop:
			if _, err := pop(); err != nil {
				return nil, err
			}
		case Neg:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			r, err := negate(v)
			if err != nil {
				return nil, err
			}
			s = append(s, r)
		case ConvR4, ConvR8:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			f, err := toFloat(v)
			if err != nil {
				return nil, err
			}
			if ins.OpCode == ConvR4 {
				s = append(s, float32(f))
			} else {
				s = append(s, f)
			}
		case Add, Sub, Mul, Div:
			b, err := pop()
			if err != nil {
				return nil, err
			}
			a, err := pop()
			if err != nil {
				return nil, err
			}
			r, err := arith(ins.OpCode, a, b)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ins.OpCode, err)
			}
			s = append(s, r)
		default:
			return nil, fmt.Errorf("%s: %w", ins.OpCode, ErrUnsupported)
		}
	}
	return s, nil
}

func arith(op Code, a, b any) (any, error) {
	switch x := a.(type) {
	case int32:
		y, ok := b.(int32)
		if !ok {
			return nil, ErrTypeMismatch
		}
		switch op {
		case Add:
			return x + y, nil
		case Sub:
			return x - y, nil
		case Mul:
			return x * y, nil
		default:
			if y == 0 {
				return nil, ErrDivideByZero
			}
			return x / y, nil
		}
	case int64:
		y, ok := b.(int64)
		if !ok {
			return nil, ErrTypeMismatch
		}
		switch op {
		case Add:
			return x + y, nil
		case Sub:
			return x - y, nil
		case Mul:
			return x * y, nil
		default:
			if y == 0 {
				return nil, ErrDivideByZero
			}
			return x / y, nil
		}
	case float32:
		if y, ok := b.(float32); ok {
			switch op {
			case Add:
				return x + y, nil
			case Sub:
				return x - y, nil
			case Mul:
				return x * y, nil
			default:
				return x / y, nil
			}
		}
	}

	// Mixed float widths are computed at double precision.
	x, xok := floatValue(a)
	y, yok := floatValue(b)
	if !xok || !yok {
		return nil, ErrTypeMismatch
	}
	switch op {
	case Add:
		return x + y, nil
	case Sub:
		return x - y, nil
	case Mul:
		return x * y, nil
	default:
		return x / y, nil
	}
}

func floatValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func negate(v any) (any, error) {
	switch x := v.(type) {
	case int32:
		return -x, nil
	case int64:
		return -x, nil
	case float32:
		return -x, nil
	case float64:
		return -x, nil
	}
	return nil, ErrTypeMismatch
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	}
	return 0, fmt.Errorf("%T: %w", v, ErrTypeMismatch)
}
