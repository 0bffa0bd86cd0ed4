package cil

import (
	"fmt"
	"io"
)

// Fprint writes a listing of the body to w, one instruction per line,
// followed by its exception clauses. Offsets are those assigned by the last
// decode or encode.
func Fprint(w io.Writer, body *MethodBody) error {
	for i, ins := range body.Instructions {
		if _, err := fmt.Fprintf(w, "%4d  %s\n", i, ins); err != nil {
			return err
		}
	}
	label := func(ins *Instruction) string {
		if ins == nil {
			return "end"
		}
		return fmt.Sprintf("IL_%04x", ins.Offset)
	}
	for _, h := range body.Handlers {
		_, err := fmt.Fprintf(w, "      .try %s to %s %s %s to %s",
			label(h.TryStart), label(h.TryEnd), h.Kind, label(h.HandlerStart), label(h.HandlerEnd))
		if err != nil {
			return err
		}
		switch h.Kind {
		case HandlerCatch:
			_, err = fmt.Fprintf(w, " type %s", h.CatchType)
		case HandlerFilter:
			_, err = fmt.Fprintf(w, " filter %s", label(h.FilterStart))
		}
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
