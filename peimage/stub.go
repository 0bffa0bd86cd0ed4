package peimage

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// COFF machine types.
const (
	MachineI386  = 0x014c
	MachineAMD64 = 0x8664
	MachineARM64 = 0xaa64
)

const maxStubInstructions = 8

// EntryStub disassembles the native entry point of the image. Managed DLLs
// built by the C# compiler carry a single indirect jump to mscoree's
// _CorDllMain; anything longer is a sign of mixed-mode code.
//
// The returned listing has one instruction per line. An image without an
// entry point returns an empty listing.
func (img *Image) EntryStub() (string, error) {
	if img.EntryPoint == 0 {
		return "", nil
	}
	code, err := img.At(img.EntryPoint)
	if err != nil {
		return "", fmt.Errorf("entry point: %w", err)
	}
	pc := img.ImageBase + uint64(img.EntryPoint)

	switch img.Machine {
	case MachineARM64:
		return disassembleARM64(code, pc)
	case MachineAMD64:
		return disassemble(code, 64, pc)
	case MachineI386:
		return disassemble(code, 32, pc)
	}
	return "", fmt.Errorf("machine 0x%04x: %w", img.Machine, ErrUnsupported)
}

func disassemble(code []byte, mode int, base uint64) (string, error) {
	var buf bytes.Buffer

	for i, n := 0, 0; i < len(code) && n < maxStubInstructions; n++ {
		instruction, err := x86asm.Decode(code[i:], mode)
		if err != nil {
			return buf.String(), fmt.Errorf("decode error at offset %d: %w", i, err)
		}
		pc := base + uint64(i)
		fmt.Fprintf(&buf, "0x%08x\t%-20s\t%s\n", pc, hex.EncodeToString(code[i:i+instruction.Len]), x86asm.IntelSyntax(instruction, pc, nil))

		i += instruction.Len
		if instruction.Op == x86asm.JMP || instruction.Op == x86asm.RET {
			break
		}
	}

	return buf.String(), nil
}

func disassembleARM64(code []byte, base uint64) (string, error) {
	var buf bytes.Buffer

	for i, n := 0, 0; i+4 <= len(code) && n < maxStubInstructions; i, n = i+4, n+1 {
		raw := code[i : i+4]
		instruction, err := arm64asm.Decode(raw)
		if err != nil {
			// Zero padding ends the stub.
			if bytes.Equal(raw, []byte{0, 0, 0, 0}) {
				break
			}
			return buf.String(), fmt.Errorf("decode error at offset %d %v: %w", i, raw, err)
		}
		fmt.Fprintf(&buf, "0x%08x\t%-20s\t%s\n", base+uint64(i), hex.EncodeToString(raw), arm64asm.GNUSyntax(instruction))

		switch instruction.Op {
		case arm64asm.B, arm64asm.BR, arm64asm.RET:
			return buf.String(), nil
		}
	}

	return buf.String(), nil
}
