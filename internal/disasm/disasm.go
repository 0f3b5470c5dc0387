// Package disasm decodes native code at resolved addresses: for printing
// what a signature landed on and for following jump thunks to the function
// they forward to.
package disasm

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Arch selects the instruction set.
type Arch int

const (
	AMD64 Arch = iota
	ARM64
)

func (a Arch) String() string {
	if a == ARM64 {
		return "arm64"
	}
	return "amd64"
}

// HostArch returns the instruction set of the running process.
func HostArch() Arch {
	if runtime.GOARCH == "arm64" {
		return ARM64
	}
	return AMD64
}

// Inst is a decoded instruction.
type Inst struct {
	Addr  uint64
	Bytes []byte
	Text  string
	// Branch is the destination of a direct unconditional jump.
	Branch    uint64
	HasBranch bool
	// Slot is the memory operand of an indirect jmp [rip+disp], whose
	// contents are the destination.
	Slot    uint64
	HasSlot bool
}

// Len returns the encoded length.
func (i Inst) Len() int { return len(i.Bytes) }

// Decode decodes one instruction at addr. Undecodable bytes yield a
// one-unit ".byte"/".word" pseudo instruction and an error.
func Decode(code []byte, addr uint64, arch Arch) (Inst, error) {
	if arch == ARM64 {
		return decodeARM64(code, addr)
	}
	return decodeAMD64(code, addr)
}

func decodeAMD64(code []byte, addr uint64) (Inst, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		if len(code) == 0 {
			return Inst{Addr: addr}, err
		}
		return Inst{Addr: addr, Bytes: code[:1], Text: fmt.Sprintf(".byte 0x%02x", code[0])}, err
	}

	out := Inst{
		Addr:  addr,
		Bytes: code[:inst.Len],
		Text:  x86asm.IntelSyntax(inst, addr, nil),
	}
	if inst.Op == x86asm.JMP {
		next := addr + uint64(inst.Len)
		switch arg := inst.Args[0].(type) {
		case x86asm.Rel:
			out.Branch = uint64(int64(next) + int64(arg))
			out.HasBranch = true
		case x86asm.Mem:
			if arg.Base == x86asm.RIP && arg.Index == 0 {
				out.Slot = uint64(int64(next) + arg.Disp)
				out.HasSlot = true
			}
		}
	}
	return out, nil
}

func decodeARM64(code []byte, addr uint64) (Inst, error) {
	if len(code) < 4 {
		return Inst{Addr: addr, Bytes: code}, fmt.Errorf("disasm: truncated arm64 instruction at 0x%x", addr)
	}
	raw := binary.LittleEndian.Uint32(code[:4])
	inst, err := arm64asm.Decode(code[:4])
	if err != nil {
		return Inst{Addr: addr, Bytes: code[:4], Text: fmt.Sprintf(".word 0x%08x", raw)}, err
	}

	out := Inst{Addr: addr, Bytes: code[:4], Text: inst.String()}
	if inst.Op == arm64asm.B {
		// B.cond carries the condition in Args[0]; only plain B is a thunk.
		if rel, ok := inst.Args[0].(arm64asm.PCRel); ok {
			out.Branch = uint64(int64(addr) + int64(rel))
			out.HasBranch = true
		}
	}
	return out, nil
}

// Disassemble decodes up to max instructions from code. Decoding stops at
// the end of the buffer, not at the first undecodable byte.
func Disassemble(code []byte, addr uint64, arch Arch, max int) []Inst {
	var out []Inst
	for off := 0; off < len(code) && len(out) < max; {
		inst, _ := Decode(code[off:], addr+uint64(off), arch)
		if inst.Len() == 0 {
			break
		}
		out = append(out, inst)
		off += inst.Len()
	}
	return out
}

// Format renders instructions one per line: address, hex bytes, text.
func Format(insts []Inst) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%012x  ", inst.Addr)
		hex := make([]string, len(inst.Bytes))
		for i, c := range inst.Bytes {
			hex[i] = fmt.Sprintf("%02x", c)
		}
		fmt.Fprintf(&b, "%-30s  %s", strings.Join(hex, " "), inst.Text)
		if inst.HasBranch {
			fmt.Fprintf(&b, "  ; -> 0x%x", inst.Branch)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
