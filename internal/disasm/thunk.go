package disasm

import "encoding/binary"

// maxInstLen is the longest x86 encoding; arm64 needs 4.
const maxInstLen = 15

// Reader returns up to n bytes of code or data at addr.
type Reader func(addr uint64, n int) ([]byte, bool)

// Follow walks a chain of jump thunks starting at addr and returns where
// it ends, with the number of jumps taken. Both direct jumps and
// jmp [rip+disp] through a pointer slot are followed. The walk stops at the
// first instruction that is not such a jump, at an unreadable address, or
// after maxHops jumps.
func Follow(read Reader, addr uint64, arch Arch, maxHops int) (uint64, int) {
	hops := 0
	for hops < maxHops {
		code, ok := read(addr, maxInstLen)
		if !ok {
			break
		}
		inst, err := Decode(code, addr, arch)
		if err != nil {
			break
		}

		switch {
		case inst.HasBranch:
			addr = inst.Branch
		case inst.HasSlot:
			slot, ok := read(inst.Slot, 8)
			if !ok || len(slot) < 8 {
				return addr, hops
			}
			target := binary.LittleEndian.Uint64(slot)
			if target == 0 {
				return addr, hops
			}
			addr = target
		default:
			return addr, hops
		}
		hops++
	}
	return addr, hops
}
