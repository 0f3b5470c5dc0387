package disasm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_AMD64DirectJump(t *testing.T) {
	// jmp rel32 +0x100
	code := []byte{0xE9, 0x00, 0x01, 0x00, 0x00}
	inst, err := Decode(code, 0x1000, AMD64)
	require.NoError(t, err)
	assert.Equal(t, 5, inst.Len())
	require.True(t, inst.HasBranch)
	assert.Equal(t, uint64(0x1000+5+0x100), inst.Branch)
	assert.Contains(t, inst.Text, "jmp")
}

func TestDecode_AMD64ShortBackwardJump(t *testing.T) {
	// jmp rel8 -2 (a self loop)
	inst, err := Decode([]byte{0xEB, 0xFE}, 0x2000, AMD64)
	require.NoError(t, err)
	require.True(t, inst.HasBranch)
	assert.Equal(t, uint64(0x2000), inst.Branch)
}

func TestDecode_AMD64IndirectJump(t *testing.T) {
	// jmp qword ptr [rip+0x10]
	code := []byte{0xFF, 0x25, 0x10, 0x00, 0x00, 0x00}
	inst, err := Decode(code, 0x3000, AMD64)
	require.NoError(t, err)
	assert.False(t, inst.HasBranch)
	require.True(t, inst.HasSlot)
	assert.Equal(t, uint64(0x3000+6+0x10), inst.Slot)
}

func TestDecode_AMD64NotAJump(t *testing.T) {
	// push rbp
	inst, err := Decode([]byte{0x55, 0x48, 0x89, 0xE5}, 0x10, AMD64)
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Len())
	assert.False(t, inst.HasBranch)
	assert.False(t, inst.HasSlot)
}

func TestDecode_ARM64Branch(t *testing.T) {
	// b #+0x40
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, 0x14000000|(0x40>>2))
	inst, err := Decode(raw, 0x4000, ARM64)
	require.NoError(t, err)
	require.True(t, inst.HasBranch)
	assert.Equal(t, uint64(0x4040), inst.Branch)
}

func TestDecode_ARM64Truncated(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x01}, 0, ARM64)
	assert.Error(t, err)
}

func TestDisassemble(t *testing.T) {
	// push rbp; mov rbp, rsp; ret
	code := []byte{0x55, 0x48, 0x89, 0xE5, 0xC3}
	insts := Disassemble(code, 0x400000, AMD64, 10)
	require.Len(t, insts, 3)
	assert.Equal(t, uint64(0x400001), insts[1].Addr)
	assert.Equal(t, 3, insts[1].Len())

	assert.Len(t, Disassemble(code, 0, AMD64, 2), 2)

	out := Format(insts)
	assert.Contains(t, out, "0x000000400000")
	assert.Contains(t, out, "48 89 e5")
}

func memReader(mem map[uint64][]byte) Reader {
	return func(addr uint64, n int) ([]byte, bool) {
		b, ok := mem[addr]
		if !ok {
			return nil, false
		}
		return b[:min(n, len(b))], true
	}
}

func TestFollow(t *testing.T) {
	slot := make([]byte, 8)
	binary.LittleEndian.PutUint64(slot, 0x9000)

	mem := map[uint64][]byte{
		// thunk 1: jmp +0x0FFB -> 0x2000
		0x1000: {0xE9, 0xFB, 0x0F, 0x00, 0x00},
		// thunk 2: jmp [rip+0xFFA] -> slot at 0x3000
		0x2000: {0xFF, 0x25, 0xFA, 0x0F, 0x00, 0x00},
		0x3000: slot,
		// real function
		0x9000: {0x55, 0x48, 0x89, 0xE5, 0xC3},
	}

	end, hops := Follow(memReader(mem), 0x1000, AMD64, 8)
	assert.Equal(t, uint64(0x9000), end)
	assert.Equal(t, 2, hops)

	end, hops = Follow(memReader(mem), 0x1000, AMD64, 1)
	assert.Equal(t, uint64(0x2000), end)
	assert.Equal(t, 1, hops)

	end, hops = Follow(memReader(mem), 0x9000, AMD64, 8)
	assert.Equal(t, uint64(0x9000), end)
	assert.Zero(t, hops)

	end, _ = Follow(memReader(map[uint64][]byte{}), 0x5000, AMD64, 8)
	assert.Equal(t, uint64(0x5000), end)
}

func TestFollow_NullSlotStops(t *testing.T) {
	mem := map[uint64][]byte{
		0x1000: {0xFF, 0x25, 0x00, 0x00, 0x00, 0x00},
		0x1006: make([]byte, 8),
	}
	end, hops := Follow(memReader(mem), 0x1000, AMD64, 8)
	assert.Equal(t, uint64(0x1000), end)
	assert.Zero(t, hops)
}

func TestArch(t *testing.T) {
	assert.Equal(t, "amd64", AMD64.String())
	assert.Equal(t, "arm64", ARM64.String())
	assert.Contains(t, []Arch{AMD64, ARM64}, HostArch())
}
