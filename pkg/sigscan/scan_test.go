package sigscan

import (
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustZerooo/CounterStrikeSharp/internal/testutil"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

var code = []byte{
	0x90, 0x90, 0x55, 0x48, 0x89, 0xE5, 0x41, 0x57, // 0: prologue at 2
	0xC3, 0x90, 0x55, 0x48, 0x89, 0xE5, 0x41, 0x56, // 8: similar prologue at 10
	0xC3, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
}

func TestScan(t *testing.T) {
	tests := []struct {
		name      string
		sig       string
		want      int
		wantErr   error
		wantCount int
	}{
		{name: "unique", sig: `\x55\x48\x89\xE5\x41\x57`, want: 2},
		{name: "unique with wildcard", sig: `\x2A\x55\x48\x89\xE5\x41\x56`, want: 9},
		{name: "ambiguous", sig: `\x55\x48\x89\xE5\x41\x2A`, wantErr: ErrAmbiguousMatch, wantCount: 2},
		{name: "no match", sig: `\x55\x48\x89\xE5\x41\x55`, wantErr: ErrNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			off, err := Scan(code, MustParse(tt.sig))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var me *MatchError
				require.True(t, errors.As(err, &me))
				assert.Equal(t, tt.wantCount, me.Count)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, off)
		})
	}
}

func TestScan_NoMatchAndAmbiguousAreDistinct(t *testing.T) {
	_, none := Scan(code, MustParse("DE AD"))
	_, many := Scan(code, MustParse("CC CC"))

	assert.ErrorIs(t, none, ErrNoMatch)
	assert.NotErrorIs(t, none, ErrAmbiguousMatch)
	assert.ErrorIs(t, many, ErrAmbiguousMatch)
	assert.NotErrorIs(t, many, ErrNoMatch)
	assert.Contains(t, many.Error(), "matches")
}

func TestScan_ReportedOffsetsAreCapped(t *testing.T) {
	data := make([]byte, 64)
	_, err := Scan(data, MustParse("00"))
	var me *MatchError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 64, me.Count)
	assert.Len(t, me.Offsets, 8)
}

func fakeModule(t *testing.T) *memory.Module {
	t.Helper()
	data := testutil.AllocBytes(t, code)
	// A read-only data segment holding a copy of the code that must be ignored.
	rodata := testutil.AllocBytes(t, code)
	return &memory.Module{
		Name: "server",
		Path: "/game/libserver.so",
		Base: min(data, rodata),
		Segments: []memory.Segment{
			{Region: memory.Region{Base: data, Size: uintptr(len(code))}, Perm: memory.PermRead | memory.PermExec},
			{Region: memory.Region{Base: rodata, Size: uintptr(len(code))}, Perm: memory.PermRead},
		},
	}
}

func TestScanModule(t *testing.T) {
	mod := fakeModule(t)

	addr, err := ScanModuleString(mod, `\x55\x48\x89\xE5\x41\x57`)
	require.NoError(t, err)
	assert.Equal(t, mod.Segments[0].Base.Add(2), addr)

	_, err = ScanModuleString(mod, `\x55\x48\x89\xE5\x41\x2A`)
	assert.ErrorIs(t, err, ErrAmbiguousMatch)
	assert.Contains(t, err.Error(), "server")

	_, err = ScanModuleString(mod, "DE AD BE EF")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = ScanModuleString(mod, "")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestImage_Scan(t *testing.T) {
	img := NewImage("libserver.so",
		ImageSegment{Vaddr: 0x1000, Data: code[:8]},
		ImageSegment{Vaddr: 0x2000, Data: code[8:]},
	)

	va, err := img.Scan(MustParse("55 48 89 E5 41 57"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1002), va)

	va, err = img.Scan(MustParse("55 48 89 E5 41 56"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2002), va)

	_, err = img.Scan(MustParse("55 48 89 E5"))
	assert.ErrorIs(t, err, ErrAmbiguousMatch)

	b, ok := img.Bytes(0x2000, 4)
	require.True(t, ok)
	assert.Equal(t, []byte{0xC3, 0x90, 0x55, 0x48}, b)

	b, ok = img.Bytes(0x2008, 100)
	require.True(t, ok)
	assert.Len(t, b, 8)

	_, ok = img.Bytes(0x3000, 4)
	assert.False(t, ok)
}

func TestOpenImage(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ELF images only")
	}
	exe, err := os.Executable()
	require.NoError(t, err)

	img, err := OpenImage(exe)
	require.NoError(t, err)
	assert.NotEmpty(t, img.Segments)
	assert.NotZero(t, img.Hash())

	_, err = OpenImage(t.TempDir())
	assert.ErrorIs(t, err, ErrNotELF)
}
