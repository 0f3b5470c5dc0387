package memory_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
)

const sampleMaps = `55d0c0a00000-55d0c0a01000 r--p 00000000 08:01 1234 /home/steam/cs2/game/bin/linuxsteamrt64/cs2
7f0000000000-7f0000100000 r--p 00000000 08:01 5678 /home/steam/cs2/game/csgo/bin/linuxsteamrt64/libserver.so
7f0000100000-7f0000400000 r-xp 00100000 08:01 5678 /home/steam/cs2/game/csgo/bin/linuxsteamrt64/libserver.so
7f0000400000-7f0000500000 rw-p 00400000 08:01 5678 /home/steam/cs2/game/csgo/bin/linuxsteamrt64/libserver.so
7f0000500000-7f0000600000 rw-p 00000000 00:00 0
7f0001000000-7f0001010000 r-xp 00000000 08:01 9999 /tmp/libhook.so (deleted)
7ffd00000000-7ffd00021000 rw-p 00000000 00:00 0 [stack]
`

func TestParseMaps(t *testing.T) {
	mm, err := memory.ParseMaps(strings.NewReader(sampleMaps))
	require.NoError(t, err)
	require.Len(t, mm.Modules(), 3)

	server, err := mm.Find("server")
	require.NoError(t, err)
	assert.Equal(t, memory.Handle(0x7f0000000000), server.Base)
	assert.Equal(t, memory.Handle(0x7f0000500000), server.End())
	require.Len(t, server.Segments, 3)

	exec := server.ExecSegments()
	require.Len(t, exec, 1)
	assert.Equal(t, memory.Handle(0x7f0000100000), exec[0].Base)
	assert.Equal(t, uintptr(0x300000), exec[0].Size)
	assert.Equal(t, uint64(0x100000), exec[0].FileOffset)
	assert.Equal(t, "r-x", exec[0].Perm.String())

	byFile, err := mm.Find("libserver.so")
	require.NoError(t, err)
	assert.Same(t, server, byFile)

	hook, err := mm.Find("hook")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/libhook.so", hook.Path)

	_, err = mm.Find("engine2")
	assert.ErrorIs(t, err, memory.ErrModuleNotFound)
}

func TestModuleMap_Lookups(t *testing.T) {
	mm, err := memory.ParseMaps(strings.NewReader(sampleMaps))
	require.NoError(t, err)

	assert.True(t, mm.IsExecutable(0x7f0000200000))
	assert.False(t, mm.IsExecutable(0x7f0000450000))
	assert.False(t, mm.IsExecutable(0x7f0000550000), "anonymous mappings are not tracked")

	perm, ok := mm.PermAt(0x7f0000450000)
	require.True(t, ok)
	assert.Equal(t, memory.PermRead|memory.PermWrite, perm)

	m, ok := mm.ModuleFor(0x7f0000000010)
	require.True(t, ok)
	assert.Equal(t, "server", m.Name)

	_, ok = mm.ModuleFor(0x10)
	assert.False(t, ok)
}

func TestParseMaps_Malformed(t *testing.T) {
	_, err := memory.ParseMaps(strings.NewReader("zz-10 r-xp 0 08:01 1 /lib/x.so\n"))
	assert.Error(t, err)

	_, err = memory.ParseMaps(strings.NewReader("20-10 r-xp 0 08:01 1 /lib/x.so\n"))
	assert.Error(t, err)
}

func TestModuleName(t *testing.T) {
	tests := map[string]string{
		"/game/bin/linuxsteamrt64/libserver.so": "server",
		"/game/bin/libengine2.so.1":             "engine2",
		"server.dll":                            "server",
		"cs2":                                   "cs2",
	}
	for path, want := range tests {
		assert.Equal(t, want, memory.ModuleName(path), path)
	}
}

func TestLoadModules_Self(t *testing.T) {
	mm, err := memory.LoadModules()
	if err != nil {
		t.Skipf("module enumeration unavailable: %v", err)
	}
	assert.NotEmpty(t, mm.Modules())
}
