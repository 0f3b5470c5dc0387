package sigscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		sig     string
		want    string
		wantErr bool
	}{
		{name: "escaped", sig: `\x55\x48\x89\xE5`, want: "55 48 89 E5"},
		{name: "escaped wildcard", sig: `\x55\x2A\x2A\x41\x57`, want: "55 ?? ?? 41 57"},
		{name: "escaped lowercase", sig: `\x55\x48\x8b\x05`, want: "55 48 8B 05"},
		{name: "spaced", sig: "55 48 89 E5", want: "55 48 89 E5"},
		{name: "spaced wildcards", sig: "48 8B ? ?? 05", want: "48 8B ?? ?? 05"},
		{name: "leading wildcard", sig: "? 48", want: "?? 48"},
		{name: "surrounding space", sig: "  55 48  ", want: "55 48"},
		{name: "empty", sig: "", wantErr: true},
		{name: "only wildcards", sig: `\x2A\x2A`, wantErr: true},
		{name: "only spaced wildcards", sig: "? ??", wantErr: true},
		{name: "truncated escape", sig: `\x55\x4`, wantErr: true},
		{name: "garbage between escapes", sig: `\x55 \x48`, wantErr: true},
		{name: "bad hex", sig: "55 GG", wantErr: true},
		{name: "three digit token", sig: "555", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.sig)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPattern)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("zz") })
	assert.NotPanics(t, func() { MustParse("90") })
}

func TestPattern_MatchAt(t *testing.T) {
	p := MustParse("55 ? 89")
	data := []byte{0x00, 0x55, 0xAA, 0x89, 0x55}

	assert.True(t, p.MatchAt(data, 1))
	assert.False(t, p.MatchAt(data, 0))
	assert.False(t, p.MatchAt(data, 3), "runs past the end")
	assert.False(t, p.MatchAt(data, -1))
	assert.False(t, Pattern{}.MatchAt(data, 0))
}

func TestPattern_FindAll(t *testing.T) {
	p := MustParse(`\x2A\x48\x8B`)
	data := []byte{0x48, 0x8B, 0x00, 0x48, 0x8B, 0x11, 0x48, 0x8B, 0x48, 0x8B}

	assert.Equal(t, []int{2, 5, 7}, p.FindAll(data, 0))
	assert.Equal(t, []int{2, 5}, p.FindAll(data, 2))
	assert.Equal(t, 3, p.Count(data))
	assert.Empty(t, p.FindAll(data[:2], 0))
	assert.Empty(t, p.FindAll(nil, 0))
}

func TestPattern_FindAllOverlapping(t *testing.T) {
	p := MustParse("AA AA")
	assert.Equal(t, []int{0, 1, 2}, p.FindAll([]byte{0xAA, 0xAA, 0xAA, 0xAA}, 0))
}
