// Package scan implements 'cssharp-interop scan', which checks gamedata
// signatures against a library build on disk before the host loads it.
package scan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
	"github.com/JustZerooo/CounterStrikeSharp/internal/disasm"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/gamedata"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/sigscan"
)

// Status is the outcome of one signature check.
type Status string

const (
	StatusOK        Status = "OK"
	StatusNoMatch   Status = "NO MATCH"
	StatusAmbiguous Status = "AMBIGUOUS"
	StatusInvalid   Status = "INVALID"
	StatusMissing   Status = "MISSING"
)

// Failed reports whether the status should fail the run. Entries without
// a pattern for the platform are reported but do not fail.
func (s Status) Failed() bool {
	return s != StatusOK && s != StatusMissing
}

// Result is the outcome for one gamedata entry.
type Result struct {
	Name    string `header:"NAME" json:"name" yaml:"name"`
	Status  Status `header:"STATUS" json:"status" yaml:"status"`
	Matches int    `header:"MATCHES" json:"matches" yaml:"matches"`
	Address string `header:"ADDRESS" json:"address,omitempty" yaml:"address,omitempty"`
	Target  string `header:"THUNK TARGET" json:"thunk_target,omitempty" yaml:"thunk_target,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Disasm  string `json:"disasm,omitempty" yaml:"disasm,omitempty"`
}

// Options controls a check run.
type Options struct {
	// Library is the short name entries must target.
	Library  string
	Platform gamedata.Platform
	// Base is added to image addresses, the load address of a live module.
	Base uint64
	// Disasm attaches a listing of DisasmCount instructions per match.
	Disasm      bool
	DisasmCount int
	Arch        disasm.Arch
	Cache       *sigscan.Cache
}

// Check scans img for every signature entry of defs that targets
// opts.Library. Results are sorted by name.
func Check(defs gamedata.File, img *sigscan.Image, opts Options) []Result {
	if opts.Cache == nil {
		opts.Cache = sigscan.NewCache(constants.DefaultScanCacheSize)
	}
	if opts.DisasmCount <= 0 {
		opts.DisasmCount = 8
	}

	var results []Result
	for _, name := range defs.Names() {
		sigs := defs[name].Signatures
		if sigs == nil || sigs.Library != opts.Library {
			continue
		}
		results = append(results, checkOne(name, sigs.For(opts.Platform), img, opts))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// Failures counts results that fail the run.
func Failures(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Status.Failed() {
			n++
		}
	}
	return n
}

func checkOne(name, sig string, img *sigscan.Image, opts Options) Result {
	res := Result{Name: name}
	if sig == "" {
		res.Status = StatusMissing
		res.Error = fmt.Sprintf("no %s signature", opts.Platform)
		return res
	}

	p, err := sigscan.Parse(sig)
	if err != nil {
		res.Status = StatusInvalid
		res.Error = err.Error()
		return res
	}

	va, err := opts.Cache.ScanImage(img, p)
	if err != nil {
		var me *sigscan.MatchError
		if errors.As(err, &me) {
			res.Matches = me.Count
		}
		res.Status = StatusNoMatch
		if errors.Is(err, sigscan.ErrAmbiguousMatch) {
			res.Status = StatusAmbiguous
		}
		res.Error = err.Error()
		return res
	}

	res.Status = StatusOK
	res.Matches = 1
	res.Address = fmt.Sprintf("0x%x", opts.Base+va)

	target, hops := disasm.Follow(img.Bytes, va, opts.Arch, 8)
	if hops > 0 {
		res.Target = fmt.Sprintf("0x%x", opts.Base+target)
	}
	if opts.Disasm {
		code, _ := img.Bytes(va, opts.DisasmCount*15)
		res.Disasm = disasm.Format(disasm.Disassemble(code, opts.Base+va, opts.Arch, opts.DisasmCount))
	}
	return res
}
