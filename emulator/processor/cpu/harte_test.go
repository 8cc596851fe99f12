/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package cpu

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
)

// Single step conformance data in the SingleStepTests/8088 layout. Each file
// holds a gzip compressed JSON array of cases with the machine state before
// and after one instruction. Final register sets only list what changed.

var (
	harteDir    = flag.String("harte.dir", "testdata/8088/v1", "directory with single step test files")
	harteFlags  = flag.Uint("harte.flags", 0x0FD5, "mask applied to FLAGS before comparing")
	harteSample = flag.Int("harte.sample", 0, "run only the first N cases per file (0 = all)")
	harteErrors = flag.Int("harte.errors", 10, "stop reporting a file after N mismatches")
)

type harteRegs struct {
	AX    *uint16 `json:"ax"`
	BX    *uint16 `json:"bx"`
	CX    *uint16 `json:"cx"`
	DX    *uint16 `json:"dx"`
	SI    *uint16 `json:"si"`
	DI    *uint16 `json:"di"`
	BP    *uint16 `json:"bp"`
	SP    *uint16 `json:"sp"`
	IP    *uint16 `json:"ip"`
	CS    *uint16 `json:"cs"`
	DS    *uint16 `json:"ds"`
	ES    *uint16 `json:"es"`
	SS    *uint16 `json:"ss"`
	Flags *uint16 `json:"flags"`
}

type harteState struct {
	Regs harteRegs  `json:"regs"`
	RAM  [][]uint32 `json:"ram"`
}

type harteCase struct {
	Name    string     `json:"name"`
	Initial harteState `json:"initial"`
	Final   harteState `json:"final"`
}

type harteField struct {
	name string
	v    *uint16
	reg  func(r *processor.Registers) *uint16
}

// fields pairs every register in the state with its place in the CPU.
func (r *harteRegs) fields() []harteField {
	gp := func(id processor.Reg16) func(*processor.Registers) *uint16 {
		return func(r *processor.Registers) *uint16 { return &r.Regs[id] }
	}
	seg := func(id processor.SegReg) func(*processor.Registers) *uint16 {
		return func(r *processor.Registers) *uint16 { return &r.Segs[id] }
	}
	return []harteField{
		{"ax", r.AX, gp(processor.AX)},
		{"bx", r.BX, gp(processor.BX)},
		{"cx", r.CX, gp(processor.CX)},
		{"dx", r.DX, gp(processor.DX)},
		{"si", r.SI, gp(processor.SI)},
		{"di", r.DI, gp(processor.DI)},
		{"bp", r.BP, gp(processor.BP)},
		{"sp", r.SP, gp(processor.SP)},
		{"ip", r.IP, func(r *processor.Registers) *uint16 { return &r.IP }},
		{"cs", r.CS, seg(processor.CS)},
		{"ds", r.DS, seg(processor.DS)},
		{"es", r.ES, seg(processor.ES)},
		{"ss", r.SS, seg(processor.SS)},
	}
}

func loadHarteFile(name string) ([]harteCase, error) {
	fp, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	zr, err := gzip.NewReader(fp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer zr.Close()

	var cases []harteCase
	if err := json.NewDecoder(zr).Decode(&cases); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cases, nil
}

// runHarteCase executes one case and returns a description of every
// difference from the expected final state.
func runHarteCase(p *CPU, bus *testBus, tc *harteCase) []string {
	p.Reset()
	initial := tc.Initial.Regs.fields()
	for _, r := range initial {
		if r.v != nil {
			*r.reg(&p.Registers) = *r.v
		}
	}
	if f := tc.Initial.Regs.Flags; f != nil {
		p.Expand(*f)
	}
	for _, kv := range tc.Initial.RAM {
		bus.mem[kv[0]&memory.AddressMask] = byte(kv[1])
	}

	if err := p.Step(); err != nil && err != processor.ErrCPUHalt {
		return []string{err.Error()}
	}

	var diff []string
	for i, r := range tc.Final.Regs.fields() {
		want := initial[i].v
		if r.v != nil {
			want = r.v
		}
		if want == nil {
			continue
		}
		if got := *r.reg(&p.Registers); got != *want {
			diff = append(diff, fmt.Sprintf("%s: got %04X, want %04X", r.name, got, *want))
		}
	}

	want := tc.Initial.Regs.Flags
	if tc.Final.Regs.Flags != nil {
		want = tc.Final.Regs.Flags
	}
	if mask := uint16(*harteFlags); want != nil {
		if got := p.Compress() & mask; got != *want&mask {
			diff = append(diff, fmt.Sprintf("flags: got %s, want %s", flagString(got), flagString(*want&mask)))
		}
	}

	for _, kv := range tc.Final.RAM {
		addr := kv[0] & memory.AddressMask
		if got := bus.mem[addr]; got != byte(kv[1]) {
			diff = append(diff, fmt.Sprintf("%s: got %02X, want %02X", memory.Pointer(addr), got, kv[1]))
		}
	}

	// Only the touched bytes need clearing for the next case.
	for _, kv := range tc.Initial.RAM {
		bus.mem[kv[0]&memory.AddressMask] = 0
	}
	for _, kv := range tc.Final.RAM {
		bus.mem[kv[0]&memory.AddressMask] = 0
	}
	return diff
}

func flagString(v uint16) string {
	var f processor.Flags
	f.Expand(v)
	return f.Letters()
}

func TestSingleStep(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(*harteDir, "*.json.gz"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Skipf("no test files in %s", *harteDir)
	}

	for _, name := range files {
		name := name
		t.Run(filepath.Base(name), func(t *testing.T) {
			cases, err := loadHarteFile(name)
			if errors.Is(err, os.ErrNotExist) {
				t.Skip(err)
			}
			if err != nil {
				t.Fatal(err)
			}

			limit := len(cases)
			if *harteSample > 0 && *harteSample < limit {
				limit = *harteSample
			}
			if testing.Short() && limit > 100 {
				limit = 100
			}

			bus := newTestBus()
			p := New(bus)
			failed := 0

			for i := range cases[:limit] {
				tc := &cases[i]
				diff := runHarteCase(p, bus, tc)
				if len(diff) == 0 {
					continue
				}
				if failed++; failed <= *harteErrors {
					t.Errorf("%d %q: %v", i, tc.Name, diff)
				}
			}
			if failed > 0 {
				t.Logf("%d of %d cases failed", failed, limit)
			}
		})
	}
}
