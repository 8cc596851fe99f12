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
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
)

// The test186 program suite. Each image is a 64K ROM entered at F000:FFF0
// that writes its results to the bottom of memory and ends with HLT. The
// images are not distributed with the repository, tests skip without them.
var programSuite = []struct {
	name string
	nerr int
}{
	{"add", 0},
	{"bcdcnv", 2},
	{"bitwise", 0},
	{"cmpneg", 0},
	{"control", 0},
	{"datatrnf", 0},
	{"div", 3},
	{"interrupt", 0},
	{"jump1", 0},
	{"jump2", 0},
	{"mul", 8},
	{"rep", 0},
	{"rotate", 0},
	{"segpr", 0},
	{"shifts", 0},
	{"strings", 0},
	{"sub", 1},
}

func loadProgram(tb testing.TB, name string) []byte {
	bin, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		tb.Skipf("missing %s", name)
	}
	if err != nil {
		tb.Fatal(err)
	}
	return bin
}

func bootProgram(p *CPU, bus *testBus, bin []byte) {
	p.Reset()
	bus.load(memory.NewPointer(0xF000, 0), bin...)
	p.IP = 0xFFF0
	p.SetCS(0xF000)
}

func runProgram(tb testing.TB, progName string) (*CPU, *testBus) {
	bin := loadProgram(tb, fmt.Sprintf("testdata/%s.bin", progName))
	bus := newTestBus()
	p := New(bus)
	bootProgram(p, bus, bin)

	for steps := 0; ; steps++ {
		if err := p.Step(); err != nil {
			if err != processor.ErrCPUHalt {
				tb.Fatal(err)
			}
			break
		}
		if steps > 10000000 {
			tb.Fatal("program did not halt")
		}
	}
	return p, bus
}

func TestProgramSuite(t *testing.T) {
	for _, prog := range programSuite {
		prog := prog
		t.Run(prog.name, func(t *testing.T) {
			_, bus := runProgram(t, prog.name)
			res := loadProgram(t, fmt.Sprintf("testdata/res_%s.bin", prog.name))

			cerr := 0
			for i, v := range res {
				if r := bus.mem[i]; r != v {
					t.Logf("Invalid result at offset 0x%X. (Got 0x%X but expected 0x%X)", i, r, v)
					cerr++
				}
			}
			if cerr != prog.nerr {
				t.Fatalf("%d bytes diff", cerr)
			}
		})
	}
}

func TestJmpmov(t *testing.T) {
	_, bus := runProgram(t, "jmpmov")
	if r := bus.word(0); r != 0x4001 {
		t.Errorf("Invalid result! (Got 0x%X but expected 0x4001)", r)
	}
}

func BenchmarkProgramSuite(b *testing.B) {
	for _, prog := range programSuite {
		bin := loadProgram(b, fmt.Sprintf("testdata/%s.bin", prog.name))
		b.Run(prog.name, func(b *testing.B) {
			bus := newTestBus()
			p := New(bus)
			for i := 0; i < b.N; i++ {
				bootProgram(p, bus, bin)
				for p.Step() == nil {
				}
			}
		})
	}
}

// BenchmarkLoop runs a tight DEC/JNZ loop and needs no external images.
func BenchmarkLoop(b *testing.B) {
	p, _ := newTestCPU(
		0xB9, 0x00, 0x10, // MOV CX,1000h
		0x01, 0xC8, //       ADD AX,CX
		0x49,       //       DEC CX
		0x75, 0xFB, //       JNZ -5
		0xEB, 0xF6, //       JMP 0
	)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := p.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
