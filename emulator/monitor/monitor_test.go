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

package monitor

import (
	"strings"
	"testing"

	"github.com/andreas-jonsson/i186-core/emulator"
	"github.com/andreas-jonsson/i186-core/emulator/loader"
	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/gdamore/tcell"
	"github.com/matryer/is"
	"github.com/spf13/afero"
)

// mov cx,3; inc ax; loop -3; hlt
var loopProgram = []byte{0xB9, 0x03, 0x00, 0x40, 0xE2, 0xFD, 0xF4}

// jmp $
var spinProgram = []byte{0xEB, 0xFE}

func newMonitor(t *testing.T) (*Monitor, *emulator.Emulator, tcell.SimulationScreen) {
	t.Helper()
	return newMonitorWith(t, loopProgram)
}

func newMonitorWith(t *testing.T, prog []byte) (*Monitor, *emulator.Emulator, tcell.SimulationScreen) {
	t.Helper()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "prog.bin", prog, 0644); err != nil {
		t.Fatal(err)
	}
	e, err := emulator.New(emulator.Config{
		Image:  "prog.bin",
		Format: loader.Binary,
		Fill:   emulator.DefaultFill,
		Mute:   true,
	}, fs)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)

	s := tcell.NewSimulationScreen("")
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	s.SetSize(80, 30)
	t.Cleanup(s.Fini)

	return New(s, e), e, s
}

func screenRow(s tcell.SimulationScreen, y int) string {
	cells, w, _ := s.GetContents()
	var b strings.Builder
	for _, c := range cells[y*w : (y+1)*w] {
		if len(c.Runes) > 0 {
			b.WriteRune(c.Runes[0])
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func TestStep(t *testing.T) {
	is := is.New(t)
	m, e, _ := newMonitor(t)
	regs := e.CPU().GetRegisters()

	is.NoErr(m.Exec(""))
	is.Equal(regs.IP, uint16(3))
	is.Equal(regs.CX(), uint16(3))

	is.NoErr(m.Exec("s 2"))
	is.Equal(regs.IP, uint16(3))
	is.Equal(regs.AX(), uint16(1))
	is.Equal(regs.CX(), uint16(2))
	is.Equal(m.Status(), "Stepped 2")

	is.NoErr(m.Exec("s x"))
	is.Equal(m.Status(), "invalid step count: x")
	is.Equal(regs.IP, uint16(3))
}

func TestContinueToBreakpoint(t *testing.T) {
	is := is.New(t)
	m, e, _ := newMonitor(t)
	regs := e.CPU().GetRegisters()

	is.NoErr(m.Exec("b 0000:0006"))
	is.NoErr(m.Exec("c"))
	is.Equal(regs.IP, uint16(6))
	is.Equal(regs.AX(), uint16(3))
	is.Equal(regs.CX(), uint16(0))
	is.True(strings.HasPrefix(m.Status(), "Break 0"))

	is.NoErr(m.Exec("c"))
	is.Equal(m.Status(), "CPU halted")
	is.True(e.CPU().Halted())

	is.NoErr(m.Exec("s"))
	is.Equal(m.Status(), "CPU halted")
}

func TestReset(t *testing.T) {
	is := is.New(t)
	m, e, _ := newMonitor(t)
	regs := e.CPU().GetRegisters()

	is.NoErr(m.Exec("c"))
	is.True(e.CPU().Halted())

	is.NoErr(m.Exec("r"))
	is.True(!e.CPU().Halted())
	is.Equal(regs.IP, uint16(0))
	is.Equal(regs.AX(), uint16(0))

	is.NoErr(m.Exec("s"))
	is.Equal(regs.IP, uint16(3))
}

func TestBreakpointCommands(t *testing.T) {
	is := is.New(t)
	m, _, _ := newMonitor(t)

	is.NoErr(m.Exec("b"))
	is.Equal(m.Status(), "No breakpoints")

	is.NoErr(m.Exec("b 12345"))
	is.NoErr(m.Exec("b 1000:0010"))
	is.Equal(m.Breakpoints(), []memory.Pointer{0x12345, 0x10010})

	is.NoErr(m.Exec("b"))
	is.Equal(m.Status(), "0:0x12345 1:0x10010")

	is.NoErr(m.Exec("rb 5"))
	is.Equal(m.Status(), "no such breakpoint")

	is.NoErr(m.Exec("rb 0"))
	is.Equal(m.Breakpoints(), []memory.Pointer{0x10010})

	is.NoErr(m.Exec("b zz"))
	is.Equal(m.Status(), "invalid address: zz")

	is.NoErr(m.Exec("cb"))
	is.Equal(len(m.Breakpoints()), 0)
}

func TestQuit(t *testing.T) {
	is := is.New(t)
	m, _, _ := newMonitor(t)

	is.Equal(m.Exec("q"), ErrQuit)
	is.NoErr(m.Exec("nope"))
	is.Equal(m.Status(), "unknown command: nope")
}

func TestParseAddress(t *testing.T) {
	is := is.New(t)

	tests := []struct {
		in   string
		want memory.Pointer
		ok   bool
	}{
		{"0", 0, true},
		{"FFFFF", 0xFFFFF, true},
		{"0x7c00", 0x7C00, true},
		{"7C00h", 0x7C00, true},
		{"F000:FFF0", 0xFFFF0, true},
		{"ffff:0010", 0x00000, true},
		{"100000", 0, false},
		{"10000:0", 0, false},
		{"0:10000", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, err := ParseAddress(tt.in)
		is.Equal(err == nil, tt.ok) // error state
		if tt.ok {
			is.Equal(got, tt.want)
		}
	}
}

func TestDraw(t *testing.T) {
	is := is.New(t)
	m, _, s := newMonitor(t)

	is.NoErr(m.Exec("s"))
	is.NoErr(m.Exec("m 0"))
	m.Draw()

	is.Equal(screenRow(s, 0), "Registers")
	is.True(strings.Contains(screenRow(s, 1), "CX 0003"))
	is.True(strings.Contains(screenRow(s, 3), "IP 0003"))

	code := screenRow(s, 7)
	is.True(strings.Contains(code, "0000:0003"))
	is.True(strings.Contains(code, "inc ax"))

	is.True(strings.HasPrefix(screenRow(s, 19), "00000  B9 03 00 40 E2 FD F4 90"))
	is.Equal(screenRow(s, 28), "Memory at 0x00000")
	is.Equal(screenRow(s, 29), ">")
}

func TestRunKeys(t *testing.T) {
	is := is.New(t)
	m, e, s := newMonitor(t)

	s.InjectKey(tcell.KeyRune, 's', tcell.ModNone)
	s.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
	s.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	s.InjectKey(tcell.KeyBackspace2, 0, tcell.ModNone)
	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	s.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)

	is.Equal(m.Run(), ErrQuit)
	is.Equal(e.CPU().GetRegisters().IP, uint16(3))
}

func TestContinueStoppedByKey(t *testing.T) {
	is := is.New(t)
	m, e, s := newMonitorWith(t, spinProgram)

	s.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	is.NoErr(m.Exec("c"))

	is.True(strings.HasPrefix(m.Status(), "Stopped after "))
	is.True(!e.CPU().Halted())
	is.Equal(e.CPU().GetRegisters().IP, uint16(0))
	is.Equal(len(m.input), 0) // the key only stops the run

	rx := e.Stats().RX
	m.Draw()
	is.Equal(e.Stats().RX, rx) // drawing does not count as bus reads
}
