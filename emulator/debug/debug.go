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

// Package debug prints an instruction trace while the processor runs.
package debug

import (
	"fmt"
	"io"
	"log"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
	"golang.org/x/arch/x86/x86asm"
)

// MaxInstructionLength is the longest encoding the decoder is given.
const MaxInstructionLength = 15

var regNames = [12]string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI", "ES", "CS", "SS", "DS"}

// Disassemble decodes the instruction at cs:ip in Intel syntax and returns
// it together with its length. Undecodable bytes are reported as a one byte
// "(bad)" instruction.
func Disassemble(mem memory.Memory, cs, ip uint16) (string, int) {
	var buf [MaxInstructionLength]byte
	for i := range buf {
		buf[i] = mem.ReadByte(memory.NewPointer(cs, ip+uint16(i)))
	}

	inst, err := x86asm.Decode(buf[:], 16)
	if err != nil {
		return "(bad)", 1
	}
	return x86asm.IntelSyntax(inst, uint64(ip), nil), inst.Len
}

// Tracer logs every instruction before it executes. With Registers set it
// also logs the registers the previous instruction changed. Instruction
// bytes come from Memory when set, otherwise from the processor.
type Tracer struct {
	Registers bool
	Memory    memory.Memory

	logger *log.Logger
	prev   [12]uint16
}

func NewTracer(w io.Writer) *Tracer {
	return &Tracer{logger: log.New(w, "", 0)}
}

func (t *Tracer) TraceInstruction(p processor.Processor, cs, ip uint16) {
	regs := p.GetRegisters()
	if t.Registers {
		t.changes(regs)
	}

	var mem memory.Memory = p
	if t.Memory != nil {
		mem = t.Memory
	}
	text, _ := Disassemble(mem, cs, ip)
	t.logger.Printf("%s %04x %05x: %s", regs.Letters(), ip, uint32(memory.NewPointer(cs, ip)), text)
}

func (t *Tracer) changes(regs *processor.Registers) {
	values := regs.GetValues()
	for i, v := range values {
		if v != t.prev[i] {
			t.logger.Printf("  %s %04x => %04x", regNames[i], t.prev[i], v)
		}
	}
	t.prev = values
}

// DumpAll logs every register and makes the current values the baseline
// for the next change report.
func (t *Tracer) DumpAll(regs *processor.Registers) {
	values := regs.GetValues()
	for i, v := range values {
		t.logger.Printf("  %s => %04x", regNames[i], v)
	}
	t.prev = values
}

// DumpState writes the full register file, IP and flags to w.
func DumpState(w io.Writer, regs *processor.Registers) {
	for i, v := range regs.GetValues() {
		fmt.Fprintf(w, "  %s %04x\n", regNames[i], v)
	}
	fmt.Fprintf(w, "  IP %04x\n", regs.IP)
	fmt.Fprintf(w, "     %s\n", regs.Letters())
}
