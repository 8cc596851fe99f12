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
	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
)

// Tracer is called before every instruction fetch with CS:IP of the
// instruction about to run.
type Tracer interface {
	TraceInstruction(p processor.Processor, cs, ip uint16)
}

type CPU struct {
	processor.Registers
	instructionState

	bus      processor.Bus
	notifier processor.InterruptNotifier
	tracer   Tracer

	irqMask uint16
	halted  bool
	stats   processor.Stats
}

// New creates a processor attached to bus. If bus implements
// processor.InterruptNotifier it is told about every interrupt taken.
//
// The processor starts out reset: every register is zero except CS, which
// is FFFF so execution begins at the reset vector FFFF:0000. Code loaded
// elsewhere needs CS:IP set before the first Step.
func New(bus processor.Bus) *CPU {
	p := &CPU{bus: bus}
	if n, ok := bus.(processor.InterruptNotifier); ok {
		p.notifier = n
	}
	p.Reset()
	return p
}

func (p *CPU) SetTracer(t Tracer) {
	p.tracer = t
}

// Reset clears all registers and flags, drops pending IRQs and points
// CS:IP at FFFF:0000.
func (p *CPU) Reset() {
	p.Registers.Reset()
	p.instructionState = instructionState{segOverride: noOverride}
	p.irqMask = 0
	p.halted = false
}

func (p *CPU) Halted() bool {
	return p.halted
}

// GetStats returns the counters collected since the last call.
func (p *CPU) GetStats() processor.Stats {
	s := p.stats
	p.stats = processor.Stats{}
	return s
}

func (p *CPU) GetRegisters() *processor.Registers {
	return &p.Registers
}

// RaiseIRQ marks line (0-15) as pending.
func (p *CPU) RaiseIRQ(line int) {
	p.irqMask |= 1 << uint(line&0xF)
}

func (p *CPU) PendingIRQs() uint16 {
	return p.irqMask
}

// StackWord reads the word at SS:SP+disp.
func (p *CPU) StackWord(disp uint16) uint16 {
	return p.ReadWord(memory.NewPointer(p.Segs[processor.SS], p.Regs[processor.SP]+disp))
}

func (p *CPU) InByte(port uint16) byte {
	p.stats.RX++
	return p.bus.In(port)
}

func (p *CPU) OutByte(port uint16, data byte) {
	p.stats.TX++
	p.bus.Out(port, data)
}

func (p *CPU) InWord(port uint16) uint16 {
	return uint16(p.InByte(port)) | (uint16(p.InByte(port+1)) << 8)
}

func (p *CPU) OutWord(port uint16, data uint16) {
	p.OutByte(port, byte(data&0xFF))
	p.OutByte(port+1, byte(data>>8))
}

func (p *CPU) ReadByte(addr memory.Pointer) byte {
	p.stats.RX++
	return p.bus.ReadByte(addr & memory.AddressMask)
}

func (p *CPU) WriteByte(addr memory.Pointer, data byte) {
	p.stats.TX++
	p.bus.WriteByte(addr&memory.AddressMask, data)
}

func (p *CPU) ReadWord(addr memory.Pointer) uint16 {
	return uint16(p.ReadByte(addr)) | (uint16(p.ReadByte(addr+1)) << 8)
}

func (p *CPU) WriteWord(addr memory.Pointer, data uint16) {
	p.WriteByte(addr, byte(data&0xFF))
	p.WriteByte(addr+1, byte(data>>8))
}

func (p *CPU) segPointer(seg processor.SegReg, offset uint16) memory.Pointer {
	return memory.NewPointer(p.Segs[seg], offset)
}

// dataSeg is DS or the pending override.
func (p *CPU) dataSeg() processor.SegReg {
	if p.segOverride != noOverride {
		return p.segOverride
	}
	return processor.DS
}

func (p *CPU) stackTop() memory.Pointer {
	return p.segPointer(processor.SS, p.Regs[processor.SP])
}

func (p *CPU) push16(v uint16) {
	p.Regs[processor.SP] -= 2
	p.WriteWord(p.stackTop(), v)
}

func (p *CPU) pop16() uint16 {
	v := p.ReadWord(p.stackTop())
	p.Regs[processor.SP] += 2
	return v
}
