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
	"math/bits"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
)

const (
	registerLocation = 1 << 63
	segmentLocation  = 1 << 62
)

// dataLocation is either a register index tagged with one of the location
// bits or a 20-bit linear address.
type dataLocation uint64

var parityLookup [0x100]bool

func init() {
	for i := range parityLookup {
		parityLookup[i] = bits.OnesCount8(byte(i))&1 == 0
	}
}

func (addr dataLocation) getPointer() memory.Pointer {
	return memory.Pointer(addr & memory.AddressMask)
}

func (addr dataLocation) readByte(p *CPU) byte {
	if addr&registerLocation != 0 {
		return p.Reg8(processor.Reg8(addr & 7))
	}
	return p.ReadByte(addr.getPointer())
}

func (addr dataLocation) writeByte(p *CPU, data byte) {
	if addr&registerLocation != 0 {
		p.SetReg8(processor.Reg8(addr&7), data)
		return
	}
	p.WriteByte(addr.getPointer(), data)
}

func (addr dataLocation) readWord(p *CPU) uint16 {
	switch {
	case addr&registerLocation != 0:
		return p.Regs[addr&7]
	case addr&segmentLocation != 0:
		return p.Segs[addr&3]
	}
	return p.ReadWord(addr.getPointer())
}

func (addr dataLocation) writeWord(p *CPU, data uint16) {
	switch {
	case addr&registerLocation != 0:
		p.Regs[addr&7] = data
	case addr&segmentLocation != 0:
		p.Segs[addr&3] = data
	default:
		p.WriteWord(addr.getPointer(), data)
	}
}

func (addr dataLocation) read(p *CPU, w opWidth) uint32 {
	if w.wide {
		return uint32(addr.readWord(p))
	}
	return uint32(addr.readByte(p))
}

func (addr dataLocation) write(p *CPU, w opWidth, data uint32) {
	if w.wide {
		addr.writeWord(p, uint16(data))
		return
	}
	addr.writeByte(p, byte(data))
}

func (p *CPU) regLocation() dataLocation {
	return dataLocation((p.modRegRM>>3)&7) | registerLocation
}

func (p *CPU) segLocation() dataLocation {
	return dataLocation((p.modRegRM&0x18)>>3) | segmentLocation
}

// rmLocation resolves the r/m operand. Memory operands latch their linear
// address for the rest of the instruction and beyond.
func (p *CPU) rmLocation() dataLocation {
	if p.modRegRM >= 0xC0 {
		return dataLocation(p.modRegRM&7) | registerLocation
	}
	p.modRMAddress = p.modRMPointer()
	return dataLocation(p.modRMAddress)
}

// latchedLocation is the address resolved by the last memory operand, which
// may belong to an earlier instruction.
func (p *CPU) latchedLocation(disp uint32) dataLocation {
	return dataLocation((uint32(p.modRMAddress) + disp) & memory.AddressMask)
}

// modRMOffset computes the 16-bit effective address and consumes any
// displacement bytes. Register forms yield zero.
func (p *CPU) modRMOffset() uint16 {
	mod, rm := p.modRegRM>>6, p.modRegRM&7
	if mod == 3 {
		return 0
	}

	var offset uint16
	switch rm {
	case 0:
		offset = p.Regs[processor.BX] + p.Regs[processor.SI]
	case 1:
		offset = p.Regs[processor.BX] + p.Regs[processor.DI]
	case 2:
		offset = p.Regs[processor.BP] + p.Regs[processor.SI]
	case 3:
		offset = p.Regs[processor.BP] + p.Regs[processor.DI]
	case 4:
		offset = p.Regs[processor.SI]
	case 5:
		offset = p.Regs[processor.DI]
	case 6:
		if mod == 0 {
			return p.readOpcodeImm16()
		}
		offset = p.Regs[processor.BP]
	case 7:
		offset = p.Regs[processor.BX]
	}

	switch mod {
	case 1:
		offset += signExtend16(p.readOpcodeStream())
	case 2:
		offset += p.readOpcodeImm16()
	}
	return offset
}

func (p *CPU) modRMSegment() processor.SegReg {
	switch p.modRegRM & 0xC7 {
	case 0x02, 0x03, 0x42, 0x43, 0x46, 0x82, 0x83, 0x86:
		return processor.SS
	default:
		return processor.DS
	}
}

func (p *CPU) modRMPointer() memory.Pointer {
	offset := p.modRMOffset()
	return memory.NewPointer(p.Segs[p.getSeg(p.modRMSegment())], offset)
}

// getSeg applies a pending segment override. Only DS and SS defaults can be
// overridden.
func (p *CPU) getSeg(seg processor.SegReg) processor.SegReg {
	if p.segOverride != noOverride && (seg == processor.DS || seg == processor.SS) {
		return p.segOverride
	}
	return seg
}

func signExtend16(v byte) uint16 {
	return uint16(int16(int8(v)))
}
