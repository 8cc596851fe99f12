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

// IRQVector maps an IRQ line to its interrupt vector, using the PC/AT
// layout of the two cascaded controllers.
func IRQVector(line int) byte {
	line &= 0xF
	if line < 8 {
		return byte(8 + line)
	}
	return byte(0x70 + line - 8)
}

// interrupt pushes FLAGS, CS and IP and transfers control through the
// vector table entry for n.
func (p *CPU) interrupt(n byte) {
	p.stats.NumInterrupts++

	vec := memory.Pointer(uint32(n) * 4)
	offset := p.ReadWord(vec)
	seg := p.ReadWord(vec + 2)

	p.push16(p.Compress())
	p.push16(p.Segs[processor.CS])
	p.push16(p.IP)

	p.IP = offset
	p.Segs[processor.CS] = seg
	p.TF, p.IF = false, false

	if p.notifier != nil {
		p.notifier.NotifyInterrupt(n)
	}
}

// trap raises a fault. IP is rewound to the first byte of the faulting
// instruction, prefixes included.
func (p *CPU) trap(n byte) {
	p.IP = p.startIP
	p.interrupt(n)
}

func (p *CPU) invalidOpcode() {
	p.trap(6)
}

func (p *CPU) retf() {
	p.IP = p.pop16()
	p.Segs[processor.CS] = p.pop16()
}

// popf is the only way TF gets set. When it is, one more instruction runs
// before the single step trap is taken.
func (p *CPU) popf() error {
	p.Expand(p.pop16())
	if p.TF {
		if err := p.nextInstruction(); err != nil {
			return err
		}
		p.interrupt(1)
	}
	return nil
}

func (p *CPU) iret() error {
	p.retf()
	return p.popf()
}

func (p *CPU) serviceIRQ() {
	if !p.IF || p.irqMask == 0 {
		return
	}
	line := bits.TrailingZeros16(p.irqMask)
	p.irqMask &^= 1 << uint(line)
	p.interrupt(IRQVector(line))
}

// Step delivers at most one pending IRQ and then executes one instruction.
// After HLT the processor stays halted and every call returns
// processor.ErrCPUHalt until Reset.
func (p *CPU) Step() error {
	if p.halted {
		return processor.ErrCPUHalt
	}

	p.serviceIRQ()
	if err := p.nextInstruction(); err != nil {
		if err == processor.ErrCPUHalt {
			p.halted = true
		}
		return err
	}
	return nil
}
