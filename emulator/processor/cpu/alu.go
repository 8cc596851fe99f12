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

import "github.com/andreas-jonsson/i186-core/emulator/processor"

type opWidth struct {
	wide              bool
	mask, sign, carry uint32
}

var (
	byteOp = opWidth{mask: 0xFF, sign: 0x80, carry: 0x100}
	wordOp = opWidth{wide: true, mask: 0xFFFF, sign: 0x8000, carry: 0x10000}
)

func widthOf(op byte) opWidth {
	if op&1 != 0 {
		return wordOp
	}
	return byteOp
}

// Operation selectors. The first eight follow the reg field of the
// 0x80-0x83 group and bits 3-5 of the 0x00-0x3F opcodes.
const (
	aluADD = iota
	aluOR
	aluADC
	aluSBB
	aluAND
	aluSUB
	aluXOR
	aluCMP
	aluTEST
	aluMOV
)

func b2ui32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (p *CPU) updateFlagsSZP(w opWidth, res uint32) {
	res &= w.mask
	p.ZF = res == 0
	p.SF = res & w.sign
	p.PF = parityLookup[res&0xFF]
}

func (p *CPU) clearFlagsOAC() {
	p.CF = false
	p.OF = 0
	p.AF = 0
}

// alu applies kind to dest and src and returns the value the destination
// operand holds afterwards. CMP and TEST return dest unchanged.
func (p *CPU) alu(w opWidth, kind int, dest, src uint32) uint32 {
	switch kind {
	case aluADD:
		return p.add(w, dest, src, 0)
	case aluADC:
		return p.add(w, dest, src, b2ui32(p.CF))
	case aluSUB:
		return p.sub(w, dest, src, 0)
	case aluSBB:
		return p.sub(w, dest, src, b2ui32(p.CF))
	case aluCMP:
		p.sub(w, dest, src, 0)
		return dest
	case aluOR:
		return p.logic(w, dest|src)
	case aluAND:
		return p.logic(w, dest&src)
	case aluXOR:
		return p.logic(w, dest^src)
	case aluTEST:
		p.logic(w, dest&src)
		return dest
	case aluMOV:
		return src
	}
	panic("invalid ALU operation")
}

func (p *CPU) add(w opWidth, dest, src, carry uint32) uint32 {
	tmp := dest + src + carry
	p.OF = (tmp ^ src) & (tmp ^ dest) & w.sign
	p.AF = b2ui32((tmp^src^dest)&0x10 != 0)
	p.CF = tmp&w.carry != 0
	p.updateFlagsSZP(w, tmp)
	return tmp & w.mask
}

func (p *CPU) sub(w opWidth, dest, src, borrow uint32) uint32 {
	tmp := dest - src - borrow
	p.CF = tmp&w.carry != 0
	p.OF = (dest ^ src) & (dest ^ tmp) & w.sign
	p.AF = b2ui32((tmp^src^dest)&0x10 != 0)
	p.updateFlagsSZP(w, tmp)
	return tmp & w.mask
}

func (p *CPU) logic(w opWidth, res uint32) uint32 {
	p.clearFlagsOAC()
	p.updateFlagsSZP(w, res)
	return res & w.mask
}

func (p *CPU) inc(w opWidth, v uint32) uint32 {
	tmp := (v + 1) & w.mask
	p.OF = b2ui32(tmp == w.sign)
	p.AF = (tmp ^ (tmp - 1)) & 0x10
	p.updateFlagsSZP(w, tmp)
	return tmp
}

func (p *CPU) dec(w opWidth, v uint32) uint32 {
	tmp := (v - 1) & w.mask
	p.OF = b2ui32(tmp == w.sign-1)
	p.AF = (tmp ^ (tmp + 1)) & 0x10
	p.updateFlagsSZP(w, tmp)
	return tmp
}

func (p *CPU) neg(w opWidth, v uint32) uint32 {
	res := (w.carry - v) & w.mask
	p.CF = res != 0
	p.OF = b2ui32(res == w.sign)
	p.AF = (res ^ (w.carry - res)) & 0x10
	p.updateFlagsSZP(w, res)
	return res
}

func (p *CPU) mul8(v byte) {
	res := uint16(v) * uint16(p.AL())
	p.Regs[processor.AX] = res
	p.SF = uint32(res & 0x80)
	p.PF = parityLookup[res&0xFF]
	p.ZF = res == 0
	p.CF = res > 0xFF
	p.OF = b2ui32(p.CF)
}

func (p *CPU) imul8(v byte) {
	res := uint16(int16(int8(v)) * int16(int8(p.AL())))
	p.Regs[processor.AX] = res
	p.SF = uint32(res & 0x80)
	p.PF = parityLookup[res&0xFF]
	p.ZF = res == 0
	res &= 0xFF80
	p.CF = res != 0 && res != 0xFF80
	p.OF = b2ui32(p.CF)
}

func (p *CPU) div8(v byte) {
	ax := p.Regs[processor.AX]
	d := uint16(v)
	if d == 0 || ax/d >= 0x100 {
		p.trap(0)
		return
	}
	p.Regs[processor.AX] = (ax%d)*256 + ax/d
}

func (p *CPU) idiv8(v byte) {
	numer := int32(int16(p.Regs[processor.AX]))
	d := int32(int8(v))
	if d == 0 {
		p.trap(0)
		return
	}
	if q := numer / d; q < 0x80 && q >= -0x80 {
		p.Regs[processor.AX] = uint16((numer%d)*256 + int32(uint8(q)))
		return
	}
	p.trap(0)
}

func (p *CPU) mul16(v uint16) {
	res := uint32(v) * uint32(p.Regs[processor.AX])
	p.Regs[processor.AX] = uint16(res)
	p.Regs[processor.DX] = uint16(res >> 16)
	p.SF = res & 0x8000
	p.PF = parityLookup[res&0xFF]
	p.ZF = p.Regs[processor.AX]|p.Regs[processor.DX] == 0
	p.CF = res > 0xFFFF
	p.OF = b2ui32(p.CF)
}

func (p *CPU) imul16(v uint16) {
	res := uint32(int32(int16(v)) * int32(int16(p.Regs[processor.AX])))
	p.Regs[processor.AX] = uint16(res)
	p.Regs[processor.DX] = uint16(res >> 16)
	p.SF = res & 0x8000
	p.PF = parityLookup[res&0xFF]
	p.ZF = p.Regs[processor.AX]|p.Regs[processor.DX] == 0
	res &= 0xFFFF8000
	p.CF = res != 0 && res != 0xFFFF8000
	p.OF = b2ui32(p.CF)
}

func (p *CPU) div16(v uint16) {
	numer := uint32(p.Regs[processor.DX])<<16 | uint32(p.Regs[processor.AX])
	d := uint32(v)
	if d == 0 || numer/d >= 0x10000 {
		p.trap(0)
		return
	}
	p.Regs[processor.AX] = uint16(numer / d)
	p.Regs[processor.DX] = uint16(numer % d)
}

func (p *CPU) idiv16(v uint16) {
	numer := int64(int32(uint32(p.Regs[processor.DX])<<16 | uint32(p.Regs[processor.AX])))
	d := int64(int16(v))
	if d == 0 {
		p.trap(0)
		return
	}
	if q := numer / d; q < 0x8000 && q >= -0x8000 {
		p.Regs[processor.AX] = uint16(q)
		p.Regs[processor.DX] = uint16(numer % d)
		return
	}
	p.trap(0)
}

// imul3 is the 80186 three operand form. Only the low word is kept.
func (p *CPU) imul3(src, mult uint16) uint16 {
	res := uint32(int32(int16(src)) * int32(int16(mult)))
	dest := uint16(res)
	p.updateFlagsSZP(wordOp, uint32(dest))
	res &= 0xFFFF8000
	p.CF = res != 0 && res != 0xFFFF8000
	p.OF = b2ui32(p.CF)
	return dest
}

func (p *CPU) daa() {
	al := p.AL()
	if p.AF != 0 || al&0xF > 9 {
		al += 6
		p.AF = 1
	} else {
		p.AF = 0
	}

	if p.CF || al > 0x9F {
		al += 0x60
		p.CF = true
	} else {
		p.CF = false
	}

	p.SetAL(al)
	p.updateFlagsSZP(byteOp, uint32(al))
}

func (p *CPU) das() {
	oldAL, oldCF := p.AL(), p.CF
	al := uint32(oldAL)
	p.CF = false
	if p.AF != 0 || oldAL&0xF > 9 {
		al -= 6
		p.CF = oldCF || al > 0xFF
		al &= 0xFF
		p.AF = 1
	} else {
		p.AF = 0
	}

	if oldCF || oldAL > 0x99 {
		al = (al - 0x60) & 0xFF
		p.CF = true
	}

	p.updateFlagsSZP(byteOp, al)
	p.SetAL(byte(al))
}

func (p *CPU) aaa() {
	ax := p.Regs[processor.AX]
	if p.AF != 0 || ax&0xF > 9 {
		ax = ((ax + 0x100) & 0xFF00) | ((ax + 6) & 0x0F)
		p.AF, p.CF = 1, true
	} else {
		p.AF, p.CF = 0, false
		ax &= 0xFF0F
	}
	p.updateFlagsSZP(byteOp, uint32(ax))
	p.Regs[processor.AX] = ax
}

func (p *CPU) aas() {
	ax := p.Regs[processor.AX]
	if p.AF != 0 || ax&0xF > 9 {
		ax = (ax - 0x106) & 0xFF0F
		p.AF, p.CF = 1, true
	} else {
		p.AF, p.CF = 0, false
		ax &= 0xFF0F
	}
	p.updateFlagsSZP(byteOp, uint32(ax))
	p.Regs[processor.AX] = ax
}

func (p *CPU) aam(base byte) {
	if base == 0 {
		p.trap(0)
		return
	}

	al := p.AL()
	ax := uint16(al%base) | uint16(al/base)<<8
	p.Regs[processor.AX] = ax

	// Parity comes from the original AL.
	p.PF = parityLookup[al]
	p.ZF = ax == 0
	p.SF = uint32(ax & 0x8000)
}

func (p *CPU) aad(base byte) {
	ax := p.Regs[processor.AX]
	ax = 0xFF & ((ax>>8)*uint16(base) + ax)
	p.Regs[processor.AX] = ax
	p.clearFlagsOAC()
	p.updateFlagsSZP(byteOp, uint32(ax))
}
