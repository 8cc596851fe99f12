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

func (p *CPU) stringDelta(w opWidth) uint16 {
	var d uint16 = 1
	if w.wide {
		d = 2
	}
	if p.DF {
		return -d
	}
	return d
}

func (p *CPU) updateSI(w opWidth) {
	p.Regs[processor.SI] += p.stringDelta(w)
}

func (p *CPU) updateDI(w opWidth) {
	p.Regs[processor.DI] += p.stringDelta(w)
}

// source is DS:SI, honoring a segment override.
func (p *CPU) source() dataLocation {
	return dataLocation(p.segPointer(p.dataSeg(), p.Regs[processor.SI]))
}

// destination is always ES:DI.
func (p *CPU) destination() dataLocation {
	return dataLocation(p.segPointer(processor.ES, p.Regs[processor.DI]))
}

func (p *CPU) movs(w opWidth) {
	p.destination().write(p, w, p.source().read(p, w))
	p.updateSI(w)
	p.updateDI(w)
}

func (p *CPU) cmps(w opWidth) {
	src := p.destination().read(p, w)
	dest := p.source().read(p, w)
	p.sub(w, dest, src, 0)
	p.updateDI(w)
	p.updateSI(w)
}

func (p *CPU) stos(w opWidth) {
	p.destination().write(p, w, uint32(p.Regs[processor.AX]))
	p.updateDI(w)
}

func (p *CPU) lods(w opWidth) {
	if w.wide {
		p.Regs[processor.AX] = p.source().readWord(p)
	} else {
		p.SetAL(p.source().readByte(p))
	}
	p.updateSI(w)
}

func (p *CPU) scas(w opWidth) {
	src := p.destination().read(p, w)
	p.sub(w, uint32(p.Regs[processor.AX])&w.mask, src, 0)
	p.updateDI(w)
}

func (p *CPU) ins(w opWidth) {
	port := p.Regs[processor.DX]
	if w.wide {
		v := p.InWord(port)
		p.destination().writeWord(p, v)
	} else {
		p.destination().writeByte(p, p.InByte(port))
	}
	p.updateDI(w)
}

func (p *CPU) outs(w opWidth) {
	port := p.Regs[processor.DX]
	if w.wide {
		p.OutWord(port, p.source().readWord(p))
	} else {
		p.OutByte(port, p.source().readByte(p))
	}
	p.updateSI(w)
}

func isSegmentPrefix(op byte) bool {
	return op&0xE7 == 0x26
}

func prefixSegment(op byte) processor.SegReg {
	return processor.SegReg((op >> 3) & 3)
}

// segmentPrefix applies one or more segment override prefixes to the
// following instruction and clears the override once it completes.
func (p *CPU) segmentPrefix(op byte) error {
	for isSegmentPrefix(op) {
		p.segOverride = prefixSegment(op)
		op = p.readOpcodeStream()
	}
	err := p.execute(op)
	p.segOverride = noOverride
	return err
}

// rep handles REP/REPE (zf true) and REPNE (zf false). Segment overrides and
// further repeat prefixes may follow; the last repeat prefix wins. Opcodes
// that are not string instructions run once.
func (p *CPU) rep(zf bool) error {
	var (
		next       byte
		overridden bool
	)

	for {
		next = p.readOpcodeStream()
		switch {
		case isSegmentPrefix(next):
			p.segOverride = prefixSegment(next)
			overridden = true
			continue
		case next == 0xF2 || next == 0xF3:
			zf = next == 0xF3
			continue
		}
		break
	}

	err := p.repeat(next, zf)
	if overridden {
		p.segOverride = noOverride
	}
	return err
}

func (p *CPU) repeat(op byte, zf bool) error {
	var fn func(opWidth)
	conditional := false

	switch op {
	case 0x6C, 0x6D: // INS
		fn = p.ins
	case 0x6E, 0x6F: // OUTS
		fn = p.outs
	case 0xA4, 0xA5: // MOVS
		fn = p.movs
	case 0xA6, 0xA7: // CMPS
		fn, conditional = p.cmps, true
	case 0xAA, 0xAB: // STOS
		fn = p.stos
	case 0xAC, 0xAD: // LODS
		fn = p.lods
	case 0xAE, 0xAF: // SCAS
		fn, conditional = p.scas, true
	default:
		return p.execute(op)
	}

	w := widthOf(op)
	count := p.Regs[processor.CX]
	if conditional {
		// ZF is primed even when CX is already zero.
		for p.ZF = zf; p.ZF == zf && count > 0; count-- {
			fn(w)
		}
	} else {
		for ; count > 0; count-- {
			fn(w)
		}
	}
	p.Regs[processor.CX] = count
	return nil
}
