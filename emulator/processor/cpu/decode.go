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

const noOverride processor.SegReg = -1

type instructionState struct {
	opcode, modRegRM byte

	startIP      uint16
	segOverride  processor.SegReg
	modRMAddress memory.Pointer
}

func (p *CPU) readOpcodeStream() byte {
	v := p.ReadByte(p.segPointer(processor.CS, p.IP))
	p.IP++
	return v
}

func (p *CPU) readOpcodeImm16() uint16 {
	v := p.ReadWord(p.segPointer(processor.CS, p.IP))
	p.IP += 2
	return v
}

func (p *CPU) readModRegRM() {
	p.modRegRM = p.readOpcodeStream()
}

// parseOperands reads ModRM and returns (dest, src). The register operand is
// resolved before the r/m operand so displacement bytes are consumed in
// encoding order.
func (p *CPU) parseOperands() (dataLocation, dataLocation) {
	p.readModRegRM()
	reg, rm := p.regLocation(), p.rmLocation()
	if p.opcode&2 != 0 {
		return reg, rm
	}
	return rm, reg
}

func (p *CPU) nextInstruction() error {
	p.startIP = p.IP
	p.stats.NumInstructions++
	if p.tracer != nil {
		p.tracer.TraceInstruction(p, p.Segs[processor.CS], p.IP)
	}
	return p.execute(p.readOpcodeStream())
}

func (p *CPU) jumpShort(cond bool) {
	disp := signExtend16(p.readOpcodeStream())
	if cond {
		p.IP += disp
	}
}

func (p *CPU) execute(op byte) error {
	p.opcode = op

	switch {
	case op < 0x40 && op&7 < 6: // ALU r/m,reg / reg,r/m / acc,imm
		kind, w := int(op>>3), widthOf(op)
		if op&4 != 0 {
			acc := dataLocation(processor.AX) | registerLocation
			var imm uint32
			if w.wide {
				imm = uint32(p.readOpcodeImm16())
			} else {
				imm = uint32(p.readOpcodeStream())
			}
			acc.write(p, w, p.alu(w, kind, acc.read(p, w), imm))
			return nil
		}
		dest, src := p.parseOperands()
		d := dest.read(p, w)
		dest.write(p, w, p.alu(w, kind, d, src.read(p, w)))
		return nil
	case op >= 0x40 && op < 0x50: // INC/DEC reg16
		reg := &p.Regs[op&7]
		if op < 0x48 {
			*reg = uint16(p.inc(wordOp, uint32(*reg)))
		} else {
			*reg = uint16(p.dec(wordOp, uint32(*reg)))
		}
		return nil
	case op >= 0x70 && op < 0x80:
		p.jumpShort(p.condition(op & 0xF))
		return nil
	case op >= 0xB0 && op < 0xB8: // MOV reg8,imm8
		p.SetReg8(processor.Reg8(op&7), p.readOpcodeStream())
		return nil
	case op >= 0xB8 && op < 0xC0: // MOV reg16,imm16
		p.Regs[op&7] = p.readOpcodeImm16()
		return nil
	case op >= 0xD8 && op < 0xE0: // ESC
		p.readModRegRM()
		p.rmLocation().readByte(p)
		return nil
	}

	switch op {
	case 0x06, 0x0E, 0x16, 0x1E: // PUSH seg
		p.push16(p.Segs[(op>>3)&3])
	case 0x07, 0x17, 0x1F: // POP seg
		p.Segs[(op>>3)&3] = p.pop16()
	case 0x26, 0x2E, 0x36, 0x3E:
		return p.segmentPrefix(op)
	case 0x27:
		p.daa()
	case 0x2F:
		p.das()
	case 0x37:
		p.aaa()
	case 0x3F:
		p.aas()

	// 0x5x

	case 0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57: // PUSH reg16
		// PUSH SP stores the value SP had before the push.
		p.push16(p.Regs[op&7])
	case 0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F: // POP reg16
		v := p.pop16()
		p.Regs[op&7] = v

	// 0x6x

	case 0x60: // PUSHA
		sp := p.Regs[processor.SP]
		p.push16(p.Regs[processor.AX])
		p.push16(p.Regs[processor.CX])
		p.push16(p.Regs[processor.DX])
		p.push16(p.Regs[processor.BX])
		p.push16(sp)
		p.push16(p.Regs[processor.BP])
		p.push16(p.Regs[processor.SI])
		p.push16(p.Regs[processor.DI])
	case 0x61: // POPA
		p.Regs[processor.DI] = p.pop16()
		p.Regs[processor.SI] = p.pop16()
		p.Regs[processor.BP] = p.pop16()
		p.pop16()
		p.Regs[processor.BX] = p.pop16()
		p.Regs[processor.DX] = p.pop16()
		p.Regs[processor.CX] = p.pop16()
		p.Regs[processor.AX] = p.pop16()
	case 0x62: // BOUND
		p.readModRegRM()
		idx := p.regLocation().readWord(p)
		low := p.rmLocation().readWord(p)
		high := p.latchedLocation(2).readWord(p)
		if idx < low || idx > high {
			p.trap(5)
		}
	case 0x68: // PUSH imm16
		p.push16(p.readOpcodeImm16())
	case 0x6A: // PUSH imm8
		p.push16(signExtend16(p.readOpcodeStream()))
	case 0x69, 0x6B: // IMUL reg16,r/m16,imm
		p.readModRegRM()
		src := p.rmLocation().readWord(p)
		var mult uint16
		if op == 0x69 {
			mult = p.readOpcodeImm16()
		} else {
			mult = signExtend16(p.readOpcodeStream())
		}
		p.regLocation().writeWord(p, p.imul3(src, mult))
	case 0x6C, 0x6D:
		p.ins(widthOf(op))
	case 0x6E, 0x6F:
		p.outs(widthOf(op))

	// 0x8x

	case 0x80, 0x81, 0x82, 0x83: // ALU r/m,imm
		w := widthOf(op)
		p.readModRegRM()
		dest := p.rmLocation()
		d := dest.read(p, w)

		var imm uint32
		switch op {
		case 0x81:
			imm = uint32(p.readOpcodeImm16())
		case 0x83:
			imm = uint32(signExtend16(p.readOpcodeStream()))
		default: // 0x82 is an alias of 0x80
			imm = uint32(p.readOpcodeStream())
		}

		kind := int(p.modRegRM>>3) & 7
		res := p.alu(w, kind, d, imm)
		if kind != aluCMP {
			dest.write(p, w, res)
		}
	case 0x84, 0x85: // TEST r/m,reg
		w := widthOf(op)
		p.readModRegRM()
		src := p.regLocation().read(p, w)
		dest := p.rmLocation()
		dest.write(p, w, p.alu(w, aluTEST, dest.read(p, w), src))
	case 0x86, 0x87: // XCHG r/m,reg
		w := widthOf(op)
		p.readModRegRM()
		reg := p.regLocation()
		rm := p.rmLocation()
		a, b := rm.read(p, w), reg.read(p, w)
		rm.write(p, w, b)
		reg.write(p, w, a)
	case 0x88, 0x89, 0x8A, 0x8B: // MOV
		w := widthOf(op)
		dest, src := p.parseOperands()
		if op < 0x8A {
			// The destination is fetched even though it is overwritten.
			dest.read(p, w)
			dest.write(p, w, src.read(p, w))
		} else {
			v := src.read(p, w)
			dest.write(p, w, v)
		}
	case 0x8C: // MOV r/m16,sreg
		p.readModRegRM()
		dest := p.rmLocation()
		dest.readWord(p)
		dest.writeWord(p, p.segLocation().readWord(p))
	case 0x8D: // LEA
		p.readModRegRM()
		offset := p.modRMOffset()
		if p.modRegRM < 0xC0 {
			p.regLocation().writeWord(p, offset)
		}
	case 0x8E: // MOV sreg,r/m16
		p.readModRegRM()
		p.segLocation().writeWord(p, p.rmLocation().readWord(p))
	case 0x8F: // POP r/m16
		p.readModRegRM()
		dest := p.rmLocation()
		dest.writeWord(p, p.pop16())

	// 0x9x

	case 0x90, 0x9B: // NOP, WAIT
	case 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97: // XCHG AX,reg16
		r := &p.Regs[op&7]
		*r, p.Regs[processor.AX] = p.Regs[processor.AX], *r
	case 0x98: // CBW
		p.Regs[processor.AX] = signExtend16(p.AL())
	case 0x99: // CWD
		if p.Regs[processor.AX]&0x8000 != 0 {
			p.Regs[processor.DX] = 0xFFFF
		} else {
			p.Regs[processor.DX] = 0
		}
	case 0x9A: // CALL far
		ip := p.readOpcodeImm16()
		cs := p.readOpcodeImm16()
		p.push16(p.Segs[processor.CS])
		p.push16(p.IP)
		p.IP = ip
		p.Segs[processor.CS] = cs
	case 0x9C: // PUSHF
		p.push16(p.Compress())
	case 0x9D: // POPF
		return p.popf()
	case 0x9E: // SAHF
		p.Expand((p.Compress() & 0xFF00) | uint16(p.AH()&0xD5))
	case 0x9F: // LAHF
		p.SetAH(byte(p.Compress()))

	// 0xAx

	case 0xA0, 0xA1: // MOV acc,moffs
		addr := dataLocation(p.segPointer(p.dataSeg(), p.readOpcodeImm16()))
		w := widthOf(op)
		(dataLocation(processor.AX) | registerLocation).write(p, w, addr.read(p, w))
	case 0xA2, 0xA3: // MOV moffs,acc
		addr := dataLocation(p.segPointer(p.dataSeg(), p.readOpcodeImm16()))
		addr.write(p, widthOf(op), uint32(p.Regs[processor.AX]))
	case 0xA4, 0xA5:
		p.movs(widthOf(op))
	case 0xA6, 0xA7:
		p.cmps(widthOf(op))
	case 0xA8, 0xA9: // TEST acc,imm
		w := widthOf(op)
		acc := dataLocation(processor.AX) | registerLocation
		var imm uint32
		if w.wide {
			imm = uint32(p.readOpcodeImm16())
		} else {
			imm = uint32(p.readOpcodeStream())
		}
		p.alu(w, aluTEST, acc.read(p, w), imm)
	case 0xAA, 0xAB:
		p.stos(widthOf(op))
	case 0xAC, 0xAD:
		p.lods(widthOf(op))
	case 0xAE, 0xAF:
		p.scas(widthOf(op))

	// 0xCx

	case 0xC0, 0xC1: // shift r/m,imm8
		w := widthOf(op)
		p.readModRegRM()
		dest := p.rmLocation()
		v := dest.read(p, w)
		count := p.readOpcodeStream()
		dest.write(p, w, p.shift(w, v, count))
	case 0xC2: // RET imm16
		n := p.readOpcodeImm16()
		p.IP = p.pop16()
		p.Regs[processor.SP] += n
	case 0xC3: // RET
		p.IP = p.pop16()
	case 0xC4, 0xC5: // LES/LDS
		p.readModRegRM()
		v := p.rmLocation().readWord(p)
		seg := processor.ES
		if op == 0xC5 {
			seg = processor.DS
		}
		p.Segs[seg] = p.latchedLocation(2).readWord(p)
		p.regLocation().writeWord(p, v)
	case 0xC6, 0xC7: // MOV r/m,imm
		w := widthOf(op)
		p.readModRegRM()
		dest := p.rmLocation()
		var imm uint32
		if w.wide {
			imm = uint32(p.readOpcodeImm16())
		} else {
			imm = uint32(p.readOpcodeStream())
		}
		dest.write(p, w, imm)
	case 0xC8: // ENTER
		size := p.readOpcodeImm16()
		p.enter(size, p.readOpcodeStream())
	case 0xC9: // LEAVE
		p.Regs[processor.SP] = p.Regs[processor.BP]
		p.Regs[processor.BP] = p.pop16()
	case 0xCA: // RETF imm16
		n := p.readOpcodeImm16()
		p.retf()
		p.Regs[processor.SP] += n
	case 0xCB: // RETF
		p.retf()
	case 0xCC: // INT 3
		p.interrupt(3)
	case 0xCD: // INT imm8
		p.interrupt(p.readOpcodeStream())
	case 0xCE: // INTO
		if p.OF != 0 {
			p.interrupt(4)
		}
	case 0xCF: // IRET
		return p.iret()

	// 0xDx

	case 0xD0, 0xD1: // shift r/m,1
		w := widthOf(op)
		p.readModRegRM()
		dest := p.rmLocation()
		dest.write(p, w, p.shift1(w, dest.read(p, w)))
	case 0xD2, 0xD3: // shift r/m,CL
		w := widthOf(op)
		p.readModRegRM()
		dest := p.rmLocation()
		dest.write(p, w, p.shift(w, dest.read(p, w), p.CL()))
	case 0xD4: // AAM
		p.aam(p.readOpcodeStream())
	case 0xD5: // AAD
		p.aad(p.readOpcodeStream())
	case 0xD7: // XLAT
		offset := p.Regs[processor.BX] + uint16(p.AL())
		p.SetAL(p.ReadByte(p.segPointer(p.dataSeg(), offset)))

	// 0xEx

	case 0xE0: // LOOPNE
		disp := signExtend16(p.readOpcodeStream())
		p.Regs[processor.CX]--
		if !p.ZF && p.Regs[processor.CX] != 0 {
			p.IP += disp
		}
	case 0xE1: // LOOPE
		disp := signExtend16(p.readOpcodeStream())
		p.Regs[processor.CX]--
		if p.ZF && p.Regs[processor.CX] != 0 {
			p.IP += disp
		}
	case 0xE2: // LOOP
		disp := signExtend16(p.readOpcodeStream())
		p.Regs[processor.CX]--
		if p.Regs[processor.CX] != 0 {
			p.IP += disp
		}
	case 0xE3: // JCXZ
		p.jumpShort(p.Regs[processor.CX] == 0)
	case 0xE4: // IN AL,imm8
		p.SetAL(p.InByte(uint16(p.readOpcodeStream())))
	case 0xE5: // IN AX,imm8
		p.Regs[processor.AX] = p.InWord(uint16(p.readOpcodeStream()))
	case 0xE6: // OUT imm8,AL
		p.OutByte(uint16(p.readOpcodeStream()), p.AL())
	case 0xE7: // OUT imm8,AX
		p.OutWord(uint16(p.readOpcodeStream()), p.Regs[processor.AX])
	case 0xE8: // CALL near
		disp := p.readOpcodeImm16()
		p.push16(p.IP)
		p.IP += disp
	case 0xE9: // JMP near
		disp := p.readOpcodeImm16()
		p.IP += disp
	case 0xEA: // JMP far
		ip := p.readOpcodeImm16()
		p.Segs[processor.CS] = p.readOpcodeImm16()
		p.IP = ip
	case 0xEB: // JMP short
		p.jumpShort(true)
	case 0xEC: // IN AL,DX
		p.SetAL(p.InByte(p.Regs[processor.DX]))
	case 0xED: // IN AX,DX
		p.Regs[processor.AX] = p.InWord(p.Regs[processor.DX])
	case 0xEE: // OUT DX,AL
		p.OutByte(p.Regs[processor.DX], p.AL())
	case 0xEF: // OUT DX,AX
		p.OutWord(p.Regs[processor.DX], p.Regs[processor.AX])

	// 0xFx

	case 0xF0: // LOCK
	case 0xF2: // REPNE
		return p.rep(false)
	case 0xF3: // REP/REPE
		return p.rep(true)
	case 0xF4: // HLT
		return processor.ErrCPUHalt
	case 0xF5: // CMC
		p.CF = !p.CF
	case 0xF6, 0xF7:
		p.grp3(widthOf(op))
	case 0xF8: // CLC
		p.CF = false
	case 0xF9: // STC
		p.CF = true
	case 0xFA: // CLI
		p.IF = false
	case 0xFB: // STI
		p.IF = true
	case 0xFC: // CLD
		p.DF = false
	case 0xFD: // STD
		p.DF = true
	case 0xFE:
		p.grp4()
	case 0xFF:
		p.grp5()

	default: // 0x0F, 0x63-0x67, 0xD6, 0xF1
		p.invalidOpcode()
	}
	return nil
}

// condition evaluates the Jcc predicate for the low nibble of 0x70-0x7F.
// The signed comparisons fold ZF into JL and JGE as well.
func (p *CPU) condition(cc byte) bool {
	sf, of := p.SF != 0, p.OF != 0
	switch cc {
	case 0x0: // JO
		return of
	case 0x1: // JNO
		return !of
	case 0x2: // JB
		return p.CF
	case 0x3: // JNB
		return !p.CF
	case 0x4: // JZ
		return p.ZF
	case 0x5: // JNZ
		return !p.ZF
	case 0x6: // JBE
		return p.CF || p.ZF
	case 0x7: // JA
		return !p.CF && !p.ZF
	case 0x8: // JS
		return sf
	case 0x9: // JNS
		return !sf
	case 0xA: // JP
		return p.PF
	case 0xB: // JNP
		return !p.PF
	case 0xC: // JL
		return sf != of && !p.ZF
	case 0xD: // JGE
		return sf == of || p.ZF
	case 0xE: // JLE
		return sf != of || p.ZF
	default: // JG
		return sf == of && !p.ZF
	}
}

func (p *CPU) grp3(w opWidth) {
	p.readModRegRM()
	dest := p.rmLocation()
	v := dest.read(p, w)

	switch p.modRegRM & 0x38 {
	case 0x00, 0x08: // TEST r/m,imm
		var imm uint32
		if w.wide {
			imm = uint32(p.readOpcodeImm16())
		} else {
			imm = uint32(p.readOpcodeStream())
		}
		p.alu(w, aluTEST, v, imm)
	case 0x10: // NOT
		dest.write(p, w, ^v)
	case 0x18: // NEG
		dest.write(p, w, p.neg(w, v))
	case 0x20: // MUL
		if w.wide {
			p.mul16(uint16(v))
		} else {
			p.mul8(byte(v))
		}
	case 0x28: // IMUL
		if w.wide {
			p.imul16(uint16(v))
		} else {
			p.imul8(byte(v))
		}
	case 0x30: // DIV
		if w.wide {
			p.div16(uint16(v))
		} else {
			p.div8(byte(v))
		}
	case 0x38: // IDIV
		if w.wide {
			p.idiv16(uint16(v))
		} else {
			p.idiv8(byte(v))
		}
	}
}

// grp4 treats every reg field other than zero as DEC.
func (p *CPU) grp4() {
	p.readModRegRM()
	dest := p.rmLocation()
	v := uint32(dest.readByte(p))
	if p.modRegRM&0x38 == 0 {
		v = p.inc(byteOp, v)
	} else {
		v = p.dec(byteOp, v)
	}
	dest.writeByte(p, byte(v))
}

func (p *CPU) grp5() {
	p.readModRegRM()
	dest := p.rmLocation()
	v := dest.readWord(p)

	switch p.modRegRM & 0x38 {
	case 0x00: // INC
		dest.writeWord(p, uint16(p.inc(wordOp, uint32(v))))
	case 0x08: // DEC
		dest.writeWord(p, uint16(p.dec(wordOp, uint32(v))))
	case 0x10: // CALL r/m16
		p.push16(p.IP)
		p.IP = v
	case 0x18: // CALL far m16:16
		p.push16(p.Segs[processor.CS])
		p.push16(p.IP)
		p.IP = v
		p.Segs[processor.CS] = p.latchedLocation(2).readWord(p)
	case 0x20: // JMP r/m16
		p.IP = v
	case 0x28: // JMP far m16:16
		p.IP = v
		p.Segs[processor.CS] = p.latchedLocation(2).readWord(p)
	case 0x30: // PUSH r/m16
		p.push16(v)
	case 0x38:
		p.invalidOpcode()
	}
}

func (p *CPU) enter(size uint16, level byte) {
	p.push16(p.Regs[processor.BP])
	p.Regs[processor.BP] = p.Regs[processor.SP]
	p.Regs[processor.SP] -= size

	if level == 0 {
		return
	}
	frame := p.Regs[processor.BP]
	for i := uint16(1); i < uint16(level); i++ {
		p.push16(p.ReadWord(p.segPointer(processor.SS, frame-i*2)))
	}
	p.push16(frame)
}
