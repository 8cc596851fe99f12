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

package processor

import "fmt"

// Reg16 identifies one of the general purpose word registers.
// The values match the 3-bit register encoding used by ModRM.
type Reg16 int

const (
	AX Reg16 = iota
	CX
	DX
	BX
	SP
	BP
	SI
	DI
)

var reg16Names = [8]string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI"}

func (r Reg16) String() string {
	return reg16Names[r&7]
}

// Reg8 identifies one of the byte halves of AX, CX, DX and BX.
type Reg8 int

const (
	AL Reg8 = iota
	CL
	DL
	BL
	AH
	CH
	DH
	BH
)

var reg8Names = [8]string{"AL", "CL", "DL", "BL", "AH", "CH", "DH", "BH"}

func (r Reg8) String() string {
	return reg8Names[r&7]
}

type SegReg int

const (
	ES SegReg = iota
	CS
	SS
	DS
)

var segNames = [4]string{"ES", "CS", "SS", "DS"}

func (r SegReg) String() string {
	return segNames[r&3]
}

type Flag int

const (
	CF Flag = iota
	PF
	AF
	ZF
	SF
	TF
	IF
	DF
	OF
)

var flagNames = [9]string{"CF", "PF", "AF", "ZF", "SF", "TF", "IF", "DF", "OF"}

func (f Flag) String() string {
	if f < 0 || int(f) >= len(flagNames) {
		return fmt.Sprintf("Flag(%d)", int(f))
	}
	return flagNames[f]
}

// Flags holds the nine architectural flags individually.
// AF, OF and SF keep whatever non-zero pattern the ALU produced and are only
// reduced to a single bit when packed or tested.
type Flags struct {
	CF, PF, ZF, TF, IF, DF bool
	AF, OF, SF             uint32
}

func b2ui16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// Compress packs the flags into the FLAGS word layout. Bit 1 is always set.
func (f *Flags) Compress() uint16 {
	return b2ui16(f.CF) |
		0x2 |
		b2ui16(f.PF)<<2 |
		b2ui16(f.AF != 0)<<4 |
		b2ui16(f.ZF)<<6 |
		b2ui16(f.SF != 0)<<7 |
		b2ui16(f.TF)<<8 |
		b2ui16(f.IF)<<9 |
		b2ui16(f.DF)<<10 |
		b2ui16(f.OF != 0)<<11
}

// Expand loads the flags from a FLAGS word.
func (f *Flags) Expand(v uint16) {
	f.CF = v&0x001 != 0
	f.PF = v&0x004 != 0
	f.AF = uint32(v & 0x010)
	f.ZF = v&0x040 != 0
	f.SF = uint32(v & 0x080)
	f.TF = v&0x100 != 0
	f.IF = v&0x200 != 0
	f.DF = v&0x400 != 0
	f.OF = uint32(v & 0x800)
}

func (f *Flags) Flag(id Flag) bool {
	switch id {
	case CF:
		return f.CF
	case PF:
		return f.PF
	case AF:
		return f.AF != 0
	case ZF:
		return f.ZF
	case SF:
		return f.SF != 0
	case TF:
		return f.TF
	case IF:
		return f.IF
	case DF:
		return f.DF
	case OF:
		return f.OF != 0
	}
	return false
}

func (f *Flags) SetFlag(id Flag, v bool) {
	switch id {
	case CF:
		f.CF = v
	case PF:
		f.PF = v
	case AF:
		f.AF = uint32(b2ui16(v))
	case ZF:
		f.ZF = v
	case SF:
		f.SF = uint32(b2ui16(v))
	case TF:
		f.TF = v
	case IF:
		f.IF = v
	case DF:
		f.DF = v
	case OF:
		f.OF = uint32(b2ui16(v))
	}
}

// Letters renders the flags the way the instruction trace prints them.
func (f *Flags) Letters() string {
	b := []byte("........")
	for i, set := range []bool{f.OF != 0, f.DF, f.IF, f.SF != 0, f.ZF, f.AF != 0, f.PF, f.CF} {
		if set {
			b[i] = "ODISZAPC"[i]
		}
	}
	return string(b)
}

type Registers struct {
	Regs [8]uint16
	Segs [4]uint16
	IP   uint16

	Flags
}

// Reset clears all registers and flags and sets CS to FFFF.
func (r *Registers) Reset() {
	*r = Registers{}
	r.Segs[CS] = 0xFFFF
}

func (r *Registers) Reg16(id Reg16) uint16 {
	return r.Regs[id&7]
}

func (r *Registers) SetReg16(id Reg16, v uint16) {
	r.Regs[id&7] = v
}

func (r *Registers) Reg8(id Reg8) byte {
	v := r.Regs[id&3]
	if id&4 != 0 {
		return byte(v >> 8)
	}
	return byte(v)
}

func (r *Registers) SetReg8(id Reg8, v byte) {
	p := &r.Regs[id&3]
	if id&4 != 0 {
		*p = *p&0x00FF | uint16(v)<<8
		return
	}
	*p = *p&0xFF00 | uint16(v)
}

func (r *Registers) Seg(id SegReg) uint16 {
	return r.Segs[id&3]
}

func (r *Registers) SetSeg(id SegReg, v uint16) {
	r.Segs[id&3] = v
}

func (r *Registers) AX() uint16 { return r.Regs[AX] }
func (r *Registers) CX() uint16 { return r.Regs[CX] }
func (r *Registers) DX() uint16 { return r.Regs[DX] }
func (r *Registers) BX() uint16 { return r.Regs[BX] }
func (r *Registers) SP() uint16 { return r.Regs[SP] }
func (r *Registers) BP() uint16 { return r.Regs[BP] }
func (r *Registers) SI() uint16 { return r.Regs[SI] }
func (r *Registers) DI() uint16 { return r.Regs[DI] }

func (r *Registers) SetAX(v uint16) { r.Regs[AX] = v }
func (r *Registers) SetCX(v uint16) { r.Regs[CX] = v }
func (r *Registers) SetDX(v uint16) { r.Regs[DX] = v }
func (r *Registers) SetBX(v uint16) { r.Regs[BX] = v }
func (r *Registers) SetSP(v uint16) { r.Regs[SP] = v }
func (r *Registers) SetBP(v uint16) { r.Regs[BP] = v }
func (r *Registers) SetSI(v uint16) { r.Regs[SI] = v }
func (r *Registers) SetDI(v uint16) { r.Regs[DI] = v }

func (r *Registers) AL() byte { return r.Reg8(AL) }
func (r *Registers) AH() byte { return r.Reg8(AH) }
func (r *Registers) CL() byte { return r.Reg8(CL) }
func (r *Registers) CH() byte { return r.Reg8(CH) }
func (r *Registers) DL() byte { return r.Reg8(DL) }
func (r *Registers) DH() byte { return r.Reg8(DH) }
func (r *Registers) BL() byte { return r.Reg8(BL) }
func (r *Registers) BH() byte { return r.Reg8(BH) }

func (r *Registers) SetAL(v byte) { r.SetReg8(AL, v) }
func (r *Registers) SetAH(v byte) { r.SetReg8(AH, v) }
func (r *Registers) SetCL(v byte) { r.SetReg8(CL, v) }
func (r *Registers) SetCH(v byte) { r.SetReg8(CH, v) }
func (r *Registers) SetDL(v byte) { r.SetReg8(DL, v) }
func (r *Registers) SetDH(v byte) { r.SetReg8(DH, v) }
func (r *Registers) SetBL(v byte) { r.SetReg8(BL, v) }
func (r *Registers) SetBH(v byte) { r.SetReg8(BH, v) }

func (r *Registers) ES() uint16 { return r.Segs[ES] }
func (r *Registers) CS() uint16 { return r.Segs[CS] }
func (r *Registers) SS() uint16 { return r.Segs[SS] }
func (r *Registers) DS() uint16 { return r.Segs[DS] }

func (r *Registers) SetES(v uint16) { r.Segs[ES] = v }
func (r *Registers) SetCS(v uint16) { r.Segs[CS] = v }
func (r *Registers) SetSS(v uint16) { r.Segs[SS] = v }
func (r *Registers) SetDS(v uint16) { r.Segs[DS] = v }

func (r *Registers) GetValues() [12]uint16 {
	return [12]uint16{
		r.Regs[AX], r.Regs[CX], r.Regs[DX], r.Regs[BX],
		r.Regs[SP], r.Regs[BP], r.Regs[SI], r.Regs[DI],
		r.Segs[ES], r.Segs[CS], r.Segs[SS], r.Segs[DS],
	}
}
