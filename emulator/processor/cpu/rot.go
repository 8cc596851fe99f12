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

func (w opWidth) bits() uint32 {
	if w.wide {
		return 16
	}
	return 8
}

// shift1 performs a single bit shift or rotate selected by the ModRM reg
// field. OF is defined for every operation.
func (p *CPU) shift1(w opWidth, val uint32) uint32 {
	p.AF = 0
	switch p.modRegRM & 0x38 {
	case 0x00: // ROL
		p.CF = val&w.sign != 0
		val = ((val << 1) + b2ui32(p.CF)) & w.mask
		p.OF = b2ui32((val&w.sign != 0) != p.CF)
	case 0x08: // ROR
		p.CF = val&1 != 0
		val = (val >> 1) | (b2ui32(p.CF) * w.sign)
		p.OF = b2ui32((val&(w.sign>>1) != 0) != (val&w.sign != 0))
	case 0x10: // RCL
		oldCF := b2ui32(p.CF)
		p.CF = val&w.sign != 0
		val = ((val << 1) | oldCF) & w.mask
		p.OF = b2ui32((val&w.sign != 0) != p.CF)
	case 0x18: // RCR
		oldCF := b2ui32(p.CF)
		p.CF = val&1 != 0
		val = (val >> 1) | (oldCF * w.sign)
		p.OF = b2ui32((val&(w.sign>>1) != 0) != (val&w.sign != 0))
	case 0x20, 0x30: // SHL
		p.CF = val&w.sign != 0
		val = (val << 1) & w.mask
		p.OF = b2ui32((val&w.sign != 0) != p.CF)
		p.updateFlagsSZP(w, val)
	case 0x28: // SHR
		p.CF = val&1 != 0
		p.OF = b2ui32(val&w.sign != 0)
		val >>= 1
		p.updateFlagsSZP(w, val)
	case 0x38: // SAR
		p.CF = val&1 != 0
		p.OF = 0
		val = (val >> 1) | (val & w.sign)
		p.updateFlagsSZP(w, val)
	}
	return val
}

// shift handles a variable count. The count is taken modulo 32 and a
// zero count leaves the flags alone. Above one, AF and OF are cleared before
// the operation and OF is then derived from the final value for rotates and
// SHL only.
func (p *CPU) shift(w opWidth, val uint32, count byte) uint32 {
	count &= 0x1F
	if count == 0 {
		return val
	}
	if count == 1 {
		return p.shift1(w, val)
	}

	p.AF = 0
	p.OF = 0

	n := uint32(count)
	switch p.modRegRM & 0x38 {
	case 0x00: // ROL
		for ; n > 0; n-- {
			p.CF = val&w.sign != 0
			val = ((val << 1) | b2ui32(p.CF)) & w.mask
		}
		p.OF = b2ui32((val&w.sign != 0) != p.CF)
	case 0x08: // ROR
		for ; n > 0; n-- {
			p.CF = val&1 != 0
			val = (val >> 1) | (b2ui32(p.CF) * w.sign)
		}
		p.OF = b2ui32((val&(w.sign>>1) != 0) != (val&w.sign != 0))
	case 0x10: // RCL
		for ; n > 0; n-- {
			oldCF := b2ui32(p.CF)
			p.CF = val&w.sign != 0
			val = ((val << 1) | oldCF) & w.mask
		}
		p.OF = b2ui32((val&w.sign != 0) != p.CF)
	case 0x18: // RCR
		for ; n > 0; n-- {
			oldCF := b2ui32(p.CF)
			p.CF = val&1 != 0
			val = (val >> 1) | (oldCF * w.sign)
		}
		p.OF = b2ui32((val&(w.sign>>1) != 0) != (val&w.sign != 0))
	case 0x20, 0x30: // SHL
		if n > w.bits() {
			p.CF = false
			val = 0
		} else {
			p.CF = val&(w.carry>>n) != 0
			val = (val << n) & w.mask
		}
		p.OF = b2ui32((val&w.sign != 0) != p.CF)
		p.updateFlagsSZP(w, val)
	case 0x28: // SHR
		if n > w.bits() {
			p.CF = false
			val = 0
		} else {
			p.CF = (val>>(n-1))&1 != 0
			val >>= n
		}
		p.updateFlagsSZP(w, val)
	case 0x38: // SAR
		// The carry is sampled from the sign extended low byte for both widths.
		p.CF = (int8(val)>>(n-1))&1 != 0
		for ; n > 0; n-- {
			val = (val >> 1) | (val & w.sign)
		}
		p.updateFlagsSZP(w, val)
	}
	return val
}
