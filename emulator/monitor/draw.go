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
	"fmt"
	"strings"

	"github.com/andreas-jonsson/i186-core/emulator/debug"
	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/gdamore/tcell"
)

var (
	styleDefault = tcell.StyleDefault
	styleTitle   = tcell.StyleDefault.Bold(true)
	styleCurrent = tcell.StyleDefault.Reverse(true)
	styleBreak   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

func (m *Monitor) print(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		m.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// Draw renders registers, flags, the code at CS:IP, the memory window and
// the command line.
func (m *Monitor) Draw() {
	m.screen.Clear()

	mem := m.machine.Memory()
	regs := m.machine.Processor().GetRegisters()

	m.print(0, 0, styleTitle, "Registers")
	m.print(0, 1, styleDefault, fmt.Sprintf("AX %04X  BX %04X  CX %04X  DX %04X", regs.AX(), regs.BX(), regs.CX(), regs.DX()))
	m.print(0, 2, styleDefault, fmt.Sprintf("SP %04X  BP %04X  SI %04X  DI %04X", regs.SP(), regs.BP(), regs.SI(), regs.DI()))
	m.print(0, 3, styleDefault, fmt.Sprintf("CS %04X  DS %04X  ES %04X  SS %04X  IP %04X", regs.CS(), regs.DS(), regs.ES(), regs.SS(), regs.IP))
	m.print(0, 4, styleDefault, fmt.Sprintf("FL %04X  %s", regs.Compress(), regs.Letters()))

	y := 6
	m.print(0, y, styleTitle, "Code")
	ip := regs.IP
	for i := 0; i < codeLines; i++ {
		text, n := debug.Disassemble(mem, regs.CS(), ip)

		var raw strings.Builder
		for j := 0; j < n; j++ {
			fmt.Fprintf(&raw, "%02X", mem.ReadByte(memory.NewPointer(regs.CS(), ip+uint16(j))))
		}

		mark, style := "  ", styleDefault
		if m.breakpointAt(memory.NewPointer(regs.CS(), ip)) >= 0 {
			mark, style = "* ", styleBreak
		}
		if i == 0 {
			style = styleCurrent
		}
		m.print(0, y+1+i, style, fmt.Sprintf("%s%v  %-14s %s", mark, memory.NewAddress(regs.CS(), ip), raw.String(), text))
		ip += uint16(n)
	}

	y += codeLines + 2
	m.print(0, y, styleTitle, "Memory")
	for i := 0; i < memoryLines; i++ {
		addr := (m.memAddr + memory.Pointer(i*memoryWidth)) & memory.AddressMask
		var hex, ascii strings.Builder
		for j := 0; j < memoryWidth; j++ {
			b := mem.ReadByte((addr + memory.Pointer(j)) & memory.AddressMask)
			fmt.Fprintf(&hex, "%02X ", b)
			if b < 0x20 || b > 0x7E {
				b = '.'
			}
			ascii.WriteByte(b)
		}
		m.print(0, y+1+i, styleDefault, fmt.Sprintf("%05X  %s|%s|", uint32(addr), hex.String(), ascii.String()))
	}

	y += memoryLines + 2
	m.print(0, y, styleStatus, m.status)
	m.print(0, y+1, styleDefault, "> "+string(m.input))
	m.screen.Show()
}
