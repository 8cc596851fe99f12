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

// Package monitor is an interactive terminal debugger for a running machine.
//
// Commands are typed at the prompt and executed with enter:
//
//	s [n]      step one or n instructions (an empty line steps once)
//	c          continue until a breakpoint, halt or key press
//	b [addr]   set a breakpoint at seg:off or a linear address, or list them
//	rb n       remove breakpoint n
//	cb         clear all breakpoints
//	m addr     move the memory window
//	r          reset the machine
//	q          quit
package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
	"github.com/gdamore/tcell"
)

var ErrQuit = errors.New("quit")

const (
	codeLines   = 10
	memoryLines = 8
	memoryWidth = 16

	// Instructions executed between checks for a key press while running.
	runPollInterval = 0x1000

	eventQueueSize = 64
)

// Machine is what the monitor drives.
type Machine interface {
	Step() error
	Reset() error
	Processor() processor.Processor

	// Memory is read by the code and memory windows. It should not have
	// side effects.
	Memory() memory.Memory
}

type Monitor struct {
	machine Machine
	screen  tcell.Screen

	breakpoints []memory.Pointer
	memAddr     memory.Pointer
	input       []rune
	status      string
	halted      bool

	events chan tcell.Event
	closed bool
}

// New creates a monitor drawing on screen. The screen must be initialized.
func New(screen tcell.Screen, m Machine) *Monitor {
	mon := &Monitor{
		machine: m,
		screen:  screen,
		status:  "Ready",
		events:  make(chan tcell.Event, eventQueueSize),
	}
	go mon.listen()
	return mon
}

// listen forwards screen events until the screen is finalized.
func (m *Monitor) listen() {
	for {
		ev := m.screen.PollEvent()
		m.events <- ev
		if ev == nil {
			return
		}
	}
}

func (m *Monitor) Breakpoints() []memory.Pointer {
	return m.breakpoints
}

func (m *Monitor) Status() string {
	return m.status
}

// Run handles key events until the user quits, in which case ErrQuit is
// returned.
func (m *Monitor) Run() error {
	m.screen.HideCursor()
	m.Draw()

	for !m.closed {
		switch ev := (<-m.events).(type) {
		case nil:
			return ErrQuit
		case *tcell.EventResize:
			m.screen.Sync()
		case *tcell.EventKey:
			if err := m.handleKey(ev); err != nil {
				return err
			}
		}
		m.Draw()
	}
	return ErrQuit
}

func (m *Monitor) handleKey(ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return ErrQuit
	case tcell.KeyEscape:
		m.input = m.input[:0]
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tcell.KeyEnter:
		cmd := string(m.input)
		m.input = m.input[:0]
		return m.Exec(cmd)
	case tcell.KeyRune:
		m.input = append(m.input, ev.Rune())
	}
	return nil
}

// Exec runs a single command line.
func (m *Monitor) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		m.step(1)
		return nil
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "q":
		return ErrQuit
	case "s":
		n := 1
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				m.status = "invalid step count: " + args[0]
				return nil
			}
			n = v
		}
		m.step(n)
	case "c":
		m.run()
	case "b":
		if len(args) == 0 {
			m.listBreakpoints()
			return nil
		}
		addr, err := ParseAddress(args[0])
		if err != nil {
			m.status = err.Error()
			return nil
		}
		m.breakpoints = append(m.breakpoints, addr)
		m.status = fmt.Sprintf("Breakpoint %d set at %v", len(m.breakpoints)-1, addr)
	case "rb":
		i := -1
		if len(args) > 0 {
			i, _ = strconv.Atoi(args[0])
		}
		if i < 0 || i >= len(m.breakpoints) {
			m.status = "no such breakpoint"
			return nil
		}
		m.status = fmt.Sprintf("Removed breakpoint %d at %v", i, m.breakpoints[i])
		m.breakpoints = append(m.breakpoints[:i], m.breakpoints[i+1:]...)
	case "cb":
		m.breakpoints = m.breakpoints[:0]
		m.status = "Breakpoints cleared"
	case "m":
		if len(args) == 0 {
			m.status = "missing address"
			return nil
		}
		addr, err := ParseAddress(args[0])
		if err != nil {
			m.status = err.Error()
			return nil
		}
		m.memAddr = addr
		m.status = fmt.Sprintf("Memory at %v", addr)
	case "r":
		if err := m.machine.Reset(); err != nil {
			m.status = err.Error()
			return nil
		}
		m.halted = false
		m.status = "Reset"
	default:
		m.status = "unknown command: " + cmd
	}
	return nil
}

func (m *Monitor) step(n int) {
	for i := 0; i < n; i++ {
		if !m.stepOne() {
			return
		}
	}
	m.status = fmt.Sprintf("Stepped %d", n)
}

func (m *Monitor) stepOne() bool {
	if m.halted {
		m.status = "CPU halted"
		return false
	}

	err := m.machine.Step()
	if errors.Is(err, processor.ErrCPUHalt) {
		m.halted = true
		m.status = "CPU halted"
		return false
	} else if err != nil {
		m.status = err.Error()
		return false
	}
	return true
}

// run continues until a breakpoint is reached, the processor stops or a
// key is pressed.
func (m *Monitor) run() {
	for n := 1; ; n++ {
		if !m.stepOne() {
			return
		}
		if i := m.breakpointAt(m.pc()); i >= 0 {
			m.status = fmt.Sprintf("Break %d at %v", i, m.breakpoints[i])
			return
		}
		if n%runPollInterval == 0 && m.interrupted() {
			m.status = fmt.Sprintf("Stopped after %d instructions", n)
			return
		}
	}
}

// interrupted consumes a pending event without blocking and reports whether
// it should stop a running machine.
func (m *Monitor) interrupted() bool {
	select {
	case ev := <-m.events:
		switch ev.(type) {
		case nil:
			m.closed = true
		case *tcell.EventResize:
			m.screen.Sync()
			return false
		}
		return true
	default:
		return false
	}
}

func (m *Monitor) pc() memory.Pointer {
	regs := m.machine.Processor().GetRegisters()
	return memory.NewPointer(regs.CS(), regs.IP)
}

func (m *Monitor) breakpointAt(addr memory.Pointer) int {
	for i, br := range m.breakpoints {
		if br == addr {
			return i
		}
	}
	return -1
}

func (m *Monitor) listBreakpoints() {
	if len(m.breakpoints) == 0 {
		m.status = "No breakpoints"
		return
	}
	var s []string
	for i, br := range m.breakpoints {
		s = append(s, fmt.Sprintf("%d:%v", i, br))
	}
	m.status = strings.Join(s, " ")
}

// ParseAddress accepts seg:off or a linear address, both in hex.
func ParseAddress(s string) (memory.Pointer, error) {
	a, err := memory.ParseAddress(s)
	if err != nil {
		return 0, err
	}
	return a.Pointer(), nil
}
