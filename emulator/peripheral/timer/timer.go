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

// Package timer raises a periodic IRQ, either every N executed instructions
// or at a wall clock rate programmed the way channel 0 of an 8253 is.
package timer

import (
	"time"

	"github.com/andreas-jonsson/i186-core/emulator/peripheral"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
)

// InputClock is the PC timer crystal frequency in Hz.
const InputClock = 1193182

type Device struct {
	Line      int     // IRQ line to raise.
	Interval  int     // Instructions between ticks, 0 disables step counting.
	Frequency float64 // Wall clock rate in Hz, 0 disables it.
	Port      uint16  // Divisor port, low byte then high byte. 0 leaves it unmapped.

	Now func() time.Time

	cpu     processor.Processor
	steps   int
	last    time.Time
	ticks   uint16
	divisor uint16
	toggle  bool
}

func (m *Device) Install(p peripheral.Machine) error {
	m.cpu = p.Processor()
	if m.Now == nil {
		m.Now = time.Now
	}
	m.last = m.Now()
	if m.Port != 0 {
		return p.InstallIODeviceAt(m, m.Port)
	}
	return nil
}

func (m *Device) Name() string {
	return "Interval Timer"
}

func (m *Device) Reset() {
	m.steps = 0
	m.ticks = 0
	m.toggle = false
	if m.Now != nil {
		m.last = m.Now()
	}
}

// Ticks is the number of IRQs raised since reset, modulo 64K.
func (m *Device) Ticks() uint16 {
	return m.ticks
}

func (m *Device) Step(n int) error {
	if m.Interval > 0 {
		for m.steps += n; m.steps >= m.Interval; m.steps -= m.Interval {
			m.tick()
		}
	}

	if m.Frequency > 0 {
		now := m.Now()
		period := time.Duration(float64(time.Second) / m.Frequency)
		if now.Sub(m.last) >= period {
			m.last = now
			m.tick()
		}
	}
	return nil
}

func (m *Device) tick() {
	m.ticks++
	m.cpu.RaiseIRQ(m.Line)
}

// In returns the tick counter, low byte first.
func (m *Device) In(uint16) byte {
	v := m.ticks
	if m.toggle {
		v >>= 8
	}
	m.toggle = !m.toggle
	return byte(v)
}

// Out programs the divisor. A zero divisor means 65536.
func (m *Device) Out(_ uint16, data byte) {
	if m.toggle {
		m.divisor = (m.divisor & 0x00FF) | uint16(data)<<8
		effective := float64(m.divisor)
		if m.divisor == 0 {
			effective = 65536
		}
		m.Frequency = InputClock / effective
	} else {
		m.divisor = (m.divisor & 0xFF00) | uint16(data)
	}
	m.toggle = !m.toggle
}
