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

package ram

import (
	"crypto/rand"
	"fmt"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral"
)

const MaxSize = 0x100000 // 1MB

// Device is read/write memory starting at address zero. With Mirror set a
// smaller, power of two sized RAM repeats over the whole address space.
type Device struct {
	Size   int  // Defaults to MaxSize.
	Mirror bool // Repeat the contents over the full 1MB.
	Fill   byte // Value stored in every cell on reset.
	Random bool // Scramble memory on reset instead of filling it.

	mem  []byte
	mask memory.Pointer
}

func (m *Device) Install(p peripheral.Machine) error {
	if m.Size == 0 {
		m.Size = MaxSize
	}
	if m.Size < 0 || m.Size > MaxSize {
		return fmt.Errorf("invalid RAM size: %d", m.Size)
	}
	if m.Mirror && m.Size&(m.Size-1) != 0 {
		return fmt.Errorf("mirrored RAM size must be a power of two: %d", m.Size)
	}

	m.mem = make([]byte, m.Size)
	m.mask = memory.Pointer(m.Size - 1)
	m.Reset()

	if m.Mirror {
		return p.InstallMemoryDevice(m, 0x0, memory.AddressMask)
	}
	return p.InstallMemoryDevice(m, 0x0, m.mask)
}

func (m *Device) Name() string {
	return "RAM"
}

func (m *Device) Reset() {
	if m.Random {
		rand.Read(m.mem)
		return
	}
	for i := range m.mem {
		m.mem[i] = m.Fill
	}
}

func (m *Device) Step(int) error {
	return nil
}

func (m *Device) ReadByte(addr memory.Pointer) byte {
	return m.mem[addr&m.mask]
}

func (m *Device) WriteByte(addr memory.Pointer, data byte) {
	m.mem[addr&m.mask] = data
}
