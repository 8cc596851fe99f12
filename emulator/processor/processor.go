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

import (
	"errors"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
)

type Stats struct {
	NumInterrupts   uint32
	NumInstructions uint64
	RX, TX          uint64
}

var ErrCPUHalt = errors.New("CPU HALT")

// Bus is the byte level view of memory and I/O space the processor runs against.
type Bus interface {
	memory.Memory
	memory.IO
}

// InterruptNotifier can optionally be implemented by a Bus. It is called
// after an interrupt frame has been pushed and CS:IP points to the handler.
type InterruptNotifier interface {
	NotifyInterrupt(n byte)
}

// InterruptHandler services a software interrupt on the host side. It runs
// once the processor has entered the handler, so register writes are seen by
// the guest code at the vector.
type InterruptHandler interface {
	HandleInterrupt(n int) error
}

type Debug interface {
	GetStats() Stats
}

type Processor interface {
	Debug

	Reset()
	Step() error
	Halted() bool
	RaiseIRQ(line int)

	GetRegisters() *Registers
	StackWord(disp uint16) uint16

	ReadByte(addr memory.Pointer) byte
	WriteByte(addr memory.Pointer, data byte)
	ReadWord(addr memory.Pointer) uint16
	WriteWord(addr memory.Pointer, data uint16)
}
