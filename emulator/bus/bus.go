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

// Package bus routes the processor's memory and port accesses to the
// peripherals mapped over them.
package bus

import (
	"errors"
	"fmt"
	"log"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
)

// MaxPeripherals is the number of device slots in each map. Slot 0 is
// reserved for the dummy device.
const MaxPeripherals = 32

var (
	ErrNoDevice         = errors.New("could not find peripheral")
	ErrInvalidInterrupt = errors.New("invalid interrupt number")
)

type Bus struct {
	peripherals  []peripheral.Peripheral
	cpu          processor.Processor
	interceptors [0x100]processor.InterruptHandler

	iomap         [0x10000]byte
	ioPeripherals [MaxPeripherals]memory.IO

	mmap           [0x100000]byte
	memPeripherals [MaxPeripherals]memory.Memory
}

// New creates a bus with every address and port mapped to logging dummy
// devices. Peripherals get their slots here and map themselves in Attach.
func New(peripherals []peripheral.Peripheral) (*Bus, error) {
	if len(peripherals) >= MaxPeripherals {
		return nil, fmt.Errorf("too many peripherals: %d", len(peripherals))
	}
	b := &Bus{peripherals: peripherals}

	dummyIO := &memory.DummyIO{}
	for i := range b.ioPeripherals[:] {
		b.ioPeripherals[i] = dummyIO
	}

	dummyMem := &memory.DummyMemory{}
	for i := range b.memPeripherals[:] {
		b.memPeripherals[i] = dummyMem
	}

	for i := 1; i <= len(peripherals); i++ {
		if dev, ok := peripherals[i-1].(memory.IO); ok {
			b.ioPeripherals[i] = dev
		}
		if dev, ok := peripherals[i-1].(memory.Memory); ok {
			b.memPeripherals[i] = dev
		}
	}
	return b, nil
}

// Attach connects the processor and installs all peripherals in order.
// Later peripherals override the mappings of earlier ones.
func (b *Bus) Attach(p processor.Processor) error {
	b.cpu = p
	for _, d := range b.peripherals {
		if err := d.Install(b); err != nil {
			return fmt.Errorf("failed to install %s: %w", d.Name(), err)
		}
	}
	return nil
}

// Mute silences logging of unmapped accesses.
func (b *Bus) Mute(mute bool) {
	b.ioPeripherals[0].(*memory.DummyIO).Mute = mute
	b.memPeripherals[0].(*memory.DummyMemory).Mute = mute
}

func (b *Bus) Processor() processor.Processor {
	return b.cpu
}

func (b *Bus) Peripherals() []peripheral.Peripheral {
	return b.peripherals
}

func (b *Bus) Reset() {
	for _, d := range b.peripherals {
		d.Reset()
	}
}

// Step advances every peripheral by the given number of instructions.
func (b *Bus) Step(steps int) error {
	for _, d := range b.peripherals {
		if err := d.Step(steps); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) Close() {
	for _, d := range b.peripherals {
		if cd, ok := d.(peripheral.PeripheralCloser); ok {
			if err := cd.Close(); err != nil {
				log.Print("Failed to close peripheral: ", err)
			}
		}
	}
}

func (b *Bus) GetMappedMemoryDevice(addr memory.Pointer) memory.Memory {
	return b.memPeripherals[b.mmap[addr&memory.AddressMask]]
}

// Peek reads addr from the device mapped over it. Unmapped addresses read
// as 0xFF without going through the dummy device.
func (b *Bus) Peek(addr memory.Pointer) byte {
	addr &= memory.AddressMask
	if b.mmap[addr] == 0 {
		return 0xFF
	}
	return b.GetMappedMemoryDevice(addr).ReadByte(addr)
}

type view struct {
	b *Bus
}

func (v view) ReadByte(addr memory.Pointer) byte {
	return v.b.Peek(addr)
}

func (view) WriteByte(memory.Pointer, byte) {
}

// View is a read only window on memory for debuggers. Reads are not counted
// by the processor and writes are dropped.
func (b *Bus) View() memory.Memory {
	return view{b}
}

func (b *Bus) GetMappedIODevice(port uint16) memory.IO {
	return b.ioPeripherals[b.iomap[port]]
}

func (b *Bus) In(port uint16) byte {
	return b.ioPeripherals[b.iomap[port]].In(port)
}

func (b *Bus) Out(port uint16, data byte) {
	b.ioPeripherals[b.iomap[port]].Out(port, data)
}

func (b *Bus) ReadByte(addr memory.Pointer) byte {
	addr &= memory.AddressMask
	return b.memPeripherals[b.mmap[addr]].ReadByte(addr)
}

func (b *Bus) WriteByte(addr memory.Pointer, data byte) {
	addr &= memory.AddressMask
	b.memPeripherals[b.mmap[addr]].WriteByte(addr, data)
}

// NotifyInterrupt runs the host handler installed for vector n, if any.
func (b *Bus) NotifyInterrupt(n byte) {
	if h := b.interceptors[n]; h != nil {
		if err := h.HandleInterrupt(int(n)); err != nil {
			log.Printf("Interrupt handler 0x%X failed: %v", n, err)
		}
	}
}

func (b *Bus) InstallInterruptHandler(num int, handler processor.InterruptHandler) error {
	if num < 0 || num > 0xFF {
		return ErrInvalidInterrupt
	}
	b.interceptors[num] = handler
	return nil
}

func (b *Bus) InstallMemoryDevice(device memory.Memory, from, to memory.Pointer) error {
	if to > memory.AddressMask || from > to {
		return fmt.Errorf("invalid memory range %v-%v", from, to)
	}
	for i, d := range b.memPeripherals[:] {
		if d == device {
			for from <= to {
				b.mmap[from] = byte(i)
				from++
			}
			return nil
		}
	}
	return ErrNoDevice
}

func (b *Bus) InstallIODevice(device memory.IO, from, to uint16) error {
	if from > to {
		return fmt.Errorf("invalid port range 0x%X-0x%X", from, to)
	}
	for i, d := range b.ioPeripherals[:] {
		if d == device {
			for port := int(from); port <= int(to); port++ {
				b.iomap[port] = byte(i)
			}
			return nil
		}
	}
	return ErrNoDevice
}

func (b *Bus) InstallIODeviceAt(device memory.IO, port ...uint16) error {
	for _, a := range port {
		if err := b.InstallIODevice(device, a, a); err != nil {
			return err
		}
	}
	return nil
}
