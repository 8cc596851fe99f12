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

// Package emulator assembles a processor, a bus and a small set of
// peripherals into something that can run a program image.
package emulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/andreas-jonsson/i186-core/emulator/bus"
	"github.com/andreas-jonsson/i186-core/emulator/debug"
	"github.com/andreas-jonsson/i186-core/emulator/loader"
	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral/disk"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral/ram"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral/rom"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral/timer"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
	"github.com/andreas-jonsson/i186-core/emulator/processor/cpu"
	"github.com/spf13/afero"
)

// DefaultFill is what RAM holds before an image is loaded. 0x90 is NOP.
const DefaultFill = 0x90

// DefaultTimerPort is where channel 0 of the PC timer sits.
const DefaultTimerPort = 0x40

// ctxPollInterval is the number of instructions between cancellation checks.
const ctxPollInterval = 0x1000

type Config struct {
	Image       string
	Format      loader.Format
	LoadAddress memory.Pointer

	// BIOS is an optional ROM image mapped so it ends at the top of memory.
	BIOS string

	// Entry overrides CS:IP after reset. Without it the processor starts
	// at the reset vector when a BIOS is present and at the load address
	// otherwise.
	Entry *memory.Address

	RAMSize int
	Mirror  bool
	Fill    byte

	Disks     []string
	BootDrive byte

	Steps          uint64 // Instruction budget for Run, 0 is unlimited.
	TimerInterval  int
	TimerFrequency float64
	TimerLine      int
	TimerPort      uint16  // Divisor port of the timer, 0 leaves it unmapped.
	MIPS           float64 // Speed limit, 0 runs as fast as possible.

	Trace     io.Writer
	TraceRegs bool
	Mute      bool
}

type Emulator struct {
	cfg   Config
	fs    afero.Fs
	bus   *bus.Bus
	cpu   *cpu.CPU
	timer *timer.Device
	disk  *disk.Device
	image loader.Range
	stats processor.Stats
	disks []afero.File
}

// New builds the machine described by cfg. Files are opened through fs.
func New(cfg Config, fs afero.Fs) (*Emulator, error) {
	e := &Emulator{cfg: cfg, fs: fs}

	peripherals := []peripheral.Peripheral{
		&ram.Device{Size: cfg.RAMSize, Mirror: cfg.Mirror, Fill: cfg.Fill}, // Needs to go first since it maps the full memory range.
	}

	if cfg.BIOS != "" {
		img, err := loader.ReadImage(fs, cfg.BIOS, loader.Binary)
		if err != nil {
			return nil, err
		}
		if len(img) > ram.MaxSize {
			return nil, fmt.Errorf("%s: BIOS image too large (%d bytes)", cfg.BIOS, len(img))
		}
		peripherals = append(peripherals, &rom.Device{
			RomName: "BIOS",
			Base:    memory.Pointer(ram.MaxSize - len(img)),
			Reader:  bytes.NewReader(img),
		})
	}

	if cfg.TimerInterval > 0 || cfg.TimerFrequency > 0 || cfg.TimerPort != 0 {
		e.timer = &timer.Device{
			Line:      cfg.TimerLine,
			Interval:  cfg.TimerInterval,
			Frequency: cfg.TimerFrequency,
			Port:      cfg.TimerPort,
		}
		peripherals = append(peripherals, e.timer)
	}

	if len(cfg.Disks) > 0 {
		e.disk = &disk.Device{BootDrive: cfg.BootDrive}
		for i, name := range cfg.Disks {
			fp, err := fs.OpenFile(name, os.O_RDWR, 0644)
			if err != nil {
				e.closeDisks()
				return nil, err
			}
			e.disks = append(e.disks, fp)

			// Drives 0-1 are floppies, the rest are hard drives.
			dnum := byte(i)
			if i > 1 {
				dnum = 0x80 + byte(i-2)
			}
			if err := e.disk.Insert(dnum, fp); err != nil {
				e.closeDisks()
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		peripherals = append(peripherals, e.disk)
	}

	b, err := bus.New(peripherals)
	if err != nil {
		e.closeDisks()
		return nil, err
	}
	b.Mute(cfg.Mute)

	e.bus = b
	e.cpu = cpu.New(b)
	if cfg.Trace != nil {
		tr := debug.NewTracer(cfg.Trace)
		tr.Registers = cfg.TraceRegs
		tr.Memory = b.View()
		e.cpu.SetTracer(tr)
	}

	if err := b.Attach(e.cpu); err != nil {
		e.closeDisks()
		return nil, err
	}
	if err := e.Reset(); err != nil {
		e.closeDisks()
		return nil, err
	}
	return e, nil
}

// Reset restores every peripheral, reloads the image and puts the processor
// at its entry point.
func (e *Emulator) Reset() error {
	e.bus.Reset()
	e.cpu.Reset()

	if e.cfg.Image != "" {
		r, err := loader.Load(e.fs, e.bus, e.cfg.Image, e.cfg.Format, e.cfg.LoadAddress)
		if err != nil {
			return err
		}
		e.image = r
		log.Printf("Loaded %s at %v (%d bytes)", e.cfg.Image, r, r.Len())
	}

	entry := e.cfg.Entry
	if entry == nil && e.cfg.BIOS == "" {
		a := memory.NewAddress(uint16(e.cfg.LoadAddress>>4), uint16(e.cfg.LoadAddress&0xF))
		entry = &a
	}
	if entry != nil {
		regs := e.cpu.GetRegisters()
		regs.SetCS(entry.Segment())
		regs.IP = entry.Offset()
	}
	return nil
}

func (e *Emulator) CPU() *cpu.CPU {
	return e.cpu
}

func (e *Emulator) Processor() processor.Processor {
	return e.cpu
}

// Memory is a read only view of the bus that leaves the processor counters
// alone.
func (e *Emulator) Memory() memory.Memory {
	return e.bus.View()
}

func (e *Emulator) Bus() *bus.Bus {
	return e.bus
}

// Image is the memory range covered by the loaded program.
func (e *Emulator) Image() loader.Range {
	return e.image
}

// Stats returns the counters accumulated since the emulator was created.
func (e *Emulator) Stats() processor.Stats {
	e.collect()
	return e.stats
}

func (e *Emulator) collect() processor.Stats {
	s := e.cpu.GetStats()
	e.stats.NumInstructions += s.NumInstructions
	e.stats.NumInterrupts += s.NumInterrupts
	e.stats.RX += s.RX
	e.stats.TX += s.TX
	return s
}

// Step executes one instruction and advances the peripherals.
func (e *Emulator) Step() error {
	if err := e.cpu.Step(); err != nil {
		return err
	}
	return e.bus.Step(1)
}

// Run steps the processor until it halts, the instruction budget is spent or
// ctx is cancelled. A halt is a normal stop and is not reported as an error.
func (e *Emulator) Run(ctx context.Context) (run processor.Stats, err error) {
	var (
		executed uint64
		limit    int64
	)
	if e.cfg.MIPS > 0 {
		limit = int64(1000000000 / (1000000 * e.cfg.MIPS))
	}
	defer func() { run = e.collect() }()

	t := time.Now().UnixNano()
	for e.cfg.Steps == 0 || executed < e.cfg.Steps {
		if executed%ctxPollInterval == 0 {
			select {
			case <-ctx.Done():
				return run, ctx.Err()
			default:
			}
		}

		err = e.Step()
		executed++
		if errors.Is(err, processor.ErrCPUHalt) {
			regs := e.cpu.GetRegisters()
			log.Printf("CPU halted at %v", memory.NewAddress(regs.CS(), regs.IP))
			return run, nil
		} else if err != nil {
			return run, err
		}

		if limit > 0 {
			for time.Now().UnixNano()-t < limit*int64(executed) {
				runtime.Gosched()
			}
		}
	}
	return run, nil
}

func (e *Emulator) closeDisks() {
	for _, fp := range e.disks {
		if err := fp.Close(); err != nil {
			log.Print("Failed to close disk image: ", err)
		}
	}
	e.disks = nil
}

func (e *Emulator) Close() {
	e.bus.Close()
	e.closeDisks()
}
