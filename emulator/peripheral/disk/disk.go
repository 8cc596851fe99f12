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

// Package disk services the BIOS disk interrupts on the host side. Sector
// data moves directly between the image and guest memory; the guest handler
// at the vector only has to return.
package disk

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral"
	"github.com/andreas-jonsson/i186-core/emulator/processor"
)

const (
	ServiceVector   = 0x13
	BootstrapVector = 0x19

	SectorSize = 512
)

var (
	ErrNoDisk      = errors.New("no disk")
	ErrHasDisk     = errors.New("has disk")
	ErrNoBootDrive = errors.New("no boot drive")
)

// BIOS data area bytes updated by the service.
var (
	biosLastStatus = memory.NewPointer(0x40, 0x74)
	biosNumHD      = memory.NewPointer(0x40, 0x75)
)

const (
	statusOK      = 0x00
	statusBadCmd  = 0x01
	statusNoSect  = 0x04
	statusNoDrive = 0xAA
)

type geometry struct {
	cylinders, heads, sectors uint16
}

// Floppy formats by largest image size, smallest first.
var floppyFormats = []struct {
	size int64
	geometry
}{
	{163840, geometry{40, 1, 8}},
	{368640, geometry{40, 2, 9}},
	{737280, geometry{80, 2, 9}},
	{1228800, geometry{80, 2, 15}},
	{1474560, geometry{80, 2, 18}},
}

func floppyGeometry(size int64) geometry {
	for _, f := range floppyFormats {
		if size <= f.size {
			return f.geometry
		}
	}
	return floppyFormats[len(floppyFormats)-1].geometry
}

type drive struct {
	geometry
	image io.ReadWriteSeeker
	hard  bool
}

// seek positions the image at a one based CHS sector.
func (d *drive) seek(c uint16, h, s byte) error {
	lba := (int64(c)*int64(d.heads)+int64(h))*int64(d.sectors) + int64(s) - 1
	_, err := d.image.Seek(lba*SectorSize, io.SeekStart)
	return err
}

type result struct {
	status byte
	carry  bool
}

type Device struct {
	BootDrive byte

	cpu    processor.Processor
	lock   sync.Mutex
	sector [SectorSize]byte
	numHD  byte

	drives [0x100]*drive
	last   [0x100]result
}

func (m *Device) Install(p peripheral.Machine) error {
	m.cpu = p.Processor()
	for _, n := range []int{ServiceVector, BootstrapVector} {
		if err := p.InstallInterruptHandler(n, m); err != nil {
			return err
		}
	}
	return nil
}

func (m *Device) Name() string {
	return "Disk Service"
}

func (m *Device) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.cpu != nil {
		m.cpu.WriteByte(biosNumHD, m.numHD)
	}
	m.last = [0x100]result{}
}

func (m *Device) Step(int) error {
	return nil
}

// Insert attaches an image to drive dnum. Drives from 0x80 are hard disks
// with 16 heads and 63 sectors per track; floppy geometry follows the image
// size.
func (m *Device) Insert(dnum byte, image io.ReadWriteSeeker) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.drives[dnum] != nil {
		return ErrHasDisk
	}

	size, err := image.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := image.Seek(0, io.SeekStart); err != nil {
		return err
	}

	d := &drive{image: image, hard: dnum >= 0x80}
	if d.hard {
		d.heads, d.sectors = 16, 63
		d.cylinders = uint16(size / (16 * 63 * SectorSize))
		if d.cylinders == 0 {
			d.cylinders = 1
		}
		m.numHD++
	} else {
		d.geometry = floppyGeometry(size)
	}
	m.drives[dnum] = d
	return nil
}

func (m *Device) Eject(dnum byte) (io.ReadWriteSeeker, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	d := m.drives[dnum]
	if d == nil {
		return nil, ErrNoDisk
	}
	if d.hard {
		m.numHD--
	}
	m.drives[dnum] = nil
	return d.image, nil
}

// Geometry reports cylinders, heads and sectors per track of drive dnum.
func (m *Device) Geometry(dnum byte) (cylinders, heads, sectors uint16, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if d := m.drives[dnum]; d != nil {
		return d.cylinders, d.heads, d.sectors, nil
	}
	return 0, 0, 0, ErrNoDisk
}

func (m *Device) HandleInterrupt(n int) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	switch n {
	case ServiceVector:
		m.service(m.cpu.GetRegisters())
		return nil
	case BootstrapVector:
		return m.bootstrap(m.cpu.GetRegisters())
	default:
		return fmt.Errorf("unexpected interrupt 0x%X", n)
	}
}

// bootstrap loads the boot sector to 0000:7C00 and passes the drive in DL.
func (m *Device) bootstrap(r *processor.Registers) error {
	d := m.drives[m.BootDrive]
	if d == nil {
		return ErrNoBootDrive
	}
	r.SetDL(m.BootDrive)
	r.SetAL(m.transfer(d, false, memory.NewAddress(0, 0x7C00), 0, 0, 1, 1))
	return nil
}

// transfer moves count sectors between the image and guest memory starting
// at the CHS position and returns how many whole sectors were moved.
func (m *Device) transfer(d *drive, write bool, addr memory.Address, c uint16, h, s, count byte) byte {
	if s == 0 || d.seek(c, h, s) != nil {
		return 0
	}

	var done byte
	for ; done < count; done++ {
		if write {
			for i := range m.sector {
				m.sector[i] = m.cpu.ReadByte(addr.Pointer())
				addr = addr.AddInt(1)
			}
			if n, err := d.image.Write(m.sector[:]); n != SectorSize || err != nil {
				break
			}
			continue
		}

		if _, err := io.ReadFull(d.image, m.sector[:]); err != nil {
			break
		}
		for _, v := range m.sector {
			m.cpu.WriteByte(addr.Pointer(), v)
			addr = addr.AddInt(1)
		}
	}
	return done
}

// readWrite serves AH=2 and AH=3 with CHS packed in CX and DH.
func (m *Device) readWrite(r *processor.Registers, write bool) result {
	d := m.drives[r.DL()]
	if d == nil {
		return result{statusBadCmd, true}
	}
	c := uint16(r.CH()) | uint16(r.CL()&0xC0)<<2
	count := r.AL()
	done := m.transfer(d, write, memory.NewAddress(r.ES(), r.BX()), c, r.DH(), r.CL()&0x3F, count)
	r.SetAL(done)
	if done < count {
		return result{statusNoSect, true}
	}
	return result{statusOK, false}
}

func (m *Device) parameters(r *processor.Registers) result {
	dl := r.DL()
	d := m.drives[dl]
	if d == nil {
		return result{statusNoDrive, true}
	}

	last := d.cylinders - 1
	r.SetCH(byte(last))
	r.SetCL(byte(d.sectors&0x3F) | byte(last>>8)<<6)
	r.SetDH(byte(d.heads - 1))
	if dl < 0x80 {
		r.SetBL(4)
		r.SetDL(2)
	} else {
		r.SetDL(m.numHD)
	}
	return result{statusOK, false}
}

// service dispatches on AH. Results go to AH and CF, which the guest stub
// returns with RETF 2 so the caller sees the new carry.
func (m *Device) service(r *processor.Registers) {
	// AH=8 replaces DL with the drive count.
	dl := r.DL()

	var res result
	switch ah := r.AH(); ah {
	case 0x00, 0x04, 0x05: // reset, verify, format
	case 0x01:
		res = m.last[dl]
		r.SetAH(res.status)
		r.CF = res.carry
		return
	case 0x02:
		res = m.readWrite(r, false)
	case 0x03:
		res = m.readWrite(r, true)
	case 0x08:
		res = m.parameters(r)
	default:
		log.Printf("Unsupported disk service: AH=0x%X", ah)
		res = result{statusBadCmd, true}
	}

	r.SetAH(res.status)
	r.CF = res.carry

	if dl&0x80 != 0 {
		m.cpu.WriteByte(biosLastStatus, res.status)
	}
	m.last[dl] = res
}
