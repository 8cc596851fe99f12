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

package memory

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// AddressMask limits linear addresses to the 1MB real mode space.
const AddressMask = 0xFFFFF

// Address is a segment:offset pair packed as segment<<16 | offset.
type Address uint32

func NewAddress(seg, offset uint16) Address {
	return (Address(seg) << 16) | Address(offset)
}

func (a Address) String() string {
	return fmt.Sprintf("%04X:%04X", a.Segment(), a.Offset())
}

func (a Address) Segment() uint16 {
	return uint16(a >> 16)
}

func (a Address) Offset() uint16 {
	return uint16(a & 0xFFFF)
}

func (a Address) Pointer() Pointer {
	return NewPointer(a.Segment(), a.Offset())
}

// AddInt moves the offset and wraps inside the segment.
func (a Address) AddInt(i int) Address {
	return (a & 0xFFFF0000) | Address(a.Offset()+uint16(i))
}

func parseHex(s string, bits int) (uint64, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.ToLower(s), "0x"), "h")
	return strconv.ParseUint(s, 16, bits)
}

// ParseAddress reads a seg:off pair in hex. A plain value is taken as a
// linear address and normalized to a segment with an offset below 0x10.
func ParseAddress(s string) (Address, error) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		seg, err := parseHex(s[:i], 16)
		if err != nil {
			return 0, fmt.Errorf("invalid segment: %s", s[:i])
		}
		off, err := parseHex(s[i+1:], 16)
		if err != nil {
			return 0, fmt.Errorf("invalid offset: %s", s[i+1:])
		}
		return NewAddress(uint16(seg), uint16(off)), nil
	}

	v, err := parseHex(s, 32)
	if err != nil || v > AddressMask {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	return NewAddress(uint16(v>>4), uint16(v&0xF)), nil
}

// Pointer is a 20-bit linear address.
type Pointer uint32

// NewPointer translates segment:offset the way the processor does,
// wrapping around at 1MB.
func NewPointer(seg, offset uint16) Pointer {
	return (Pointer(seg)*0x10 + Pointer(offset)) & AddressMask
}

func (p Pointer) String() string {
	return fmt.Sprintf("0x%05X", uint32(p))
}

type Memory interface {
	ReadByte(addr Pointer) byte
	WriteByte(addr Pointer, data byte)
}

type IO interface {
	In(port uint16) byte
	Out(port uint16, data byte)
}

type DummyIO struct {
	Mute bool
}

func (m *DummyIO) In(port uint16) byte {
	if !m.Mute {
		log.Printf("reading unmapped IO port: 0x%X", port)
	}
	return 0xFF
}

func (m *DummyIO) Out(port uint16, data byte) {
	if !m.Mute {
		log.Printf("writing unmapped IO port: 0x%X <= 0x%X", port, data)
	}
}

type DummyMemory struct {
	Mute bool
}

func (m *DummyMemory) ReadByte(addr Pointer) byte {
	if !m.Mute {
		log.Printf("reading unmapped memory: %v", addr)
	}
	return 0xFF
}

func (m *DummyMemory) WriteByte(addr Pointer, data byte) {
	if !m.Mute {
		log.Printf("writing unmapped memory: %v", addr)
	}
}
