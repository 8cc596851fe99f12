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
	"testing"

	"github.com/matryer/is"
)

func TestNewPointer(t *testing.T) {
	is := is.New(t)

	is.Equal(NewPointer(0, 0), Pointer(0))
	is.Equal(NewPointer(0xF000, 0xFFF0), Pointer(0xFFFF0))
	is.Equal(NewPointer(0x1234, 0x0010), Pointer(0x12350))

	// Addresses above 1MB wrap like on an 8086.
	is.Equal(NewPointer(0xFFFF, 0x0010), Pointer(0))
	is.Equal(NewPointer(0xFFFF, 0xFFFF), Pointer(0xFFEF))
}

func TestAddress(t *testing.T) {
	is := is.New(t)

	a := NewAddress(0xB800, 0xFFFE)
	is.Equal(a.Segment(), uint16(0xB800))
	is.Equal(a.Offset(), uint16(0xFFFE))
	is.Equal(a.String(), "B800:FFFE")

	b := a.AddInt(4)
	is.Equal(b.Segment(), uint16(0xB800))
	is.Equal(b.Offset(), uint16(2))
	is.Equal(b.Pointer(), NewPointer(0xB800, 2))
}

func TestDummyDevices(t *testing.T) {
	is := is.New(t)

	io := &DummyIO{Mute: true}
	is.Equal(io.In(0x3F8), byte(0xFF))
	io.Out(0x3F8, 0x41)

	mem := &DummyMemory{Mute: true}
	is.Equal(mem.ReadByte(0xA0000), byte(0xFF))
	mem.WriteByte(0xA0000, 1)
}

func TestParseAddress(t *testing.T) {
	is := is.New(t)

	tests := []struct {
		in   string
		want Address
		ok   bool
	}{
		{"F000:FFF0", NewAddress(0xF000, 0xFFF0), true},
		{"0x0050:0h", NewAddress(0x50, 0), true},
		{"12345", NewAddress(0x1234, 0x5), true},
		{"7C00h", NewAddress(0x7C0, 0), true},
		{"100000", 0, false},
		{"1:", 0, false},
		{":1", 0, false},
		{"xyz", 0, false},
	}

	for _, tt := range tests {
		got, err := ParseAddress(tt.in)
		is.Equal(err == nil, tt.ok) // error state
		if tt.ok {
			is.Equal(got, tt.want)
		}
	}
}
