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

package loader

import (
	"errors"
	"os"
	"testing"

	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/matryer/is"
	"github.com/spf13/afero"
)

type flatMemory [0x100000]byte

func (m *flatMemory) ReadByte(addr memory.Pointer) byte {
	return m[addr]
}

func (m *flatMemory) WriteByte(addr memory.Pointer, data byte) {
	m[addr] = data
}

func TestLoadBinary(t *testing.T) {
	is := is.New(t)

	fs := afero.NewMemMapFs()
	is.NoErr(afero.WriteFile(fs, "boot.bin", []byte{0xEA, 0x00, 0x7C, 0x00, 0x00}, 0644))

	mem := &flatMemory{}
	r, err := Load(fs, mem, "boot.bin", Auto, memory.NewPointer(0xF000, 0xFFF0))
	is.NoErr(err)
	is.Equal(r, Range{Start: 0xFFFF0, End: 0xFFFF5})
	is.Equal(r.Len(), 5)
	is.Equal(r.String(), "FFFF0h..FFFF5h")
	is.Equal(mem[0xFFFF0], byte(0xEA))
	is.Equal(mem[0xFFFF2], byte(0x7C))
}

func TestLoadHex(t *testing.T) {
	is := is.New(t)

	fs := afero.NewMemMapFs()
	is.NoErr(afero.WriteFile(fs, "prog.hex", []byte("b8\n34\n12\nf4\n\n90\n"), 0644))

	mem := &flatMemory{}
	r, err := Load(fs, mem, "prog.hex", Auto, 0x100)
	is.NoErr(err)
	is.Equal(r.Len(), 4)
	is.Equal(mem[0x100:0x104], []byte{0xB8, 0x34, 0x12, 0xF4})

	// Parsing stops at the blank line.
	is.Equal(mem[0x104], byte(0))
}

func TestWrapAround(t *testing.T) {
	is := is.New(t)

	fs := afero.NewMemMapFs()
	is.NoErr(afero.WriteFile(fs, "a.bin", []byte{1, 2, 3}, 0644))

	mem := &flatMemory{}
	_, err := Load(fs, mem, "a.bin", Binary, memory.AddressMask)
	is.NoErr(err)
	is.Equal(mem[memory.AddressMask], byte(1))
	is.Equal(mem[0], byte(2))
	is.Equal(mem[1], byte(3))
}

func TestDecodeHex(t *testing.T) {
	is := is.New(t)

	img, err := Decode([]byte("  0a  \r\nff ; trailing\n7\nzz\n01\n"), Hex)
	is.NoErr(err)
	is.Equal(img, []byte{0x0A, 0xFF, 0x07})
}

func TestErrors(t *testing.T) {
	is := is.New(t)

	fs := afero.NewMemMapFs()
	_, err := Load(fs, &flatMemory{}, "missing.bin", Auto, 0)
	is.True(errors.Is(err, os.ErrNotExist))

	is.NoErr(afero.WriteFile(fs, "a.img", []byte{1}, 0644))
	_, err = Load(fs, &flatMemory{}, "a.img", "srec", 0)
	is.True(errors.Is(err, ErrUnknownFormat))

	is.Equal(FormatOf("ROM.HEX"), Hex)
	is.Equal(FormatOf("rom.bin"), Binary)
}
