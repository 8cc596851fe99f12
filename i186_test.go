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

package main

import (
	"testing"

	"github.com/andreas-jonsson/i186-core/emulator"
	"github.com/andreas-jonsson/i186-core/emulator/loader"
	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/matryer/is"
)

func TestConfig(t *testing.T) {
	is := is.New(t)

	cli := &CLI{RAM: 0x2000, Mirror: true, Fill: 0x90, Timer: 100, Port: emulator.DefaultTimerPort, Disk: []string{"a.img"}, Boot: 1}
	cfg, err := cli.config(&ImageFlags{Image: "prog.hex", Format: "auto", Load: "0050:0000"})
	is.NoErr(err)

	is.Equal(cfg.Image, "prog.hex")
	is.Equal(cfg.Format, loader.Auto)
	is.Equal(cfg.LoadAddress, memory.Pointer(0x500))
	is.True(cfg.Entry == nil)
	is.Equal(cfg.RAMSize, 0x2000)
	is.True(cfg.Mirror)
	is.Equal(cfg.Fill, byte(0x90))
	is.Equal(cfg.TimerInterval, 100)
	is.Equal(cfg.TimerPort, uint16(0x40))
	is.Equal(cfg.Disks, []string{"a.img"})
	is.Equal(cfg.BootDrive, byte(1))
}

func TestConfigEntry(t *testing.T) {
	is := is.New(t)

	cli := &CLI{RAM: 0x100000, BIOS: "bios.bin"}
	cfg, err := cli.config(&ImageFlags{Format: "bin", Load: "0", Entry: "F000:E05B"})
	is.NoErr(err)

	is.Equal(cfg.Format, loader.Binary)
	is.Equal(*cfg.Entry, memory.NewAddress(0xF000, 0xE05B))
}

func TestConfigErrors(t *testing.T) {
	is := is.New(t)

	tests := []struct {
		cli CLI
		img ImageFlags
	}{
		{CLI{RAM: 0x100000}, ImageFlags{Format: "auto", Load: "0"}},                                // nothing to run
		{CLI{RAM: 0}, ImageFlags{Image: "a.bin", Format: "auto", Load: "0"}},                       // no RAM
		{CLI{RAM: 0x200000}, ImageFlags{Image: "a.bin", Format: "auto", Load: "0"}},                // too much RAM
		{CLI{RAM: 0x100000}, ImageFlags{Image: "a.bin", Format: "auto", Load: "zz"}},               // bad load address
		{CLI{RAM: 0x100000}, ImageFlags{Image: "a.bin", Format: "auto", Load: "0", Entry: "1:"}},   // bad entry
		{CLI{RAM: 0x100000, Port: 0x10000}, ImageFlags{Image: "a.bin", Format: "auto", Load: "0"}}, // bad timer port
	}

	for _, tt := range tests {
		_, err := tt.cli.config(&tt.img)
		is.True(err != nil)
	}
}
