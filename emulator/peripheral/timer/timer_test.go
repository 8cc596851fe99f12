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

package timer

import (
	"testing"
	"time"

	"github.com/andreas-jonsson/i186-core/emulator/bus"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral"
	"github.com/andreas-jonsson/i186-core/emulator/processor/cpu"
	"github.com/matryer/is"
)

func install(t *testing.T, d *Device) (*bus.Bus, *cpu.CPU) {
	b, err := bus.New([]peripheral.Peripheral{d})
	if err != nil {
		t.Fatal(err)
	}
	b.Mute(true)
	p := cpu.New(b)
	if err := b.Attach(p); err != nil {
		t.Fatal(err)
	}
	return b, p
}

func TestInterval(t *testing.T) {
	is := is.New(t)

	d := &Device{Interval: 3, Line: 1}
	_, p := install(t, d)

	is.NoErr(d.Step(2))
	is.Equal(p.PendingIRQs(), uint16(0))
	is.NoErr(d.Step(1))
	is.Equal(p.PendingIRQs(), uint16(2))

	is.NoErr(d.Step(7))
	is.Equal(d.Ticks(), uint16(3))
}

func TestFrequency(t *testing.T) {
	is := is.New(t)

	now := time.Unix(0, 0)
	d := &Device{Port: 0x40, Now: func() time.Time { return now }}
	b, p := install(t, d)

	// Divisor 11932 gives roughly 100Hz.
	b.Out(0x40, byte(11932&0xFF))
	b.Out(0x40, byte(11932>>8))
	is.True(d.Frequency > 99.9 && d.Frequency < 100.1)

	now = now.Add(5 * time.Millisecond)
	is.NoErr(d.Step(1))
	is.Equal(p.PendingIRQs(), uint16(0))

	now = now.Add(6 * time.Millisecond)
	is.NoErr(d.Step(1))
	is.Equal(p.PendingIRQs(), uint16(1))

	is.Equal(b.In(0x40), byte(1))
	is.Equal(b.In(0x40), byte(0))
}

func TestZeroDivisor(t *testing.T) {
	is := is.New(t)

	d := &Device{Port: 0x40}
	b, _ := install(t, d)
	b.Out(0x40, 0)
	b.Out(0x40, 0)
	is.Equal(d.Frequency, InputClock/65536.0)
}
