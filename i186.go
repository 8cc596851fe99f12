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
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/andreas-jonsson/i186-core/emulator"
	"github.com/andreas-jonsson/i186-core/emulator/debug"
	"github.com/andreas-jonsson/i186-core/emulator/loader"
	"github.com/andreas-jonsson/i186-core/emulator/memory"
	"github.com/andreas-jonsson/i186-core/emulator/monitor"
	"github.com/andreas-jonsson/i186-core/emulator/peripheral/ram"
	"github.com/andreas-jonsson/i186-core/version"
	"github.com/gdamore/tcell"
	"github.com/spf13/afero"
)

type CLI struct {
	BIOS   string   `name:"bios" env:"I186_BIOS" type:"existingfile" help:"BIOS ROM image mapped at the top of memory."`
	Disk   []string `name:"disk" help:"Disk image for the INT 13h service. Drives 0-1 are floppies, the rest hard drives."`
	Boot   int      `name:"boot" help:"Boot drive for INT 19h."`
	RAM    int      `name:"ram" default:"1048576" help:"RAM size in bytes."`
	Mirror bool     `name:"mirror" help:"Repeat RAM over the whole address space."`
	Fill   int      `name:"fill" default:"144" help:"Initial RAM contents."`
	Timer  int      `name:"timer" help:"Raise IRQ 0 every N instructions."`
	Hz     float64  `name:"timer-hz" help:"Raise IRQ 0 at this wall clock rate."`
	Port   int      `name:"timer-port" default:"64" help:"Timer divisor port, 0 leaves it unmapped."`
	MIPS   float64  `name:"mips" help:"Limit CPU speed."`
	Quiet  bool     `name:"quiet" short:"q" help:"Do not log unmapped memory and port accesses."`

	Run     runCmd     `cmd help:"Run a program image until it halts."`
	Monitor monitorCmd `cmd help:"Step through a program image in the terminal debugger."`
	Version versionCmd `cmd help:"Print version information."`
}

type ImageFlags struct {
	Image  string `arg optional type:"existingfile" help:"Program image to load."`
	Format string `name:"format" enum:"bin,hex,auto" default:"auto" help:"Image format, guessed from the extension with auto."`
	Load   string `name:"load" default:"0" help:"Load address as seg:off or a linear address (hex)."`
	Entry  string `name:"entry" help:"Start address as seg:off (hex). Defaults to the load address, or the reset vector with a BIOS."`
}

func (cli *CLI) config(img *ImageFlags) (emulator.Config, error) {
	cfg := emulator.Config{
		Image:          img.Image,
		BIOS:           cli.BIOS,
		RAMSize:        cli.RAM,
		Mirror:         cli.Mirror,
		Fill:           byte(cli.Fill),
		Disks:          cli.Disk,
		BootDrive:      byte(cli.Boot),
		TimerInterval:  cli.Timer,
		TimerFrequency: cli.Hz,
		TimerPort:      uint16(cli.Port),
		MIPS:           cli.MIPS,
		Mute:           cli.Quiet,
	}

	if cfg.Image == "" && cfg.BIOS == "" {
		return cfg, errors.New("nothing to run, give a program image or a BIOS")
	}
	if cli.RAM <= 0 || cli.RAM > ram.MaxSize {
		return cfg, fmt.Errorf("invalid RAM size: %d", cli.RAM)
	}

	if cli.Port < 0 || cli.Port > 0xFFFF {
		return cfg, fmt.Errorf("invalid timer port: %d", cli.Port)
	}

	if img.Format != "auto" {
		cfg.Format = loader.Format(img.Format)
	}

	load, err := memory.ParseAddress(img.Load)
	if err != nil {
		return cfg, fmt.Errorf("load address: %w", err)
	}
	cfg.LoadAddress = load.Pointer()

	if img.Entry != "" {
		entry, err := memory.ParseAddress(img.Entry)
		if err != nil {
			return cfg, fmt.Errorf("entry: %w", err)
		}
		cfg.Entry = &entry
	}
	return cfg, nil
}

type runCmd struct {
	ImageFlags `embed:""`

	Steps uint64 `name:"steps" short:"n" help:"Stop after N instructions, 0 runs until HLT."`
	Trace bool   `name:"trace" env:"I186_TRACE" help:"Print every instruction and the registers it changed."`
	Dump  bool   `name:"dump" help:"Print the register file when the run ends."`
}

func (c *runCmd) Run(cli *CLI) error {
	cfg, err := cli.config(&c.ImageFlags)
	if err != nil {
		return err
	}
	cfg.Steps = c.Steps
	if c.Trace {
		cfg.Trace = os.Stdout
		cfg.TraceRegs = true
	}

	e, err := emulator.New(cfg, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	stats, err := e.Run(ctx)
	elapsed := time.Since(start)

	log.Printf("Executed %d instructions and %d interrupts in %v (%.2f MIPS)",
		stats.NumInstructions, stats.NumInterrupts, elapsed.Round(time.Millisecond),
		float64(stats.NumInstructions)/elapsed.Seconds()/1000000)

	if c.Dump {
		debug.DumpState(os.Stdout, e.CPU().GetRegisters())
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type monitorCmd struct {
	ImageFlags `embed:""`
}

func (c *monitorCmd) Run(cli *CLI) error {
	cfg, err := cli.config(&c.ImageFlags)
	if err != nil {
		return err
	}
	cfg.Mute = true

	// Log lines would end up on top of the screen.
	log.SetOutput(ioutil.Discard)
	defer log.SetOutput(os.Stderr)

	e, err := emulator.New(cfg, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer e.Close()

	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()

	s.DisableMouse()
	s.Clear()

	if err := monitor.New(s, e).Run(); !errors.Is(err, monitor.ErrQuit) {
		return err
	}
	return nil
}

type versionCmd struct{}

func (versionCmd) Run() error {
	fmt.Printf("i186 %s", version.Current.FullString())
	if version.Hash != "" {
		fmt.Printf(" (%s)", version.Hash)
	}
	fmt.Println("\n" + version.Copyright)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("i186"),
		kong.Description("8086/80186 processor core and test harness."),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
