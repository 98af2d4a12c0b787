// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/lc3/cpu"
	"github.com/ezrec/lc3/internal"
	"github.com/ezrec/lc3/io"
)

const (
	USER_STACK = 0xfe00 // Conventional initial R6; the stack grows down from the device registers.
)

var _emulator_defines = map[string]string{
	"USER_STACK": fmt.Sprintf("0x%x", USER_STACK),
}

// Emulator state. CPU + console + loaded program.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.
	Images   []*io.Image  // Object images, loaded in order on reset.
	Start    uint16       // PC after reset.

	Console io.Console // Keyboard and display.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Program: &cpu.Program{},
		Start:   cpu.PC_START,
	}

	emu.Cpu = cpu.NewCpu(&emu.Console)

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.MergeDefines(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Assembler returns an assembler with the emulator defines predefined.
func (emu *Emulator) Assembler() (asm *cpu.Assembler) {
	asm = &cpu.Assembler{Verbose: emu.Verbose}
	for key, value := range emu.Defines() {
		asm.Predefine(key, value)
	}
	return
}

// Close the emulator
func (emu *Emulator) Close() (err error) {
	return emu.Console.Close()
}

// Load an object image into memory. The image is loaded again on every
// reset.
func (emu *Emulator) Load(image *io.Image) (err error) {
	err = emu.Cpu.Load(image)
	if err != nil {
		return
	}

	emu.Images = append(emu.Images, image)

	return
}

// Reset the machine: clear the CPU, load the images and then the program,
// and set PC to Start.
func (emu *Emulator) Reset() (err error) {
	emu.Cpu.Verbose = emu.Verbose

	emu.Cpu.Reset()

	for _, image := range emu.Images {
		err = emu.Cpu.Load(image)
		if err != nil {
			return
		}
	}

	if emu.Program != nil && len(emu.Program.Statements) != 0 {
		err = emu.Cpu.Load(emu.Program.Image())
		if err != nil {
			return
		}
	}

	emu.Cpu.SetReg(cpu.REG_PC, emu.Start)

	if emu.Verbose {
		log.Printf("emulator: start at 0x%04x", emu.Start)
	}

	return
}

// Ticks returns the total ticks since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// Pc returns the current program counter.
func (emu *Emulator) Pc() uint16 {
	return emu.Cpu.Reg(cpu.REG_PC)
}

// lineNo returns the source line that generated the word at addr, or 0.
func (emu *Emulator) lineNo(addr uint16) int {
	if emu.Program == nil {
		return 0
	}

	src := emu.Program.Source(addr)
	if src.Statement == nil {
		return 0
	}

	return src.LineNo
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	return emu.lineNo(emu.Pc())
}

// Tick performs a single tick of the emulator. done is set once the
// machine has halted.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	if !emu.Cpu.Running() {
		done = true
		return
	}

	pc := emu.Pc()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: emu.lineNo(pc), Err: err}
		}
	}()

	err = emu.Cpu.Tick()
	if err != nil {
		return
	}

	done = !emu.Cpu.Running()

	return
}

// Run ticks the emulator until it halts or fails.
func (emu *Emulator) Run() (err error) {
	for done := false; !done; {
		done, err = emu.Tick()
		if err != nil {
			return
		}
	}

	return
}
