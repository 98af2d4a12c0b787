// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ezrec/lc3/cpu"
	"github.com/ezrec/lc3/emulator"
	"github.com/ezrec/lc3/internal/term"
	"github.com/ezrec/lc3/io"
	"github.com/ezrec/lc3/translate"
)

func usage() {
	translate.Fprintf(flag.CommandLine.Output(),
		"usage: %v [options] [image.obj | source.asm]...\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

// assemble parses an assembly source file.
func assemble(emu *emulator.Emulator, path string) (prog *cpu.Program, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return emu.Assembler().Parse(inf)
}

// loadFile loads an object image, or assembles and loads a .asm source.
func loadFile(emu *emulator.Emulator, path string) (err error) {
	var image *io.Image

	if strings.EqualFold(filepath.Ext(path), ".asm") {
		var prog *cpu.Program
		prog, err = assemble(emu, path)
		if err != nil {
			return
		}
		image = prog.Image()
	} else {
		var inf *os.File
		inf, err = os.Open(path)
		if err != nil {
			return
		}
		defer inf.Close()

		image, err = io.ReadImage(inf)
		if err != nil {
			return
		}
	}

	return emu.Load(image)
}

// saveImage writes an assembled program as an object image.
func saveImage(prog *cpu.Program, path string) (err error) {
	ouf, err := os.Create(path)
	if err != nil {
		return
	}

	_, err = prog.Image().WriteTo(ouf)
	if err == nil {
		err = ouf.Close()
	} else {
		ouf.Close()
	}

	return
}

func main() {
	var compile string
	var output string
	var save bool
	var input string
	var start string
	var verbose bool

	flag.Usage = usage
	flag.StringVar(&compile, "c", "", ".asm file to assemble")
	flag.StringVar(&output, "o", "", ".obj file to save the assembled image to")
	flag.BoolVar(&save, "s", false, "Save the assembled image, do not execute")
	flag.StringVar(&input, "i", "-", "Console input")
	flag.StringVar(&start, "pc", fmt.Sprintf("0x%04x", cpu.PC_START), "Start address")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if len(compile) == 0 && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if save && len(output) == 0 {
		log.Fatalf("%v: -s requires -o", os.Args[0])
	}

	pc, err := strconv.ParseUint(start, 0, 16)
	if err != nil {
		log.Fatalf("-pc %v: %v", start, err)
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Start = uint16(pc)

	// Load images, in order.
	for _, path := range flag.Args() {
		err = loadFile(emu, path)
		if err != nil {
			log.Fatalf("%v: %v", path, err)
		}
	}

	// Compile a new instruction stream.
	if len(compile) != 0 {
		prog, err := assemble(emu, compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		emu.Program = prog

		if len(output) != 0 {
			err = saveImage(prog, output)
			if err != nil {
				log.Fatalf("%v: %v", output, err)
			}
		}
	}

	if save {
		return
	}

	restore := func() {}

	if input == "-" {
		emu.Console.Input = os.Stdin
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			state, err := term.MakeInput(fd)
			if err != nil {
				log.Fatalf("stdin: %v", err)
			}
			restore = func() { state.Restore() }
		}
	} else {
		inf, err := os.Open(input)
		if err != nil {
			log.Fatalf("%v: %v", input, err)
		}
		defer inf.Close()
		emu.Console.Input = inf
	}
	emu.Console.Output = os.Stdout

	// Restore the terminal on interrupt.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		restore()
		fmt.Println()
		os.Exit(-2)
	}()

	err = emu.Reset()
	if err == nil {
		err = emu.Run()
	}
	emu.Close()
	restore()

	if err != nil {
		log.Fatal(err)
	}
}
