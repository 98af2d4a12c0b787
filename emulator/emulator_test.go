package emulator

import (
	"bytes"
	"maps"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/lc3/cpu"
	"github.com/ezrec/lc3/io"
)

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.Equal(uint16(cpu.PC_START), emu.Start)
	assert.Equal(uint16(cpu.PC_START), emu.Pc())
	assert.Same(&emu.Console, emu.Cpu.Console)

	defines := maps.Collect(emu.Defines())
	assert.Equal("0xfe00", defines["USER_STACK"])
	assert.Equal("0x3000", defines["PC_START"])
	assert.Equal("0x25", defines["TRAP_HALT"])
	assert.Equal("0xfe06", defines["MR_DDR"])
}

// doRun assembles program, runs it to completion with input, and returns
// the console output.
func doRun(emu *Emulator, program []string, input string, t *testing.T) (output string, err error) {
	assert := assert.New(t)

	prog, err := emu.Assembler().Parse(strings.NewReader(strings.Join(program, "\n")))
	if !assert.NoError(err) {
		t.FailNow()
	}
	emu.Program = prog

	console_output := &bytes.Buffer{}
	emu.Console.Input = strings.NewReader(input)
	emu.Console.Output = console_output

	err = emu.Reset()
	assert.NoError(err)

	err = emu.Run()
	emu.Console.Flush()

	output = console_output.String()
	return
}

func TestEmulatorHello(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	program := []string{
		".orig PC_START",
		"        lea r0, hello",
		"        puts",
		"        halt",
		`hello   .stringz "Hello, World!\n"`,
		".end",
	}

	output, err := doRun(emu, program, "", t)
	assert.NoError(err)
	assert.Equal("Hello, World!\nHALT\n", output)
	assert.Equal(3, emu.Ticks())
	assert.False(emu.Cpu.Running())

	// Further ticks report done.
	done, err := emu.Tick()
	assert.NoError(err)
	assert.True(done)
}

func TestEmulatorCountdown(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	program := []string{
		".orig x3000",
		"        ld r1, count      ; r1 = 3",
		"        ld r2, zero       ; r2 = '0'",
		"loop    add r0, r1, r2",
		"        out",
		"        add r1, r1, #-1",
		"        brzp loop",
		"        halt",
		"count   .fill #3",
		"zero    .fill '0'",
		".end",
	}

	output, err := doRun(emu, program, "", t)
	assert.NoError(err)
	assert.Equal("3210HALT\n", output)
	assert.Equal(2+4*4+1, emu.Ticks())
	assert.Equal(uint16(0xffff), emu.Cpu.Reg(cpu.REG_R1))
}

func TestEmulatorSubroutine(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	program := []string{
		".orig x3000",
		"        and r0, r0, #0",
		"        add r0, r0, #3",
		"        jsr double",
		"        jsr double",
		"        halt",
		"double  add r0, r0, r0",
		"        ret",
	}

	output, err := doRun(emu, program, "", t)
	assert.NoError(err)
	assert.Equal("HALT\n", output)
	assert.Equal(uint16(12), emu.Cpu.Reg(cpu.REG_R0))
	assert.Equal(uint16(0x3005), emu.Cpu.Reg(cpu.REG_R7))
	assert.Equal(cpu.FL_POS, emu.Cpu.Cond())
}

func TestEmulatorEcho(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	program := []string{
		".orig x3000",
		"loop    getc",
		"        add r1, r0, #-10  ; newline ends",
		"        brz done",
		"        add r0, r0, #-16",
		"        add r0, r0, #-16  ; to upper case",
		"        out",
		"        br loop",
		"done    halt",
	}

	output, err := doRun(emu, program, "abc\n", t)
	assert.NoError(err)
	assert.Equal("ABCHALT\n", output)
}

func TestEmulatorInputError(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	program := []string{
		".orig x3000",
		"        add r0, r0, #1",
		"        getc",
		"        halt",
	}

	_, err := doRun(emu, program, "", t)
	assert.ErrorIs(err, cpu.ErrInput)

	var runtime *ErrRuntime
	if assert.ErrorAs(err, &runtime) {
		assert.Equal(uint16(0x3001), runtime.Pc)
		assert.Equal(3, runtime.LineNo)
	}
	assert.True(emu.Cpu.Running())
}

func TestEmulatorKeyboardPolling(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	program := []string{
		".orig x3000",
		"poll    ldi r1, kbsr",
		"        brzp poll",
		"        ldi r0, kbdr",
		"wait    ldi r1, dsr",
		"        brzp wait",
		"        sti r0, ddr",
		"        halt",
		"kbsr    .fill MR_KBSR",
		"kbdr    .fill MR_KBDR",
		"dsr     .fill MR_DSR",
		"ddr     .fill MR_DDR",
	}

	output, err := doRun(emu, program, "q", t)
	assert.NoError(err)
	assert.Equal("qHALT\n", output)
}

func TestEmulatorLoad(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	console_output := &bytes.Buffer{}
	emu.Console.Output = console_output

	image := &io.Image{
		Origin: 0x4000,
		Words: []uint16{
			uint16(cpu.MakeCodeImm(cpu.OP_ADD, cpu.REG_R0, cpu.REG_R0, 2)),
			uint16(cpu.MakeCodeImm(cpu.OP_ADD, cpu.REG_R0, cpu.REG_R0, 3)),
			uint16(cpu.MakeCodeTrap(cpu.TRAP_HALT)),
		},
	}

	err := emu.Load(image)
	assert.NoError(err)
	assert.Equal(uint16(0x1022), emu.Cpu.Memory[0x4000])

	emu.Start = 0x4000
	err = emu.Reset()
	assert.NoError(err)
	assert.Equal(uint16(0x4000), emu.Pc())
	assert.Equal(0, emu.LineNo())

	err = emu.Run()
	assert.NoError(err)
	assert.Equal(uint16(5), emu.Cpu.Reg(cpu.REG_R0))
	assert.Equal("HALT\n", console_output.String())

	// Reset reloads the image.
	emu.Cpu.Memory[0x4000] = 0
	err = emu.Reset()
	assert.NoError(err)
	assert.True(emu.Cpu.Running())
	assert.Equal(uint16(0x1022), emu.Cpu.Memory[0x4000])
	assert.Equal(uint16(0), emu.Cpu.Reg(cpu.REG_R0))

	err = emu.Load(&io.Image{Origin: 0xfff0, Words: make([]uint16, 32)})
	assert.ErrorIs(err, io.ErrImageOverflow)
	assert.Len(emu.Images, 1)
}

func TestEmulatorLineNo(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defer emu.Close()

	program := []string{
		".orig x3000",
		"",
		"        add r0, r0, #1 ; line 3",
		"        .blkw 2",
		"        halt",
	}

	prog, err := emu.Assembler().Parse(strings.NewReader(strings.Join(program, "\n")))
	if !assert.NoError(err) {
		return
	}
	emu.Program = prog
	assert.NoError(emu.Reset())

	lines := []int{3, 4, 4, 5}
	for _, line := range lines {
		assert.Equal(line, emu.LineNo())
		done, err := emu.Tick()
		assert.NoError(err)
		assert.Equal(line == 5, done)
	}
}
