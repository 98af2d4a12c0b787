package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/lc3/io"
)

// Memory layout constants.
const (
	MEMORY_SIZE = 1 << 16 // Words of memory.
	PC_START    = 0x3000  // Conventional user program load address.
)

// Memory mapped device registers.
const (
	MR_KBSR = 0xfe00 // Keyboard status.
	MR_KBDR = 0xfe02 // Keyboard data.
	MR_DSR  = 0xfe04 // Display status.
	MR_DDR  = 0xfe06 // Display data.

	MR_READY = 0x8000 // Device ready bit of a status register.
)

var _cpu_defines = map[string]string{
	"MEMORY_SIZE": fmt.Sprintf("0x%x", MEMORY_SIZE),
	"PC_START":    fmt.Sprintf("0x%x", PC_START),
	"MR_KBSR":     fmt.Sprintf("0x%x", MR_KBSR),
	"MR_KBDR":     fmt.Sprintf("0x%x", MR_KBDR),
	"MR_DSR":      fmt.Sprintf("0x%x", MR_DSR),
	"MR_DDR":      fmt.Sprintf("0x%x", MR_DDR),
	"MR_READY":    fmt.Sprintf("0x%x", MR_READY),
	"TRAP_GETC":   fmt.Sprintf("0x%x", int(TRAP_GETC)),
	"TRAP_OUT":    fmt.Sprintf("0x%x", int(TRAP_OUT)),
	"TRAP_PUTS":   fmt.Sprintf("0x%x", int(TRAP_PUTS)),
	"TRAP_IN":     fmt.Sprintf("0x%x", int(TRAP_IN)),
	"TRAP_PUTSP":  fmt.Sprintf("0x%x", int(TRAP_PUTSP)),
	"TRAP_HALT":   fmt.Sprintf("0x%x", int(TRAP_HALT)),
}

// Console is the byte I/O device used by the traps and memory mapped
// device registers.
type Console interface {
	// ReadByte blocks until one input byte is available.
	ReadByte() (byte, error)
	// WriteByte queues one output byte.
	WriteByte(c byte) error
	// Flush writes out queued output.
	Flush() error
	// Ready returns true if ReadByte would not block.
	Ready() bool
}

var _ Console = (*io.Console)(nil)

// State is the run state of the machine.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_RUNNING = State(0) // running
	STATE_HALTED  = State(1) // halted
)

// Cpu is the simulation context for an LC-3 machine.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Memory   [MEMORY_SIZE]uint16 // Main memory.
	Register [REG_COUNT]uint16   // R0-R7, PC and COND.
	State    State               // Run state.

	Console Console // Console device; may be nil.

	Ticks int // Instructions executed since reset.

	keyPending bool  // KBDR holds a key not yet read.
	deviceErr  error // Display failure from the last Write.
}

// NewCpu creates a reset CPU attached to a console.
func NewCpu(console Console) (cpu *Cpu) {
	cpu = &Cpu{
		Console: console,
	}

	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	for r := REG_R0; r < REG_COUNT; r++ {
		text += fmt.Sprintf("% 5s: %04X\n", r.String(), cpu.Register[r])
	}
	text += fmt.Sprintf("% 5s: %v\n", "state", cpu.State)
	return
}

// Reset the CPU state.
// - Clears memory and registers.
// - Sets PC to PC_START and COND to FL_ZRO.
// - Zeros the tick counter.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Memory[:])
	clear(cpu.Register[:])
	cpu.Register[REG_PC] = PC_START
	cpu.Register[REG_COND] = uint16(FL_ZRO)
	cpu.State = STATE_RUNNING
	cpu.Ticks = 0
	cpu.keyPending = false
	cpu.deviceErr = nil
}

// Load copies an image into memory at its origin. PC is left unchanged.
func (cpu *Cpu) Load(image *io.Image) (err error) {
	err = image.Validate()
	if err != nil {
		return
	}

	copy(cpu.Memory[image.Origin:], image.Words)

	if cpu.Verbose {
		log.Printf("cpu: load %d words at 0x%04x", len(image.Words), image.Origin)
	}

	return
}

// Running returns true until the machine has halted.
func (cpu *Cpu) Running() bool {
	return cpu.State == STATE_RUNNING
}

// Halt stops the machine.
func (cpu *Cpu) Halt() {
	cpu.State = STATE_HALTED
}

// Reg returns the value of a register.
func (cpu *Cpu) Reg(r Register) uint16 {
	return cpu.Register[r]
}

// SetReg sets the value of a register. Condition codes are not updated.
func (cpu *Cpu) SetReg(r Register, value uint16) {
	cpu.Register[r] = value
}

// Cond returns the active condition flag.
func (cpu *Cpu) Cond() Flag {
	return Flag(cpu.Register[REG_COND])
}

// UpdateFlags sets COND from the sign of the value in register r.
func (cpu *Cpu) UpdateFlags(r Register) {
	value := cpu.Register[r]
	switch {
	case value>>15 != 0:
		cpu.Register[REG_COND] = uint16(FL_NEG)
	case value == 0:
		cpu.Register[REG_COND] = uint16(FL_ZRO)
	default:
		cpu.Register[REG_COND] = uint16(FL_POS)
	}
}

// Read a word of memory. Reading KBSR polls the console for a new key,
// unless the last key has not yet been read from KBDR.
func (cpu *Cpu) Read(addr uint16) uint16 {
	switch addr {
	case MR_KBSR:
		if cpu.keyPending {
			cpu.Memory[MR_KBSR] = MR_READY
			break
		}
		cpu.Memory[MR_KBSR] = 0
		if cpu.Console != nil && cpu.Console.Ready() {
			c, err := cpu.Console.ReadByte()
			if err == nil {
				cpu.Memory[MR_KBSR] = MR_READY
				cpu.Memory[MR_KBDR] = uint16(c)
				cpu.keyPending = true
			}
		}
	case MR_KBDR:
		cpu.keyPending = false
	case MR_DSR:
		if cpu.Console != nil {
			cpu.Memory[MR_DSR] = MR_READY
		}
	}

	return cpu.Memory[addr]
}

// Write a word of memory. Writing DDR outputs a character; a failure is
// returned by the Execute of the storing instruction.
func (cpu *Cpu) Write(addr uint16, value uint16) {
	cpu.Memory[addr] = value

	if addr == MR_DDR && cpu.Console != nil {
		err := cpu.putc(byte(value))
		if err == nil {
			err = cpu.flush()
		}
		if err != nil {
			if cpu.Verbose {
				log.Printf("cpu: ddr: %v", err)
			}
			cpu.deviceErr = err
		}
	}
}

// Tick executes a single instruction cycle.
func (cpu *Cpu) Tick() (err error) {
	if !cpu.Running() {
		err = ErrHalted
		return
	}

	pc := cpu.Register[REG_PC]
	code := Code(cpu.Read(pc))
	cpu.Register[REG_PC] = pc + 1

	if cpu.Verbose {
		log.Printf("%04x: %v", pc, code)
	}

	err = cpu.Execute(code)
	if err != nil {
		return
	}

	cpu.Ticks++

	return
}

// Run ticks until the machine halts or fails.
func (cpu *Cpu) Run() (err error) {
	for cpu.Running() {
		err = cpu.Tick()
		if err != nil {
			return
		}
	}

	return
}

// Execute executes a single decoded instruction. PC must already point
// past the instruction.
func (cpu *Cpu) Execute(code Code) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode(code), err)
		}
	}()

	cpu.deviceErr = nil

	switch code.Opcode() {
	case OP_ADD:
		cpu.opAdd(code)
	case OP_AND:
		cpu.opAnd(code)
	case OP_NOT:
		cpu.opNot(code)
	case OP_BR:
		cpu.opBr(code)
	case OP_JMP:
		cpu.opJmp(code)
	case OP_JSR:
		cpu.opJsr(code)
	case OP_LD:
		cpu.opLd(code)
	case OP_LDI:
		cpu.opLdi(code)
	case OP_LDR:
		cpu.opLdr(code)
	case OP_LEA:
		cpu.opLea(code)
	case OP_ST:
		cpu.opSt(code)
		err = cpu.deviceErr
	case OP_STI:
		cpu.opSti(code)
		err = cpu.deviceErr
	case OP_STR:
		cpu.opStr(code)
		err = cpu.deviceErr
	case OP_TRAP:
		err = cpu.opTrap(code)
	case OP_RTI, OP_RES:
		if cpu.Verbose {
			log.Printf("cpu: %v: %v", code, ErrOpcodeReserved)
		}
	default:
		if cpu.Verbose {
			log.Printf("cpu: %v", ErrOpcode(code))
		}
	}

	return
}
