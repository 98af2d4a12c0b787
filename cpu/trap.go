package cpu

import (
	"errors"
	"log"

	"github.com/ezrec/lc3/translate"
)

// opTrap saves the return address in R7 and runs the trap routine
// selected by the low 8 bits of the instruction.
func (cpu *Cpu) opTrap(code Code) (err error) {
	cpu.Register[REG_R7] = cpu.Register[REG_PC]

	trap := code.Trap()
	switch trap {
	case TRAP_GETC:
		err = cpu.trapGetc()
	case TRAP_OUT:
		err = cpu.trapOut()
	case TRAP_PUTS:
		err = cpu.trapPuts()
	case TRAP_IN:
		err = cpu.trapIn()
	case TRAP_PUTSP:
		err = cpu.trapPutsp()
	case TRAP_HALT:
		err = cpu.trapHalt()
	default:
		if cpu.Verbose {
			log.Printf("cpu: trap 0x%02x: %v", int(trap), ErrTrapUnknown)
		}
	}

	return
}

// getc reads one byte from the console.
func (cpu *Cpu) getc() (c byte, err error) {
	if cpu.Console == nil {
		err = ErrInput
		return
	}
	c, err = cpu.Console.ReadByte()
	if err != nil {
		err = errors.Join(ErrInput, err)
	}
	return
}

// putc writes one byte to the console. Output is discarded when there is
// no console.
func (cpu *Cpu) putc(c byte) (err error) {
	if cpu.Console == nil {
		return
	}
	err = cpu.Console.WriteByte(c)
	if err != nil {
		err = errors.Join(ErrOutput, err)
	}
	return
}

func (cpu *Cpu) puts(text string) (err error) {
	for _, c := range []byte(text) {
		err = cpu.putc(c)
		if err != nil {
			return
		}
	}
	return
}

func (cpu *Cpu) flush() (err error) {
	if cpu.Console == nil {
		return
	}
	err = cpu.Console.Flush()
	if err != nil {
		err = errors.Join(ErrOutput, err)
	}
	return
}

func (cpu *Cpu) trapGetc() (err error) {
	c, err := cpu.getc()
	if err != nil {
		return
	}
	cpu.Register[REG_R0] = uint16(c)
	cpu.UpdateFlags(REG_R0)
	return
}

func (cpu *Cpu) trapOut() (err error) {
	err = cpu.putc(byte(cpu.Register[REG_R0]))
	if err != nil {
		return
	}
	return cpu.flush()
}

func (cpu *Cpu) trapPuts() (err error) {
	base := cpu.Register[REG_R0]
	for n := range MEMORY_SIZE {
		value := cpu.Read(base + uint16(n))
		if value == 0 {
			break
		}
		err = cpu.putc(byte(value))
		if err != nil {
			return
		}
	}
	return cpu.flush()
}

func (cpu *Cpu) trapIn() (err error) {
	err = cpu.puts(translate.From("Enter a character: "))
	if err != nil {
		return
	}
	err = cpu.flush()
	if err != nil {
		return
	}

	c, err := cpu.getc()
	if err != nil {
		return
	}

	err = cpu.putc(c)
	if err != nil {
		return
	}
	err = cpu.flush()
	if err != nil {
		return
	}

	cpu.Register[REG_R0] = uint16(c)
	cpu.UpdateFlags(REG_R0)
	return
}

func (cpu *Cpu) trapPutsp() (err error) {
	base := cpu.Register[REG_R0]
	for n := range MEMORY_SIZE {
		value := cpu.Read(base + uint16(n))
		lo := byte(value)
		if lo == 0 {
			break
		}
		err = cpu.putc(lo)
		if err != nil {
			return
		}
		hi := byte(value >> 8)
		if hi == 0 {
			break
		}
		err = cpu.putc(hi)
		if err != nil {
			return
		}
	}
	return cpu.flush()
}

func (cpu *Cpu) trapHalt() (err error) {
	err = cpu.puts(translate.From("HALT\n"))
	if err == nil {
		err = cpu.flush()
	}

	cpu.Halt()

	if cpu.Verbose {
		log.Printf("cpu: halt after %d ticks", cpu.Ticks+1)
	}

	return
}
