package cpu

import (
	"fmt"
)

// Opcode is the 4-bit operation field of an instruction.
type Opcode int

//go:generate go tool stringer -linecomment -type=Opcode
const (
	OP_BR   = Opcode(0b0000) // br
	OP_ADD  = Opcode(0b0001) // add
	OP_LD   = Opcode(0b0010) // ld
	OP_ST   = Opcode(0b0011) // st
	OP_JSR  = Opcode(0b0100) // jsr
	OP_AND  = Opcode(0b0101) // and
	OP_LDR  = Opcode(0b0110) // ldr
	OP_STR  = Opcode(0b0111) // str
	OP_RTI  = Opcode(0b1000) // rti
	OP_NOT  = Opcode(0b1001) // not
	OP_LDI  = Opcode(0b1010) // ldi
	OP_STI  = Opcode(0b1011) // sti
	OP_JMP  = Opcode(0b1100) // jmp
	OP_RES  = Opcode(0b1101) // res
	OP_LEA  = Opcode(0b1110) // lea
	OP_TRAP = Opcode(0b1111) // trap
)

// Reserved returns true for the opcodes that have no user mode semantics.
func (op Opcode) Reserved() bool {
	return op == OP_RTI || op == OP_RES
}

// Trap is a trap vector.
type Trap int

//go:generate go tool stringer -linecomment -type=Trap
const (
	TRAP_GETC  = Trap(0x20) // getc
	TRAP_OUT   = Trap(0x21) // out
	TRAP_PUTS  = Trap(0x22) // puts
	TRAP_IN    = Trap(0x23) // in
	TRAP_PUTSP = Trap(0x24) // putsp
	TRAP_HALT  = Trap(0x25) // halt
)

// Register is an index into the register file.
type Register int

//go:generate go tool stringer -linecomment -type=Register
const (
	REG_R0   = Register(0) // r0
	REG_R1   = Register(1) // r1
	REG_R2   = Register(2) // r2
	REG_R3   = Register(3) // r3
	REG_R4   = Register(4) // r4
	REG_R5   = Register(5) // r5
	REG_R6   = Register(6) // r6
	REG_R7   = Register(7) // r7
	REG_PC   = Register(8) // pc
	REG_COND = Register(9) // cond

	REG_COUNT = 10 // Size of the register file.
)

// Flag is a condition code, as held in the COND register.
type Flag int

//go:generate go tool stringer -linecomment -type=Flag
const (
	FL_POS = Flag(1 << 0) // p
	FL_ZRO = Flag(1 << 1) // z
	FL_NEG = Flag(1 << 2) // n

	FL_MASK = 0x7 // All condition code bits.
)

// Code is a single LC-3 instruction word.
type Code uint16

// SignExtend extends the two's complement value held in the low bitCount
// bits of x to a full 16 bit word.
func SignExtend(x uint16, bitCount int) uint16 {
	if (x>>(bitCount-1))&1 != 0 {
		x |= 0xffff << bitCount
	}
	return x
}

// Opcode returns bits [15:12].
func (code Code) Opcode() Opcode {
	return Opcode(uint16(code) >> 12)
}

// Dr returns the destination register, bits [11:9].
func (code Code) Dr() Register {
	return Register((uint16(code) >> 9) & 0x7)
}

// Sr returns the source register of a store, bits [11:9].
func (code Code) Sr() Register {
	return code.Dr()
}

// Sr1 returns the first source register, bits [8:6].
func (code Code) Sr1() Register {
	return Register((uint16(code) >> 6) & 0x7)
}

// BaseR returns the base register, bits [8:6].
func (code Code) BaseR() Register {
	return code.Sr1()
}

// Sr2 returns the second source register, bits [2:0].
func (code Code) Sr2() Register {
	return Register(uint16(code) & 0x7)
}

// IsImmediate returns true when bit 5 selects the imm5 form of ADD and AND.
func (code Code) IsImmediate() bool {
	return (uint16(code)>>5)&1 == 1
}

// IsJsr returns true when bit 11 selects JSR over JSRR.
func (code Code) IsJsr() bool {
	return (uint16(code)>>11)&1 == 1
}

// Nzp returns the condition mask of a branch, bits [11:9].
func (code Code) Nzp() Flag {
	return Flag((uint16(code) >> 9) & 0x7)
}

// Imm5 returns the sign extended bits [4:0].
func (code Code) Imm5() uint16 {
	return SignExtend(uint16(code)&0x1f, 5)
}

// Offset6 returns the sign extended bits [5:0].
func (code Code) Offset6() uint16 {
	return SignExtend(uint16(code)&0x3f, 6)
}

// PcOffset9 returns the sign extended bits [8:0].
func (code Code) PcOffset9() uint16 {
	return SignExtend(uint16(code)&0x1ff, 9)
}

// PcOffset11 returns the sign extended bits [10:0].
func (code Code) PcOffset11() uint16 {
	return SignExtend(uint16(code)&0x7ff, 11)
}

// Trap returns the trap vector, bits [7:0].
func (code Code) Trap() Trap {
	return Trap(uint16(code) & 0xff)
}

// field packs a signed value into the low bits of a word.
func field(value int, bits int) uint16 {
	return uint16(value) & ((1 << bits) - 1)
}

func makeCode(op Opcode, rest uint16) Code {
	return Code((uint16(op) << 12) | (rest & 0x0fff))
}

// MakeCodeReg creates an ADD or AND instruction in register mode.
func MakeCodeReg(op Opcode, dr, sr1, sr2 Register) Code {
	return makeCode(op, uint16(dr)<<9|uint16(sr1)<<6|uint16(sr2))
}

// MakeCodeImm creates an ADD or AND instruction in immediate mode.
func MakeCodeImm(op Opcode, dr, sr1 Register, imm5 int) Code {
	return makeCode(op, uint16(dr)<<9|uint16(sr1)<<6|1<<5|field(imm5, 5))
}

// MakeCodeNot creates a NOT instruction.
func MakeCodeNot(dr, sr Register) Code {
	return makeCode(OP_NOT, uint16(dr)<<9|uint16(sr)<<6|0x3f)
}

// MakeCodeBr creates a conditional branch.
func MakeCodeBr(nzp Flag, offset9 int) Code {
	return makeCode(OP_BR, uint16(nzp&FL_MASK)<<9|field(offset9, 9))
}

// MakeCodeJmp creates a JMP (RET when base is R7).
func MakeCodeJmp(base Register) Code {
	return makeCode(OP_JMP, uint16(base)<<6)
}

// MakeCodeJsr creates a PC relative subroutine call.
func MakeCodeJsr(offset11 int) Code {
	return makeCode(OP_JSR, 1<<11|field(offset11, 11))
}

// MakeCodeJsrr creates a register subroutine call.
func MakeCodeJsrr(base Register) Code {
	return makeCode(OP_JSR, uint16(base)<<6)
}

// MakeCodePc creates a PC relative LD, LDI, LEA, ST or STI.
func MakeCodePc(op Opcode, r Register, offset9 int) Code {
	return makeCode(op, uint16(r)<<9|field(offset9, 9))
}

// MakeCodeBase creates a base+offset LDR or STR.
func MakeCodeBase(op Opcode, r, base Register, offset6 int) Code {
	return makeCode(op, uint16(r)<<9|uint16(base)<<6|field(offset6, 6))
}

// MakeCodeTrap creates a TRAP instruction.
func MakeCodeTrap(trap Trap) Code {
	return makeCode(OP_TRAP, uint16(trap)&0xff)
}

// String returns the opcode name and raw word, for tracing.
func (code Code) String() string {
	op := code.Opcode()
	if op == OP_TRAP {
		return fmt.Sprintf("%v.%v 0x%04x", op, code.Trap(), uint16(code))
	}
	return fmt.Sprintf("%v 0x%04x", op, uint16(code))
}
