package cpu

// Instruction handlers. Each one decodes its own fields from the
// instruction word; PC has already been advanced past the instruction.

func (cpu *Cpu) opAdd(code Code) {
	dr := code.Dr()
	a := cpu.Register[code.Sr1()]
	var b uint16
	if code.IsImmediate() {
		b = code.Imm5()
	} else {
		b = cpu.Register[code.Sr2()]
	}
	cpu.Register[dr] = a + b
	cpu.UpdateFlags(dr)
}

func (cpu *Cpu) opAnd(code Code) {
	dr := code.Dr()
	a := cpu.Register[code.Sr1()]
	var b uint16
	if code.IsImmediate() {
		b = code.Imm5()
	} else {
		b = cpu.Register[code.Sr2()]
	}
	cpu.Register[dr] = a & b
	cpu.UpdateFlags(dr)
}

func (cpu *Cpu) opNot(code Code) {
	dr := code.Dr()
	cpu.Register[dr] = ^cpu.Register[code.Sr1()]
	cpu.UpdateFlags(dr)
}

func (cpu *Cpu) opBr(code Code) {
	if code.Nzp()&cpu.Cond() != 0 {
		cpu.Register[REG_PC] += code.PcOffset9()
	}
}

// opJmp also implements RET, which is JMP R7.
func (cpu *Cpu) opJmp(code Code) {
	cpu.Register[REG_PC] = cpu.Register[code.BaseR()]
}

func (cpu *Cpu) opJsr(code Code) {
	// R7 is written first: JSRR R7 jumps to the return address.
	cpu.Register[REG_R7] = cpu.Register[REG_PC]
	if code.IsJsr() {
		cpu.Register[REG_PC] += code.PcOffset11()
	} else {
		cpu.Register[REG_PC] = cpu.Register[code.BaseR()]
	}
}

func (cpu *Cpu) opLd(code Code) {
	dr := code.Dr()
	cpu.Register[dr] = cpu.Read(cpu.Register[REG_PC] + code.PcOffset9())
	cpu.UpdateFlags(dr)
}

func (cpu *Cpu) opLdi(code Code) {
	dr := code.Dr()
	cpu.Register[dr] = cpu.Read(cpu.Read(cpu.Register[REG_PC] + code.PcOffset9()))
	cpu.UpdateFlags(dr)
}

func (cpu *Cpu) opLdr(code Code) {
	dr := code.Dr()
	cpu.Register[dr] = cpu.Read(cpu.Register[code.BaseR()] + code.Offset6())
	cpu.UpdateFlags(dr)
}

func (cpu *Cpu) opLea(code Code) {
	dr := code.Dr()
	cpu.Register[dr] = cpu.Register[REG_PC] + code.PcOffset9()
	cpu.UpdateFlags(dr)
}

func (cpu *Cpu) opSt(code Code) {
	cpu.Write(cpu.Register[REG_PC]+code.PcOffset9(), cpu.Register[code.Sr()])
}

func (cpu *Cpu) opSti(code Code) {
	cpu.Write(cpu.Read(cpu.Register[REG_PC]+code.PcOffset9()), cpu.Register[code.Sr()])
}

func (cpu *Cpu) opStr(code Code) {
	cpu.Write(cpu.Register[code.BaseR()]+code.Offset6(), cpu.Register[code.Sr()])
}
