// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Statement is one line of assembled source and the words it generated.
type Statement struct {
	LineNo    int      // Source line number.
	Address   uint16   // Address of the first generated word.
	Words     []string // Source tokens.
	Codes     []Code   // Generated words.
	LinkLabel string   // Label to resolve into the last code, if any.
	LinkBits  int      // PC offset field width for LinkLabel; 0 for an absolute address.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is an LC-3 assembler. Labels are resolved once the whole
// source has been read.
type Assembler struct {
	Verbose   bool        // If set, verbosely logs the assembler actions.
	Statement []Statement // List of generated statements.

	predefine map[string]string // Predefines
	Label     map[string]uint16 // Map of labels to addresses.
	Equate    map[string]string // Map of equates.

	origin    uint16 // Address of the first word.
	hasOrigin bool   // Set once .orig is seen.
	address   int    // Address of the next word.
	ended     bool   // Set once .end is seen.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// opMap maps instruction mnemonics to opcodes.
var opMap = map[string]Opcode{
	"add":  OP_ADD,
	"and":  OP_AND,
	"not":  OP_NOT,
	"jmp":  OP_JMP,
	"ret":  OP_JMP,
	"jsr":  OP_JSR,
	"jsrr": OP_JSR,
	"ld":   OP_LD,
	"ldi":  OP_LDI,
	"ldr":  OP_LDR,
	"lea":  OP_LEA,
	"st":   OP_ST,
	"sti":  OP_STI,
	"str":  OP_STR,
	"trap": OP_TRAP,
	"rti":  OP_RTI,
}

// trapMap maps trap service routine aliases.
var trapMap = map[string]Trap{
	"getc":  TRAP_GETC,
	"out":   TRAP_OUT,
	"puts":  TRAP_PUTS,
	"in":    TRAP_IN,
	"putsp": TRAP_PUTSP,
	"halt":  TRAP_HALT,
}

// directives are the assembler pseudo-ops.
var directives = []string{".orig", ".fill", ".blkw", ".stringz", ".end", ".equ"}

// regMap maps register names.
var regMap = map[string]Register{
	"r0": REG_R0,
	"r1": REG_R1,
	"r2": REG_R2,
	"r3": REG_R3,
	"r4": REG_R4,
	"r5": REG_R5,
	"r6": REG_R6,
	"r7": REG_R7,
}

var labelRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// branchFlags decodes a BR mnemonic. A bare BR branches always.
func branchFlags(word string) (nzp Flag, ok bool) {
	word = strings.ToLower(word)
	if !strings.HasPrefix(word, "br") {
		return
	}

	rest := word[2:]
	if len(rest) == 0 {
		nzp, ok = FL_NEG|FL_ZRO|FL_POS, true
		return
	}

	order := []struct {
		name byte
		flag Flag
	}{{'n', FL_NEG}, {'z', FL_ZRO}, {'p', FL_POS}}
	for _, o := range order {
		if len(rest) > 0 && rest[0] == o.name {
			nzp |= o.flag
			rest = rest[1:]
		}
	}

	ok = len(rest) == 0
	return
}

// isMnemonic returns true for instructions, trap aliases and directives.
func isMnemonic(word string) bool {
	lower := strings.ToLower(word)
	if _, ok := opMap[lower]; ok {
		return true
	}
	if _, ok := trapMap[lower]; ok {
		return true
	}
	if _, ok := branchFlags(lower); ok {
		return true
	}
	return slices.Contains(directives, lower)
}

// valueOf returns the value of a numeric literal: #decimal, xHEX, bBINARY,
// or any Go integer literal.
func (asm *Assembler) valueOf(word string) (value int, err error) {
	text := word
	base := 0

	isDigits := func(s string, digits string) bool {
		if strings.HasPrefix(s, "-") {
			s = s[1:]
		}
		return len(s) > 0 && strings.Trim(s, digits) == ""
	}

	switch {
	case strings.HasPrefix(text, "#"):
		text = text[1:]
		base = 10
	case len(text) > 1 && (text[0] == 'x' || text[0] == 'X') && isDigits(text[1:], "0123456789abcdefABCDEF"):
		text = text[1:]
		base = 16
	case len(text) > 1 && (text[0] == 'b' || text[0] == 'B') && isDigits(text[1:], "01"):
		text = text[1:]
		base = 2
	}

	v64, perr := strconv.ParseInt(text, base, 32)
	if perr != nil {
		err = ErrParseNumber(word)
		return
	}

	value = int(v64)
	return
}

// inRange checks that value fits a signed field of the given width.
func inRange(value int, bits int) (err error) {
	if value < -(1<<(bits-1)) || value >= (1<<(bits-1)) {
		err = ErrOffsetRange{Value: value, Bits: bits}
	}
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var v int
		v, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt(v)
	}
	for key, addr := range asm.Label {
		if _, ok := pred[key]; !ok {
			pred[key] = starlark.MakeInt(int(addr))
		}
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = errors.Join(ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int(st_int64)
	return
}

// stripComment removes a ';' comment that is not inside a string or
// character literal.
func stripComment(text string) string {
	var quote rune
	escaped := false
	for n, r := range text {
		switch {
		case escaped:
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case quote == 0 && r == ';':
			return text[:n]
		}
	}
	return text
}

// charEscape maps the escapes allowed in character literals.
var charEscape = map[string]string{
	"\\\\": "\\",
	"\\n":  "\n",
	"\\r":  "\r",
	"\\t":  "\t",
	"\\e":  "\033",
	"\\0":  "\000",
	"\\'":  "'",
}

// parseLine splits a line into words, expanding character literals, $()
// expressions and equates. A "string" literal is returned separately.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, str *string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Pull out a "string" literal.
	if first := strings.IndexByte(line, '"'); first >= 0 {
		last := strings.LastIndexByte(line, '"')
		if last == first || strings.TrimSpace(line[last+1:]) != "" {
			err = ErrStringSyntax
			return
		}
		var text string
		text, err = strconv.Unquote(line[first : last+1])
		if err != nil {
			err = ErrStringSyntax
			return
		}
		str = &text
		line = line[:first]
	}

	// Do 'x' evaluations
	re := regexp.MustCompile(`'(\\.|[^'\\])'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		lit := word[1 : len(word)-1]
		if esc, ok := charEscape[lit]; ok {
			lit = esc
		} else if lit[0] == '\\' {
			return word
		}
		return fmt.Sprintf("#%d", lit[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(expr string) string {
		value, _err := asm.parenEval(expr[2 : len(expr)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("#%d", value)
	})
	if err != nil {
		return
	}

	words = strings.FieldsFunc(line, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if strings.ToLower(words[0]) == ".equ" {
		if len(words) != 3 || str != nil {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	return
}

// currentAddress gets the address of the next generated word.
func (asm *Assembler) currentAddress() uint16 {
	return uint16(asm.address)
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]uint16, 16)
	asm.Statement = asm.Statement[:0]
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}
	asm.origin = 0
	asm.hasOrigin = false
	asm.address = 0
	asm.ended = false

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		if asm.ended {
			continue
		}

		line = strings.TrimSpace(stripComment(text))

		var words []string
		var str *string
		words, str, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, str, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if !asm.hasOrigin {
		err = ErrOriginMissing
		return
	}

	// Final linking of labels.
	for n := range asm.Statement {
		stmt := &asm.Statement[n]

		if len(stmt.LinkLabel) == 0 {
			continue
		}

		lineno = stmt.LineNo
		line = strings.Join(stmt.Words, " ")

		label := stmt.LinkLabel
		addr, ok := asm.Label[label]
		if !ok {
			err = ErrLabelMissing(label)
			return
		}

		index := len(stmt.Codes) - 1
		linked := &stmt.Codes[index]
		if stmt.LinkBits == 0 {
			*linked = Code(addr)
			continue
		}

		offset := int(addr) - (int(stmt.Address) + index + 1)
		err = inRange(offset, stmt.LinkBits)
		if err != nil {
			return
		}
		*linked |= Code(field(offset, stmt.LinkBits))
	}

	prog = &Program{
		Origin:     asm.origin,
		Statements: slices.Clone(asm.Statement),
	}

	return
}

// register parses a register operand.
func (asm *Assembler) register(word string) (r Register, err error) {
	r, ok := regMap[strings.ToLower(word)]
	if !ok {
		err = ErrRegisterInvalid
	}
	return
}

// offset parses a numeric operand or a label reference for a signed field.
// When label is set, the field must be resolved when linking.
func (asm *Assembler) offset(word string, bits int) (value int, label string, err error) {
	value, err = asm.valueOf(word)
	if err == nil {
		err = inRange(value, bits)
		return
	}

	if !labelRe.MatchString(word) {
		return
	}

	label = word
	value = 0
	err = nil
	return
}

// operands checks the operand count of an instruction.
func operands(words []string, count int) (err error) {
	switch {
	case len(words) < count+1:
		err = ErrOperandMissing
	case len(words) > count+1:
		err = ErrOperandExtra
	}
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, str *string, lineno int) (err error) {
	var codes []Code
	var label string
	var bits int

	// no-op
	if len(words) == 0 {
		if str != nil {
			err = ErrStringSyntax
		}
		return
	}

	initial_words := words

	// Leading label
	if !isMnemonic(words[0]) {
		name := strings.TrimSuffix(words[0], ":")
		if !labelRe.MatchString(name) {
			err = ErrOpcodeInvalid
			return
		}
		if !asm.hasOrigin {
			err = ErrOriginMissing
			return
		}
		_, ok := asm.Label[name]
		if ok {
			err = ErrLabelDuplicate
			return
		}
		asm.Label[name] = asm.currentAddress()
		words = words[1:]
		if len(words) == 0 {
			if str != nil {
				err = ErrStringSyntax
			}
			return
		}
	}

	mnemonic := strings.ToLower(words[0])

	if str != nil && mnemonic != ".stringz" {
		err = ErrStringSyntax
		return
	}

	if mnemonic == ".orig" {
		if asm.hasOrigin {
			err = ErrOriginDuplicate
			return
		}
		err = operands(words, 1)
		if err != nil {
			return
		}
		var value int
		value, err = asm.valueOf(words[1])
		if err != nil {
			return
		}
		if value < 0 || value > 0xffff {
			err = ErrOffsetRange{Value: value, Bits: 16}
			return
		}
		asm.origin = uint16(value)
		asm.address = value
		asm.hasOrigin = true
		return
	}

	if !asm.hasOrigin {
		err = ErrOriginMissing
		return
	}

	defer func() {
		if err != nil || len(codes) == 0 {
			return
		}
		if asm.address+len(codes) > MEMORY_SIZE {
			err = ErrAddressOverflow
			return
		}
		stmt := Statement{
			LineNo:    lineno,
			Address:   asm.currentAddress(),
			Words:     initial_words,
			Codes:     codes,
			LinkLabel: label,
			LinkBits:  bits,
		}
		asm.Statement = append(asm.Statement, stmt)
		asm.address += len(codes)
	}()

	if nzp, ok := branchFlags(mnemonic); ok {
		err = operands(words, 1)
		if err != nil {
			return
		}
		var value int
		value, label, err = asm.offset(words[1], 9)
		if err != nil {
			return
		}
		bits = 9
		codes = append(codes, MakeCodeBr(nzp, value))
		return
	}

	if trap, ok := trapMap[mnemonic]; ok {
		err = operands(words, 0)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeTrap(trap))
		return
	}

	switch mnemonic {
	case ".end":
		err = operands(words, 0)
		if err != nil {
			return
		}
		asm.ended = true
	case ".fill":
		err = operands(words, 1)
		if err != nil {
			return
		}
		var value int
		value, err = asm.valueOf(words[1])
		if err != nil {
			if !labelRe.MatchString(words[1]) {
				return
			}
			err = nil
			label = words[1]
		} else if value < -0x8000 || value > 0xffff {
			err = ErrOffsetRange{Value: value, Bits: 16}
			return
		}
		codes = append(codes, Code(uint16(value)))
	case ".blkw":
		if len(words) < 2 {
			err = ErrOperandMissing
			return
		}
		if len(words) > 3 {
			err = ErrOperandExtra
			return
		}
		var count, fill int
		count, err = asm.valueOf(words[1])
		if err != nil {
			return
		}
		if count < 1 || count > MEMORY_SIZE {
			err = ErrOffsetRange{Value: count, Bits: 16}
			return
		}
		if len(words) == 3 {
			fill, err = asm.valueOf(words[2])
			if err != nil {
				return
			}
		}
		for range count {
			codes = append(codes, Code(uint16(fill)))
		}
	case ".stringz":
		if str == nil || len(words) != 1 {
			err = ErrStringSyntax
			return
		}
		for _, c := range []byte(*str) {
			codes = append(codes, Code(c))
		}
		codes = append(codes, 0)
	case "add", "and":
		err = operands(words, 3)
		if err != nil {
			return
		}
		var dr, sr1, sr2 Register
		dr, err = asm.register(words[1])
		if err != nil {
			return
		}
		sr1, err = asm.register(words[2])
		if err != nil {
			return
		}
		op := opMap[mnemonic]
		sr2, err = asm.register(words[3])
		if err == nil {
			codes = append(codes, MakeCodeReg(op, dr, sr1, sr2))
			return
		}
		var imm int
		imm, err = asm.valueOf(words[3])
		if err != nil {
			return
		}
		err = inRange(imm, 5)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeImm(op, dr, sr1, imm))
	case "not":
		err = operands(words, 2)
		if err != nil {
			return
		}
		var dr, sr Register
		dr, err = asm.register(words[1])
		if err != nil {
			return
		}
		sr, err = asm.register(words[2])
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeNot(dr, sr))
	case "jmp", "jsrr":
		err = operands(words, 1)
		if err != nil {
			return
		}
		var base Register
		base, err = asm.register(words[1])
		if err != nil {
			return
		}
		if mnemonic == "jmp" {
			codes = append(codes, MakeCodeJmp(base))
		} else {
			codes = append(codes, MakeCodeJsrr(base))
		}
	case "ret":
		err = operands(words, 0)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeJmp(REG_R7))
	case "rti":
		err = operands(words, 0)
		if err != nil {
			return
		}
		codes = append(codes, makeCode(OP_RTI, 0))
	case "jsr":
		err = operands(words, 1)
		if err != nil {
			return
		}
		var value int
		value, label, err = asm.offset(words[1], 11)
		if err != nil {
			return
		}
		bits = 11
		codes = append(codes, MakeCodeJsr(value))
	case "ld", "ldi", "lea", "st", "sti":
		err = operands(words, 2)
		if err != nil {
			return
		}
		var r Register
		r, err = asm.register(words[1])
		if err != nil {
			return
		}
		var value int
		value, label, err = asm.offset(words[2], 9)
		if err != nil {
			return
		}
		bits = 9
		codes = append(codes, MakeCodePc(opMap[mnemonic], r, value))
	case "ldr", "str":
		err = operands(words, 3)
		if err != nil {
			return
		}
		var r, base Register
		r, err = asm.register(words[1])
		if err != nil {
			return
		}
		base, err = asm.register(words[2])
		if err != nil {
			return
		}
		var value int
		value, err = asm.valueOf(words[3])
		if err != nil {
			return
		}
		err = inRange(value, 6)
		if err != nil {
			return
		}
		codes = append(codes, MakeCodeBase(opMap[mnemonic], r, base, value))
	case "trap":
		err = operands(words, 1)
		if err != nil {
			return
		}
		var value int
		value, err = asm.valueOf(words[1])
		if err != nil {
			return
		}
		if value < 0 || value > 0xff {
			err = ErrOffsetRange{Value: value, Bits: 8}
			return
		}
		codes = append(codes, MakeCodeTrap(Trap(value)))
	default:
		err = ErrOpcodeInvalid
	}

	return
}
