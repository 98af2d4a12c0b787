package cpu

import (
	"iter"

	"github.com/ezrec/lc3/io"
)

// Program is the output of the assembler: contiguous statements starting
// at Origin.
type Program struct {
	Origin     uint16
	Statements []Statement
}

// Source locates the statement that generated the word at an address.
type Source struct {
	*Statement
	Index int
}

// Source returns the statement covering addr, or a Source with a nil
// Statement if there is none.
func (prog *Program) Source(addr uint16) (src Source) {
	for n, stmt := range prog.Statements {
		start := int(stmt.Address)
		if int(addr) >= start && int(addr) < start+len(stmt.Codes) {
			src = Source{
				Statement: &prog.Statements[n],
				Index:     int(addr) - start,
			}
			break
		}
	}

	return
}

// Codes iterates over every generated word and its address.
func (prog *Program) Codes() iter.Seq2[uint16, Code] {
	return func(yield func(addr uint16, code Code) bool) {
		for _, stmt := range prog.Statements {
			for n, code := range stmt.Codes {
				if !yield(stmt.Address+uint16(n), code) {
					return
				}
			}
		}
	}
}

// Image returns the program as a loadable object image.
func (prog *Program) Image() *io.Image {
	image := &io.Image{Origin: prog.Origin}
	for addr, code := range prog.Codes() {
		offset := int(addr - prog.Origin)
		for len(image.Words) < offset {
			image.Words = append(image.Words, 0)
		}
		image.Words = append(image.Words, uint16(code))
	}

	return image
}
