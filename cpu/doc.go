// Package cpu implements the LC-3 processor and an assembler for it.
//
// The machine has 64K words of memory, eight 16-bit general purpose
// registers (R0-R7), a program counter and a condition code register that
// holds exactly one of the N, Z or P flags. Each Tick fetches the word at
// PC, advances PC, and executes the instruction; TRAP instructions provide
// console I/O through a Console device and the HALT service stops the
// machine.
//
// The assembler accepts the usual LC-3 assembly language (.ORIG, .FILL,
// .BLKW, .STRINGZ, .END) along with .EQU constants and $(...)
// compile-time expressions.
package cpu
