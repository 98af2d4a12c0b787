package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/lc3/emulator"
	"github.com/ezrec/lc3/io"
)

func TestLoadFile(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()

	source := filepath.Join(dir, "add.asm")
	err := os.WriteFile(source, []byte(".orig x3000\nadd r0, r0, #5\nhalt\n.end\n"), 0o644)
	if !assert.NoError(err) {
		return
	}

	emu := emulator.NewEmulator()
	defer emu.Close()

	prog, err := assemble(emu, source)
	if !assert.NoError(err) {
		return
	}

	object := filepath.Join(dir, "add.obj")
	assert.NoError(saveImage(prog, object))

	data, err := os.ReadFile(object)
	assert.NoError(err)
	assert.Equal([]byte{0x30, 0x00, 0x10, 0x25, 0xf0, 0x25}, data)

	for _, path := range []string{source, object} {
		emu := emulator.NewEmulator()
		assert.NoError(loadFile(emu, path), path)
		assert.Equal(uint16(0x1025), emu.Cpu.Memory[0x3000], path)
		assert.Equal(uint16(0xf025), emu.Cpu.Memory[0x3001], path)
		assert.Len(emu.Images, 1, path)
		emu.Close()
	}
}

func TestLoadFileErrors(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()

	emu := emulator.NewEmulator()
	defer emu.Close()

	assert.Error(loadFile(emu, filepath.Join(dir, "missing.obj")))

	odd := filepath.Join(dir, "odd.obj")
	assert.NoError(os.WriteFile(odd, []byte{0x30, 0x00, 0x10}, 0o644))
	assert.ErrorIs(loadFile(emu, odd), io.ErrImageOdd)

	bad := filepath.Join(dir, "bad.asm")
	assert.NoError(os.WriteFile(bad, []byte("halt\n"), 0o644))
	assert.Error(loadFile(emu, bad))

	assert.Empty(emu.Images)
}
