package io

import (
	"bufio"
	"io"
	"sync"
)

// input is one result from the console reader goroutine.
type input struct {
	c   byte
	err error
}

// Console provides byte I/O for the LC-3 keyboard and display. It wraps an
// io.Reader for input and an io.Writer for output.
//
// Input is read by a helper goroutine, one byte ahead of the machine, so
// that Ready can report a pending key without blocking.
type Console struct {
	Input  io.Reader
	Output io.Writer

	once    sync.Once
	inputs  chan input
	done    chan struct{}
	pending *input
	err     error

	writer *bufio.Writer
}

// start launches the reader goroutine on first use.
func (con *Console) start() {
	con.once.Do(func() {
		con.inputs = make(chan input)
		con.done = make(chan struct{})
		go readInput(con.Input, con.inputs, con.done)
	})
}

// readInput feeds bytes from r to inputs until a read fails or done closes.
func readInput(r io.Reader, inputs chan<- input, done <-chan struct{}) {
	defer close(inputs)

	if r == nil {
		r = eofReader{}
	}

	var one [1]byte
	for {
		n, err := r.Read(one[:])
		if n == 0 && err == nil {
			continue
		}
		in := input{c: one[0]}
		if n == 0 {
			in = input{err: err}
		}
		select {
		case inputs <- in:
		case <-done:
			return
		}
		if n == 0 {
			return
		}
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// receive takes the next result, without blocking unless wait is set.
func (con *Console) receive(wait bool) (in input, ok bool) {
	if con.pending != nil {
		in, ok = *con.pending, true
		con.pending = nil
		return
	}

	if con.err != nil {
		in, ok = input{err: con.err}, true
		return
	}

	con.start()

	if wait {
		in, ok = <-con.inputs
	} else {
		select {
		case in, ok = <-con.inputs:
		default:
			return
		}
	}

	if !ok {
		in, ok = input{err: io.EOF}, true
	}
	if in.err != nil {
		con.err = in.err
	}

	return
}

// Ready returns true if a byte can be read without blocking.
func (con *Console) Ready() bool {
	in, ok := con.receive(false)
	if !ok {
		return false
	}
	if in.err != nil {
		return false
	}
	con.pending = &in
	return true
}

// ReadByte blocks until a byte is available from Input.
// After the first read error, the same error is always returned.
func (con *Console) ReadByte() (c byte, err error) {
	in, _ := con.receive(true)
	return in.c, in.err
}

// WriteByte buffers a byte for Output.
func (con *Console) WriteByte(c byte) (err error) {
	if con.Output == nil {
		return
	}
	if con.writer == nil {
		con.writer = bufio.NewWriter(con.Output)
	}
	return con.writer.WriteByte(c)
}

// Flush writes any buffered output.
func (con *Console) Flush() (err error) {
	if con.writer == nil {
		return
	}
	return con.writer.Flush()
}

// Close flushes output and stops the reader goroutine. A goroutine blocked
// in a Read of Input is released when that Read returns.
func (con *Console) Close() (err error) {
	err = con.Flush()
	if con.done != nil {
		close(con.done)
		con.done = nil
	}
	return
}
