//go:build !(aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris || zos)

package term

import (
	"golang.org/x/term"
)

// makeInput falls back to raw mode where termios is not available.
func makeInput(fd int) (err error) {
	_, err = term.MakeRaw(fd)
	return
}
