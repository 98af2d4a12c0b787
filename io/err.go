package io

import (
	"errors"

	"github.com/ezrec/lc3/translate"
)

var f = translate.From

var (
	// Image errors
	ErrImageShort    = errors.New(f("image has no origin"))
	ErrImageOdd      = errors.New(f("image has an odd number of bytes"))
	ErrImageOverflow = errors.New(f("image extends past the end of memory"))
)
