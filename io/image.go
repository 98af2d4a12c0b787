package io

import (
	"encoding/binary"
	"io"
)

// Image is an LC-3 object image: a block of words and the address
// of its first word.
type Image struct {
	Origin uint16
	Words  []uint16
}

// ReadImage reads an image of big-endian words. The first word is the
// origin; every following word is placed at consecutive addresses.
func ReadImage(r io.Reader) (image *Image, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return
	}

	if len(data) < 2 {
		err = ErrImageShort
		return
	}

	if len(data)%2 != 0 {
		err = ErrImageOdd
		return
	}

	image = &Image{
		Origin: binary.BigEndian.Uint16(data),
		Words:  make([]uint16, len(data)/2-1),
	}
	for n := range image.Words {
		image.Words[n] = binary.BigEndian.Uint16(data[2+n*2:])
	}

	err = image.Validate()
	if err != nil {
		image = nil
	}

	return
}

// Validate checks that the image fits in memory above its origin.
func (image *Image) Validate() (err error) {
	if int(image.Origin)+len(image.Words) > 1<<16 {
		err = ErrImageOverflow
	}
	return
}

// WriteTo writes the image in the format read by ReadImage.
func (image *Image) WriteTo(w io.Writer) (n int64, err error) {
	data := make([]byte, 0, 2+2*len(image.Words))
	data = binary.BigEndian.AppendUint16(data, image.Origin)
	for _, word := range image.Words {
		data = binary.BigEndian.AppendUint16(data, word)
	}

	written, err := w.Write(data)
	n = int64(written)
	return
}
