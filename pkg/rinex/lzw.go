package rinex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	zMagic0   = 0x1f
	zMagic1   = 0x9d
	zBitsMask = 0x1f
	zBlock    = 0x80
	zClear    = 256
	zInitBits = 9
)

// zReader decompresses data written by the unix compress program (.Z files).
type zReader struct {
	r       *bufio.Reader
	maxBits uint
	block   bool

	width   uint
	bitBuf  uint32
	nBits   uint
	nCodes  int // codes read with the current width
	maxCode int
	free    int
	old     int
	fin     byte

	prefix []uint16
	suffix []byte
	stack  []byte
	out    []byte
	err    error
}

// NewZReader returns a reader that decompresses the .Z stream from r.
func NewZReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	var magic [3]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("read .Z header: %w", err)
	}
	if magic[0] != zMagic0 || magic[1] != zMagic1 {
		return nil, fmt.Errorf("%w: no .Z magic number", ErrUnsupportedCompression)
	}
	maxBits := uint(magic[2] & zBitsMask)
	if maxBits < zInitBits || maxBits > 16 {
		return nil, fmt.Errorf("%w: .Z with %d bits", ErrUnsupportedCompression, maxBits)
	}

	z := &zReader{
		r:       br,
		maxBits: maxBits,
		block:   magic[2]&zBlock != 0,
		width:   zInitBits,
		maxCode: 1<<zInitBits - 1,
		old:     -1,
		prefix:  make([]uint16, 1<<maxBits),
		suffix:  make([]byte, 1<<maxBits),
	}
	z.free = 256
	if z.block {
		z.free = 257
	}
	return z, nil
}

func (z *zReader) Read(p []byte) (int, error) {
	for len(z.out) == 0 {
		if z.err != nil {
			return 0, z.err
		}
		z.err = z.decode()
	}
	n := copy(p, z.out)
	z.out = z.out[n:]
	return n, nil
}

// decode reads the next code and puts its string into the output buffer.
func (z *zReader) decode() error {
	if z.free > z.maxCode {
		if err := z.skipGroup(); err != nil {
			return err
		}
		z.width++
		if z.width == z.maxBits {
			z.maxCode = 1 << z.maxBits
		} else {
			z.maxCode = 1<<z.width - 1
		}
	}

	code, err := z.readCode()
	if err != nil {
		return err
	}

	if z.old < 0 {
		if code > 255 {
			return errors.New(".Z: corrupt input")
		}
		z.old = code
		z.fin = byte(code)
		z.out = append(z.out[:0], z.fin)
		return nil
	}

	if code == zClear && z.block {
		if err := z.skipGroup(); err != nil {
			return err
		}
		z.width = zInitBits
		z.maxCode = 1<<zInitBits - 1
		z.free = 257
		z.old = -1
		return nil
	}

	in := code
	stack := z.stack[:0]
	if code >= z.free {
		if code > z.free {
			return errors.New(".Z: corrupt input")
		}
		stack = append(stack, z.fin)
		code = z.old
	}
	for code >= 256 {
		stack = append(stack, z.suffix[code])
		code = int(z.prefix[code])
	}
	z.fin = byte(code)
	stack = append(stack, z.fin)

	z.out = z.out[:0]
	for i := len(stack) - 1; i >= 0; i-- {
		z.out = append(z.out, stack[i])
	}
	z.stack = stack

	if z.free < 1<<z.maxBits {
		z.prefix[z.free] = uint16(z.old)
		z.suffix[z.free] = z.fin
		z.free++
	}
	z.old = in
	return nil
}

// readCode returns the next code, least significant bit first.
// A trailing partial code at the end of the input is io.EOF.
func (z *zReader) readCode() (int, error) {
	for z.nBits < z.width {
		b, err := z.r.ReadByte()
		if err != nil {
			return 0, err
		}
		z.bitBuf |= uint32(b) << z.nBits
		z.nBits += 8
	}
	code := int(z.bitBuf & (1<<z.width - 1))
	z.bitBuf >>= z.width
	z.nBits -= z.width
	z.nCodes++
	return code, nil
}

// skipGroup discards the rest of the current group of eight codes. Codes are written in
// groups and a width change always starts a new group.
func (z *zReader) skipGroup() error {
	if rem := z.nCodes % 8; rem != 0 {
		for n := 8 - rem; n > 0; n-- {
			if _, err := z.readCode(); err != nil {
				return err
			}
		}
	}
	z.nCodes = 0
	return nil
}
