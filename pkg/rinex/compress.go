package rinex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mholt/archiver/v3"
)

// Open opens a RINEX file for reading. Files compressed with unix compress (.Z) and with the
// formats known to archiver (gz, bz2, xz, lz4, sz, zst) are decompressed on the fly.
// Any other file is read as it is.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if filepath.Ext(path) == ".Z" {
		r, err := NewZReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return &decompReader{Reader: r, closer: f}, nil
	}

	format, err := archiver.ByExtension(path)
	if err != nil { // not compressed
		return f, nil
	}
	dec, ok := format.(archiver.Decompressor)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("open %s: %w: %T", path, ErrUnsupportedCompression, format)
	}

	pr, pw := io.Pipe()
	go func() {
		err := dec.Decompress(f, pw)
		f.Close()
		pw.CloseWithError(err)
	}()
	return &decompReader{Reader: pr, closer: pr}, nil
}

// ReadFileHeader reads the header of the RINEX file.
func ReadFileHeader(path string) (*Header, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	hdr, err := ReadHeader(r)
	if err != nil {
		return hdr, fmt.Errorf("%s: %w", path, err)
	}
	return hdr, nil
}

type decompReader struct {
	io.Reader
	closer io.Closer
}

func (r *decompReader) Close() error {
	return r.closer.Close()
}
