package rinex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
)

// FixOptions controls the writing of corrected files.
type FixOptions struct {
	OutDir    string // directory for the corrected files, must not be the source directory
	Backup    bool   // keep a copy of the original in OutDir/backup
	Overwrite bool   // replace existing corrected files
}

// FixedName returns the name of the corrected file: the file name without its compression
// extension plus ".gz".
func FixedName(path string) string {
	base := filepath.Base(path)
	switch ext := filepath.Ext(base); ext {
	case ".Z", ".gz", ".bz2", ".xz", ".lz4", ".sz", ".zst":
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".gz"
}

// WriteFixed writes the header lines followed by the data part of the file at path into a
// new gzip compressed file in opts.OutDir and returns the path of the new file.
// The original file is never modified.
func WriteFixed(path string, lines []string, opts FixOptions) (string, error) {
	if opts.OutDir == "" {
		return "", errors.New("no output directory")
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(opts.OutDir, FixedName(path))
	if same, err := samePath(path, dst); err != nil {
		return "", err
	} else if same {
		return "", fmt.Errorf("fix %s: output would overwrite the original", path)
	}

	if opts.Backup {
		if err := backup(path, filepath.Join(opts.OutDir, "backup")); err != nil {
			return "", fmt.Errorf("backup %s: %w", path, err)
		}
	}

	src, err := Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	out, err := os.OpenFile(dst, flags, 0o644)
	if err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeFixed(pw, src, lines))
	}()
	err = archiver.NewGz().Compress(pr, out)
	pr.Close()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("fix %s: %w", path, err)
	}
	return dst, nil
}

// writeFixed writes the lines and then everything of src behind its END OF HEADER line.
func writeFixed(w io.Writer, src io.Reader, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}

	br := bufio.NewReader(src)
	for {
		line, err := br.ReadString('\n')
		if lineLabel(strings.TrimRight(line, "\r\n")) == LabelEndOfHeader {
			break
		}
		if err == io.EOF {
			return ErrNoHeader
		}
		if err != nil {
			return err
		}
	}
	if _, err := io.Copy(bw, br); err != nil {
		return err
	}
	return bw.Flush()
}

// backup stores a copy of the file in dir. Uncompressed files are gzipped.
func backup(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, err := archiver.ByExtension(path); err != nil && filepath.Ext(path) != ".Z" {
		dst := filepath.Join(dir, filepath.Base(path)+".gz")
		os.Remove(dst) // CompressFile does not overwrite
		return archiver.CompressFile(path, dst)
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(filepath.Join(dir, filepath.Base(path)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
