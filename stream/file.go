package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"
)

// Compress wraps w into a zlib stream. Closing the returned writer doesn't close w.
func Compress(w io.Writer) io.WriteCloser {
	return zlib.NewWriter(w)
}

// Decompress unwraps a zlib stream.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	return zr, nil
}

// ReadCloser is a [Reader] over a file.
type ReadCloser struct {
	Reader
	closers []io.Closer
}

// Open opens a sequence file. If compressed is true the file is a zlib stream.
func Open(path string, f Format, compressed bool) (*ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	rc := ReadCloser{closers: []io.Closer{file}}

	var r io.Reader = bufio.NewReaderSize(file, 1<<20)
	if compressed {
		zr, err := Decompress(r)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		rc.closers = append([]io.Closer{zr}, rc.closers...)
		r = zr
	}

	rc.Reader = NewReader(r, f)
	return &rc, nil
}

func (rc *ReadCloser) Close() error {
	var errs []error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteCloser is a [Writer] over a file.
type WriteCloser struct {
	Writer
	closeFunc func() error
}

// Create creates or truncates a sequence file. If compressed is true the file is written as a
// zlib stream.
func Create(path string, f Format, compressed bool) (*WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	var (
		buf = bufio.NewWriterSize(file, 1<<20)
		w   io.Writer
		zw  io.WriteCloser
	)
	w = buf
	if compressed {
		zw = Compress(buf)
		w = zw
	}

	wc := WriteCloser{Writer: NewWriter(w, f)}
	wc.closeFunc = func() error {
		var errs []error
		if err := wc.Writer.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush encoder: %w", err))
		}
		if zw != nil {
			if err := zw.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close zlib stream: %w", err))
			}
		}
		if err := buf.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush file: %w", err))
		}
		if err := file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		return errors.Join(errs...)
	}

	return &wc, nil
}

// Close flushes everything and closes the file.
func (wc *WriteCloser) Close() error {
	return wc.closeFunc()
}
