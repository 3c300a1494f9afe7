package segment

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"

	perr "modwatch/internal/platform/errors"
)

const maxLineSize = 32 * 1024 * 1024

// ErrLineTooLong marks a line over the reader limit; the line is consumed and
// the next call to Next carries on after it
var ErrLineTooLong = errors.New("segment: line too long")

// Reader streams the lines of a segment in file order
type Reader struct {
	f     *os.File
	br    *bufio.Reader
	buf   []byte
	max   int
	err   error
	line  int
	bytes int64
}

// Open opens a segment for reading
func Open(path string) (*Reader, error) {
	return OpenLimit(path, maxLineSize)
}

// OpenLimit is Open with an explicit per line byte limit
func OpenLimit(path string, maxLine int) (*Reader, error) {
	if maxLine <= 0 {
		maxLine = maxLineSize
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Classified(err, "open segment")
	}
	return &Reader{f: f, br: bufio.NewReaderSize(f, 512*1024), max: maxLine}, nil
}

// Next returns the next non blank line and its 1-based line number
// The slice is a copy. io.EOF marks the end. A line over the limit yields an
// error wrapping ErrLineTooLong that is not sticky
func (rd *Reader) Next() ([]byte, int, error) {
	if rd.err != nil {
		return nil, rd.line, rd.err
	}
	for {
		raw, n, err := rd.readLine()
		if n == 0 && errors.Is(err, io.EOF) {
			rd.err = io.EOF
			return nil, rd.line, io.EOF
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, ErrLineTooLong) {
			rd.err = perr.Wrapf(err, perr.ErrorCodeIO, "read %s line %d", rd.f.Name(), rd.line+1)
			return nil, rd.line, rd.err
		}
		rd.line++
		rd.bytes += int64(n)
		if errors.Is(err, ErrLineTooLong) {
			return nil, rd.line, perr.Wrapf(err, perr.ErrorCodeParse,
				"%s line %d is %d bytes, limit %d", rd.f.Name(), rd.line, n, rd.max)
		}
		raw = bytes.TrimSuffix(bytes.TrimSuffix(raw, []byte("\n")), []byte("\r"))
		if len(raw) == 0 {
			continue
		}
		cp := make([]byte, len(raw))
		copy(cp, raw)
		return cp, rd.line, nil
	}
}

// readLine consumes one line with its newline and reports the bytes consumed
// An oversized line is drained to its end without being buffered
func (rd *Reader) readLine() ([]byte, int, error) {
	rd.buf = rd.buf[:0]
	n, over := 0, false
	for {
		chunk, err := rd.br.ReadSlice('\n')
		n += len(chunk)
		if !over {
			if len(rd.buf)+len(chunk) > rd.max+1 {
				over = true
				rd.buf = rd.buf[:0]
			} else {
				rd.buf = append(rd.buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, n, err
		}
		if over {
			return nil, n, ErrLineTooLong
		}
		return rd.buf, n, err
	}
}

// Close closes the underlying file
func (rd *Reader) Close() error {
	if rd.f == nil {
		return nil
	}
	return rd.f.Close()
}

// Stats returns lines scanned and bytes consumed so far
func (rd *Reader) Stats() (lines int, bytes int64) {
	return rd.line, rd.bytes
}
