package target

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const maxLineSize = 1024 * 1024

// File reads newline-delimited targets lazily from disk.
//
// Lines are trimmed of surrounding whitespace. Blank lines are yielded as
// empty targets and fail when probed.
type File struct {
	path    string
	f       *os.File
	scanner *bufio.Scanner
	total   int
}

// OpenFile opens path and counts its lines so Total is known before the run.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening target file: %w", err)
	}

	total, err := countLines(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("counting lines in %q: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("rewinding %q: %w", path, err)
	}

	return &File{
		path:    path,
		f:       f,
		scanner: newScanner(f),
		total:   total,
	}, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return s
}

func countLines(r io.Reader) (int, error) {
	s := newScanner(r)
	n := 0
	for s.Scan() {
		n++
	}
	return n, s.Err()
}

func (s *File) Next(n int) ([]string, error) {
	if n < 1 {
		n = 1
	}
	batch := make([]string, 0, n)
	for len(batch) < n && s.scanner.Scan() {
		batch = append(batch, strings.TrimSpace(s.scanner.Text()))
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %q: %w", s.path, err)
	}
	return batch, nil
}

func (s *File) Total() int { return s.total }

func (s *File) Describe() string { return s.path }

// Close closes the underlying file.
func (s *File) Close() error {
	return s.f.Close()
}
