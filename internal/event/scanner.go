package event

import (
	"bufio"
	"errors"
	"io"
)

// Scanner reads events from an NDJSON stream one line at a time.
type Scanner struct {
	r       *bufio.Reader
	ev      Event
	err     error
	lines   int64
	skipped int64
}

// NewScanner wraps r. Lines of any length are accepted.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next line. It returns false at EOF or on a read error.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	line, err := s.r.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return false
	}
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
		return false
	}

	s.lines++
	s.ev = Parse(trimLine(line))
	if _, bad := s.ev.(Unrecognized); bad {
		s.skipped++
	}
	return true
}

// Event returns the event decoded by the last call to Next.
func (s *Scanner) Event() Event { return s.ev }

// Err returns the first non-EOF read error.
func (s *Scanner) Err() error { return s.err }

// Lines returns the number of lines read so far.
func (s *Scanner) Lines() int64 { return s.lines }

// Skipped returns how many lines decoded to Unrecognized.
func (s *Scanner) Skipped() int64 { return s.skipped }

func trimLine(line []byte) []byte {
	for len(line) > 0 {
		last := line[len(line)-1]
		if last != '\n' && last != '\r' {
			break
		}
		line = line[:len(line)-1]
	}
	return line
}
