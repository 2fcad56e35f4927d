package tabular

import (
	"bufio"
	"errors"
	"io"
)

// peekReader lets the delimiter sniffer look at the header line without
// consuming it.
type peekReader struct {
	*bufio.Reader
}

func newPeekReader(r io.Reader) *peekReader {
	return &peekReader{Reader: bufio.NewReaderSize(r, 64*1024)}
}

func (p *peekReader) firstLine() (string, error) {
	for size := 512; ; size *= 2 {
		buf, err := p.Peek(size)
		for i, c := range buf {
			if c == '\n' {
				return string(buf[:i]), nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, bufio.ErrBufferFull) {
				return string(buf), nil
			}
			return "", err
		}
	}
}
