package launcher

import (
	"io"
)

// outputReader reads whatever a process pipe currently has without blocking.
// read returns an empty string when no data is available, and io.EOF once the
// pipe is closed and drained.
type outputReader interface {
	read() (string, error)
}

// pumpedReader adapts a blocking reader by pumping it from a goroutine into a
// channel. Used where non-blocking file reads are unavailable.
type pumpedReader struct {
	chunks chan []byte
	done   chan struct{}
}

func newPumpedReader(r io.Reader) *pumpedReader {
	p := &pumpedReader{
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				p.chunks <- chunk
			}
			if err != nil {
				return
			}
		}
	}()

	return p
}

func (p *pumpedReader) read() (string, error) {
	select {
	case chunk := <-p.chunks:
		return string(chunk), nil
	default:
	}

	select {
	case <-p.done:
		// A chunk may have landed between the two selects.
		select {
		case chunk := <-p.chunks:
			return string(chunk), nil
		default:
			return "", io.EOF
		}
	default:
		return "", nil
	}
}
