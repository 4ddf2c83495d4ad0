//go:build !windows

package launcher

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// fileReader does true non-blocking reads on a pipe file descriptor.
type fileReader struct {
	fd  int
	buf []byte
}

// newOutputReader picks the best backend for the pipe. Process pipes are
// *os.File on every platform we run on; anything else goes through the
// goroutine pump.
func newOutputReader(r io.Reader) outputReader {
	file, ok := r.(*os.File)
	if !ok {
		return newPumpedReader(r)
	}

	fd := int(file.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return newPumpedReader(r)
	}

	return &fileReader{fd: fd, buf: make([]byte, 4096)}
}

func (f *fileReader) read() (string, error) {
	n, err := unix.Read(f.fd, f.buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return "", nil
		}
		return "", err
	}
	if n == 0 {
		return "", io.EOF
	}
	return string(f.buf[:n]), nil
}
