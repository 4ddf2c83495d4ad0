//go:build windows

package launcher

import "io"

// Windows has no non-blocking reads on anonymous pipes, so every pipe goes
// through the goroutine pump.
func newOutputReader(r io.Reader) outputReader {
	return newPumpedReader(r)
}
