// Package testutil holds helpers shared by the package test suites.
package testutil

import (
	"runtime"
	"testing"
	"time"
)

// CheckGoroutines snapshots the goroutine count and returns a function to
// defer. The returned check retries for up to two seconds, since transport
// reader goroutines and subprocess waiters take a moment to unwind after
// Close.
//
//	defer testutil.CheckGoroutines(t)()
func CheckGoroutines(t *testing.T) func() {
	t.Helper()
	before := runtime.NumGoroutine()

	return func() {
		t.Helper()

		deadline := time.Now().Add(2 * time.Second)
		var after int
		for {
			after = runtime.NumGoroutine()
			if after <= before || time.Now().After(deadline) {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}

		if after > before {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			t.Errorf("goroutines leaked: %d before, %d after\n%s", before, after, buf[:n])
		}
	}
}
