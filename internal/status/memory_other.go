//go:build !linux

package status

import "runtime"

// currentRSSMB approximates memory usage from Go's own heap statistics on
// platforms without a /proc filesystem. It undercounts native allocations
// made by the cgo whisper.cpp backend, but is the only portable signal
// the standard library offers.
func currentRSSMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Sys) / (1024 * 1024)
}
