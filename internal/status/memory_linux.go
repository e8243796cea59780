//go:build linux

package status

import (
	"os"
	"strconv"
	"strings"
)

// currentRSSMB reads the resident set size of this process from
// /proc/self/statm, the field in pages per proc(5).
func currentRSSMB() float64 {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	pageSize := int64(os.Getpagesize())
	return float64(pages*pageSize) / (1024 * 1024)
}
