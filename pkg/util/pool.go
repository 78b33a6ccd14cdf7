package util

import "runtime"

// GetOptimalPoolSize sizes parser pools and conversion workers:
// min(max(NumCPU*2, 4), 32).
//
// Parsing happens in cgo, so twice the core count keeps every core busy
// while goroutines wait on cgo calls. The cap bounds parser memory on large
// machines.
func GetOptimalPoolSize() int {
	return clampPoolSize(runtime.NumCPU() * 2)
}

// GetOptimalPoolSizeWithOverride returns override when positive and
// GetOptimalPoolSize otherwise.
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}

func clampPoolSize(n int) int {
	return min(max(n, 4), 32)
}
