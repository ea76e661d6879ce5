//go:build linux

package device

import "golang.org/x/sys/unix"

// totalSystemMemory returns total system memory in bytes.
func totalSystemMemory() int64 {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 8 * 1024 * 1024 * 1024 // 8GB
	}
	return int64(si.Totalram) * int64(si.Unit)
}

// availableSystemMemory returns free plus buffered system memory in bytes.
func availableSystemMemory() int64 {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 4 * 1024 * 1024 * 1024 // 4GB
	}
	return int64(si.Freeram+si.Bufferram) * int64(si.Unit)
}
