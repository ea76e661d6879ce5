//go:build !linux

package device

// totalSystemMemory returns total system memory in bytes.
// There is no portable probe here, so a conservative default is used.
func totalSystemMemory() int64 {
	return 8 * 1024 * 1024 * 1024 // 8GB
}

// availableSystemMemory returns available system memory in bytes.
func availableSystemMemory() int64 {
	return 4 * 1024 * 1024 * 1024 // 4GB
}
