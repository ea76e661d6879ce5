//go:build cuda && !(metal && darwin)

package device

import (
	"fmt"

	"go.uber.org/zap"
)

// Probe looks for a usable CUDA device.
func Probe(log *zap.Logger) (Device, error) {
	dev, err := newCUDADevice(log)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	if log != nil {
		log.Info("Using CUDA device", zap.String("device", dev.Info().Name))
	}
	return dev, nil
}
