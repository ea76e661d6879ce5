//go:build metal && darwin && !cuda

package device

import (
	"fmt"

	"go.uber.org/zap"
)

// Probe looks for a usable Metal device.
func Probe(log *zap.Logger) (Device, error) {
	dev, err := newMetalDevice(log)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	if log != nil {
		log.Info("Using Metal device", zap.String("device", dev.Info().Name))
	}
	return dev, nil
}
