//go:build cuda && metal && darwin

package device

import (
	"fmt"

	"go.uber.org/zap"
)

// Probe selects between compiled-in backends. Metal is preferred on
// macOS; CUDA is the fallback.
func Probe(log *zap.Logger) (Device, error) {
	if dev, err := newMetalDevice(log); err == nil {
		if log != nil {
			log.Info("Using Metal device", zap.String("device", dev.Info().Name))
		}
		return dev, nil
	} else if log != nil {
		log.Warn("Metal device not available", zap.Error(err))
	}

	dev, err := newCUDADevice(log)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	if log != nil {
		log.Info("Using CUDA device", zap.String("device", dev.Info().Name))
	}
	return dev, nil
}
