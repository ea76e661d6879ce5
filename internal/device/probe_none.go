//go:build !cuda && !(metal && darwin)

package device

import (
	"fmt"

	"go.uber.org/zap"
)

// Probe reports which accelerator the build supports. Without the cuda or
// metal build tags there is nothing to find, and callers get an explicit
// error instead of a silent host fallback.
func Probe(log *zap.Logger) (Device, error) {
	if log != nil {
		log.Info("No accelerator support compiled in (build with -tags cuda or -tags metal)")
	}
	return nil, fmt.Errorf("probe: %w", ErrNotBuilt)
}
