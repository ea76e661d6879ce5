package hetblas

import (
	"errors"

	"github.com/fxnlabs/hetblas/internal/device"
)

var (
	// ErrNoAccelerator is returned by UseAccelerator when the engine has no
	// device, either because the binary was built without an accelerator
	// tag or because the probe found no usable hardware.
	ErrNoAccelerator = errors.New("hetblas: no accelerator available")

	// ErrNotBuilt reports a binary compiled without accelerator support.
	// It is the cause behind ErrNoAccelerator on untagged builds.
	ErrNotBuilt = device.ErrNotBuilt

	// ErrKindUnsupported reports an element kind the active device cannot
	// execute, such as float64 on Metal.
	ErrKindUnsupported = device.ErrKindUnsupported

	// ErrEngineClosed is returned by operations on an engine after Close.
	ErrEngineClosed = errors.New("hetblas: engine is closed")
)
