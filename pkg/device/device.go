// Package device picks the inference backend/target pair. Pure query, no
// failure modes: when no CUDA device is visible it falls back to the CPU.
package device

import (
	"fmt"
	"runtime"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/cuda"
)

type Descriptor struct {
	Accelerated bool
	Name        string
	Devices     int
	Backend     gocv.NetBackendType
	Target      gocv.NetTargetType
}

func Probe() Descriptor {
	if n := cuda.GetCudaEnabledDeviceCount(); n > 0 {
		return Descriptor{
			Accelerated: true,
			Name:        fmt.Sprintf("CUDA accelerator (%d visible)", n),
			Devices:     n,
			Backend:     gocv.NetBackendCUDA,
			Target:      gocv.NetTargetCUDA,
		}
	}
	return Descriptor{
		Accelerated: false,
		Name:        fmt.Sprintf("CPU (%d threads)", runtime.NumCPU()),
		Devices:     0,
		Backend:     gocv.NetBackendDefault,
		Target:      gocv.NetTargetCPU,
	}
}

func (d Descriptor) String() string {
	return d.Name
}
