package main

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/fxnlabs/hetblas/internal/device"
)

func infoCommand(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the accelerator this binary can reach",
		Action: func(c *cli.Context) error {
			fmt.Printf("Host kernel: gonum (%s/%s, %d threads)\n", runtime.GOOS, runtime.GOARCH, runtime.GOMAXPROCS(0))

			dev, err := device.Probe(env.log)
			if err != nil {
				fmt.Printf("Accelerator: none (%v)\n", err)
				return nil
			}
			defer dev.Close()

			info := dev.Info()
			fmt.Printf("Accelerator: %s\n", dev.Name())
			fmt.Printf("   Device: %s\n", info.Name)
			if info.ComputeCapability != "" {
				fmt.Printf("   Compute capability: %s\n", info.ComputeCapability)
			}
			if info.DriverVersion != "" {
				fmt.Printf("   Driver: %s\n", info.DriverVersion)
			}
			if info.RuntimeVersion != "" {
				fmt.Printf("   Runtime: %s\n", info.RuntimeVersion)
			}
			fmt.Printf("   VRAM: %d MB total, %d MB available\n",
				info.TotalMemory/(1024*1024), info.AvailableMemory/(1024*1024))
			return nil
		},
	}
}
