package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/hetblas"
	"github.com/fxnlabs/hetblas/internal/config"
	"github.com/fxnlabs/hetblas/internal/logger"
)

// appEnv carries the configuration and logger loaded by the Before hook
// into whichever command runs. Commands capture the pointer, not the
// values, so they see what Before filled in.
type appEnv struct {
	cfg *config.Config
	log *zap.Logger
}

// newEngine builds an engine from the loaded configuration. Thresholds
// from the file are recorded either way; the mode decides whether
// accelerated dispatch starts enabled.
func (env *appEnv) newEngine() (*hetblas.Engine, error) {
	return hetblas.New(
		hetblas.WithLogger(env.log.Named("engine")),
		hetblas.WithBackend(env.cfg.Device.Backend),
		hetblas.WithPolicy(hetblas.Policy{
			Accelerated: env.cfg.Dispatch.Mode == config.ModeAccelerator,
			MinM:        env.cfg.Dispatch.MinM,
			MinN:        env.cfg.Dispatch.MinN,
			MinK:        env.cfg.Dispatch.MinK,
		}),
	)
}

func main() {
	var configPath string
	env := &appEnv{}

	app := &cli.App{
		Name:  "hetblas",
		Usage: "Inspect and exercise the hetblas GEMM dispatch engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Value:       "hetblas.yaml",
				Usage:       "Path to the hetblas config file",
				EnvVars:     []string{"HETBLAS_CONFIG"},
				Destination: &configPath,
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(configPath)
			missing := false
			if err != nil {
				if !os.IsNotExist(err) {
					return err
				}
				// No file is fine, the defaults cover every command.
				cfg = config.Default()
				missing = true
			}
			log, err := logger.New(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			env.cfg = cfg
			env.log = log.Named("cli")
			if missing && c.IsSet("config") {
				env.log.Warn("config file not found, using defaults", zap.String("path", configPath))
			}
			return nil
		},
		Commands: []*cli.Command{
			infoCommand(env),
			benchCommand(env),
			verifyCommand(env),
			configCommand(env),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if env.log != nil {
			env.log.Fatal("command failed", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
