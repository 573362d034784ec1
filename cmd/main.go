package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	harness "github.com/ethereum-optimism/infra/op-harness"
	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/ethereum-optimism/infra/op-harness/flags"
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	oprpc "github.com/ethereum-optimism/optimism/op-service/rpc"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-harness"
	app.Usage = "Concurrent test harness for compiled Go test modules"
	app.ArgsUsage = "<path-to-compiled-test-module>"
	app.Description = "op-harness loads a test module built with -buildmode=plugin, runs its tests " +
		"concurrently with per-test timeouts and scoped fixtures, and reports the results. " +
		"A timed out test body is not stopped; it keeps running in the background after its result is recorded."
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if harness.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if harness.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// lifecycle runs the harness together with its healthz/status and metrics
// endpoints
type lifecycle struct {
	*harness.Harness
	svc *service.Service
}

func (l *lifecycle) Stop(ctx context.Context) error {
	err := l.Harness.Stop(ctx)
	l.svc.Shutdown()
	return err
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := harness.NewConfig(ctx, log, ctx.Args().First())
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, harness.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	provider, err := registry.LoadPlugin(cfg.ModulePath, log)
	if err != nil {
		return nil, harness.NewRuntimeError(fmt.Errorf("failed to load test module: %w", err))
	}

	rpcCfg := oprpc.ReadCLIConfig(ctx)
	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	svc := service.New(service.Config{
		HealthzAddr:    service.HostPort(rpcCfg.ListenAddr, rpcCfg.ListenPort),
		MetricsAddr:    service.HostPort(metricsCfg.ListenAddr, metricsCfg.ListenPort),
		MetricsEnabled: metricsCfg.Enabled,
	})

	h, err := harness.New(cfg, provider, Version, closeApp, harness.WithStatusPublisher(svc))
	if err != nil {
		return nil, harness.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
	}

	if !cfg.ListOnly {
		svc.Start(ctx.Context)
	}
	return &lifecycle{Harness: h, svc: svc}, nil
}
