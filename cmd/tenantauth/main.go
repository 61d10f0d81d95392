// Command tenantauth runs the tenantAuth HTTP service, applies database
// migrations and load-tests the engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	"github.com/MrEthical07/tenantAuth/internal/logging"
)

func main() {
	os.Exit(submain(context.Background()))
}

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix("TENANTAUTH_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "tenantauth")
	cmd := newRootCommand(baseLogger)
	ctx = withSignalCancel(ctx)
	if _, err := cmd.ExecuteContextC(ctx); err != nil {
		if err != context.Canceled {
			logging.WithSubsystem(baseLogger, "cli.root").Error("command failed", "error", err)
		}
		return 1
	}
	return 0
}

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
	logger     pslog.Logger
}

func newRootCommand(logger pslog.Logger) *cobra.Command {
	opts := &rootOptions{logger: logging.Ensure(logger)}
	cmd := &cobra.Command{
		Use:           "tenantauth",
		Short:         "Multi-tenant authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML, JSON or TOML config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newLoadtestCommand(opts))
	return cmd
}

// loadConfig reads the config file and TENANTAUTH_* environment. mutate may
// adjust raw values before validation.
func (o *rootOptions) loadConfig(mutate func(v *viper.Viper)) (tenantAuth.Config, error) {
	v := tenantAuth.NewConfigViper()
	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		if err := v.ReadInConfig(); err != nil {
			return tenantAuth.Config{}, fmt.Errorf("%w: read %s: %v", tenantAuth.ErrInvalidConfig, o.configPath, err)
		}
	}
	if mutate != nil {
		mutate(v)
	}
	return tenantAuth.ConfigFromViper(v)
}

// leveledLogger applies logging.level. An empty or unknown level leaves the
// logger unchanged.
func (o *rootOptions) leveledLogger(cfg tenantAuth.Config) pslog.Logger {
	if cfg.Logging.Level == "" {
		return o.logger
	}
	level, ok := pslog.ParseLevel(cfg.Logging.Level)
	if !ok {
		o.logger.Warn("cli.config.log_level_invalid", "level", cfg.Logging.Level)
		return o.logger
	}
	return o.logger.LogLevel(level)
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
