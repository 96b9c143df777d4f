package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitbit/gitbit/fitbit-exporter/pkg/config"
	"github.com/gitbit/gitbit/pkg/logger"
)

var (
	envFile string
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fitbit-exporter",
		Short:         "Export Fitbit intraday heart-rate data to daily JSON files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg = config.Load(envFile)
			logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel, zap.String("run_id", uuid.NewString()))
			logger.L().Debug("config.loaded",
				zap.String("env_file", cfg.EnvFile),
				zap.String("backend", cfg.CredentialBackend),
				zap.String("command", cmd.Name()))
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file holding configuration and tokens")

	root.AddCommand(newPullCmd(), newRefreshCmd(), newAuthorizeCmd(), newImportRedisCmd())
	return root
}
