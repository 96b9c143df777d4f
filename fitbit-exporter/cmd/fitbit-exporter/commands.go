package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitbit/gitbit/fitbit-exporter/internal/auth"
	"github.com/gitbit/gitbit/fitbit-exporter/internal/export"
	"github.com/gitbit/gitbit/fitbit-exporter/internal/fitbit"
	"github.com/gitbit/gitbit/fitbit-exporter/internal/metrics"
	"github.com/gitbit/gitbit/fitbit-exporter/pkg/config"
	"github.com/gitbit/gitbit/internal/httpclient"
	"github.com/gitbit/gitbit/internal/rate"
	internalsecrets "github.com/gitbit/gitbit/internal/secrets"
	"github.com/gitbit/gitbit/pkg/logger"
	"github.com/gitbit/gitbit/pkg/secrets"
	"github.com/gitbit/gitbit/pkg/utils"
)

func newPullCmd() *cobra.Command {
	var start, end, resolution, outDir string
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download heart-rate data for every missing date in the range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.L()

			if cmd.Flags().Changed("start") {
				cfg.StartDate = start
			}
			if cmd.Flags().Changed("end") {
				cfg.EndDate = end
			}
			if cmd.Flags().Changed("resolution") {
				cfg.Resolution = resolution
			}
			if cmd.Flags().Changed("out") {
				cfg.OutputDir = outDir
			}
			if cmd.Flags().Changed("max-retries") {
				cfg.MaxRetries = maxRetries
			}
			if err := fitbit.ValidateResolution(cfg.Resolution); err != nil {
				return err
			}

			store, closeStorage, err := newCredentialStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStorage()

			engine := httpclient.New(log, store, &http.Client{Timeout: cfg.HTTPTimeout},
				httpclient.WithVenueTag("fitbit"),
				httpclient.WithMaxAttempts(cfg.MaxRetries),
				httpclient.WithLimiter(rate.New(rate.Config{
					Requests: cfg.RateLimitPerHour,
					Per:      time.Hour,
					Burst:    cfg.RateLimitBurst,
				})),
				httpclient.WithHooks(metrics.Hooks(func(remaining time.Duration) {
					if remaining%(time.Minute) == 0 || remaining <= 5*time.Second {
						log.Info("fitbit.rate_limit_wait", zap.Duration("remaining", remaining))
					}
				})),
			)
			client := fitbit.NewClient(cfg.APIBaseURL, engine)
			exporter := export.New(log, client, cfg.OutputDir, cfg.Resolution)

			sum, runErr := exporter.Run(ctx, cfg.StartDate, cfg.EndDate)
			if cfg.MetricsFile != "" {
				if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
					log.Warn("metrics.write_failed", zap.String("path", cfg.MetricsFile), zap.Error(err))
				}
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dates=%d written=%d skipped=%d failed=%d\n",
				sum.Total, sum.Written, sum.Skipped, sum.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first date to export (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last date to export (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&resolution, "resolution", fitbit.Resolution1Sec, "intraday detail level: 1min or 1sec")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory")
	cmd.Flags().IntVar(&maxRetries, "max-retries", httpclient.DefaultMaxAttempts, "re-authentication attempts per date")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new token pair and persist it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStorage, err := newCredentialStore(cmd.Context(), cfg, logger.L())
			if err != nil {
				return err
			}
			defer closeStorage()

			creds, err := store.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed access token %s\n", utils.MaskToken(creds.AccessToken))
			return nil
		},
	}
}

func newAuthorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Obtain an initial token pair (authorization code grant)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStorage, err := newCredentialStore(cmd.Context(), cfg, logger.L())
			if err != nil {
				return err
			}
			defer closeStorage()
			return store.Authorize(cmd.Context())
		},
	}
}

func newImportRedisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-redis",
		Short: "Copy credentials from the env file into the Redis credential hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			creds, err := auth.NewDotenvStorage(cfg.EnvFile).Load(ctx)
			if err != nil {
				return err
			}
			if err := creds.Validate(); err != nil {
				return err
			}

			rdb := newRedisClient(cfg)
			defer rdb.Close() //nolint:errcheck
			st := auth.NewRedisStorage(rdb, cfg.RedisKey)
			if err := st.Ping(ctx); err != nil {
				return err
			}
			if err := st.Import(ctx, creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported credentials into %s (%s)\n", cfg.RedisKey, utils.MaskDSN(cfg.RedisAddr))
			return nil
		},
	}
}

// newCredentialStore loads credentials from the configured backend, overlays
// application credentials from Secrets Manager when enabled, and returns the
// Store plus a cleanup func for the backend.
func newCredentialStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*auth.Store, func(), error) {
	storage, closeFn, err := newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	creds, err := storage.Load(ctx)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("load credentials: %w", err)
	}

	if cfg.SecretsEnabled {
		app, err := resolveAppCredentials(ctx, cfg, log)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		creds = creds.WithApp(app)
	}

	store, err := auth.NewStore(log, creds, storage, &http.Client{Timeout: cfg.HTTPTimeout})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

func newStorage(cfg *config.Config) (auth.Storage, func(), error) {
	switch cfg.CredentialBackend {
	case config.BackendDotenv, "":
		return auth.NewDotenvStorage(cfg.EnvFile), func() {}, nil
	case config.BackendRedis:
		rdb := newRedisClient(cfg)
		return auth.NewRedisStorage(rdb, cfg.RedisKey), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
}

func resolveAppCredentials(ctx context.Context, cfg *config.Config, log *zap.Logger) (auth.AppCredentials, error) {
	provider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
	if err != nil {
		return auth.AppCredentials{}, err
	}
	resolver := internalsecrets.NewAWSResolver(
		log,
		cfg.Env,
		"fitbit",
		provider,
		secrets.NewCache[auth.AppCredentials](cfg.CacheTTL),
	)
	return resolver.Resolve(ctx, cfg.SecretsProfile, auth.ParseAppSecret)
}
