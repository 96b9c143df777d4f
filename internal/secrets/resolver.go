package secrets

import (
	"context"
	"fmt"
	"strings"

	pkgsecrets "github.com/gitbit/gitbit/pkg/secrets"
	"go.uber.org/zap"
)

// AWSResolver resolves per-profile application config from a secrets Provider,
// caching results locally. It is generic over the resolved config type T.
//
// Secret naming convention: {env}/{profile}/{venue}
type AWSResolver[T any] struct {
	logger   *zap.Logger
	env      string
	venue    string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
}

// NewAWSResolver constructs a config resolver.
func NewAWSResolver[T any](
	logger *zap.Logger,
	env string,
	venue string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[T],
) *AWSResolver[T] {
	return &AWSResolver[T]{
		logger:   logger,
		env:      env,
		venue:    venue,
		provider: provider,
		cache:    cache,
	}
}

func (r *AWSResolver[T]) cacheKey(profile string) string {
	return strings.ToLower(fmt.Sprintf("%s|%s", profile, r.venue))
}

// SecretName builds the Secrets Manager name for a profile.
func (r *AWSResolver[T]) SecretName(profile string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, profile, r.venue))
}

// Resolve returns the cached or freshly fetched config for profile.
// parse extracts T from the raw secret map and should validate required fields.
func (r *AWSResolver[T]) Resolve(ctx context.Context, profile string, parse func(map[string]string) (T, error)) (T, error) {
	key := r.cacheKey(profile)
	if cfg, ok := r.cache.Get(key); ok {
		return cfg, nil
	}

	name := r.SecretName(profile)
	secretMap, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", name),
			zap.Error(err))
		var zero T
		return zero, fmt.Errorf("resolve config for profile %q: %w", profile, err)
	}

	cfg, err := parse(secretMap)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parse secret %q: %w", name, err)
	}

	r.cache.Put(key, cfg)

	r.logger.Info("aws.config_resolved",
		zap.String("profile", profile),
		zap.String("venue", r.venue),
	)
	return cfg, nil
}
