// Package backends opens a cache.Backend from a connection string. The scheme
// picks the store:
//
//	mongodb://, mongodb+srv://  MongoDB
//	redis://, rediss://         Redis
//	sqlite://<path>             SQLite file (sqlite://:memory: for a private one)
//	file://<dir>                one JSON file per document
//	memory://                   in-process maps
package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/thecopy-and-thepaste/DA/internal/config"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache/file"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache/memory"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache/mongo"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache/redis"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache/sqlite"
	"github.com/thecopy-and-thepaste/DA/internal/logging"
)

// Open connects the backend named by cfg.URI. Unknown or empty URIs are
// cache.ErrConfiguration. Connecting is bounded by cfg.ConnectTimeout when set.
func Open(ctx context.Context, cfg config.CacheConfig) (cache.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrConfiguration, err)
	}

	scheme, rest, ok := strings.Cut(cfg.URI, "://")
	if !ok {
		return nil, fmt.Errorf("%w: connection string %q has no scheme", cache.ErrConfiguration, Redact(cfg.URI))
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "cache").
		Str("operation", "open").
		Str("scheme", scheme).
		Str("database", cfg.Database).
		Msg("opening cache backend")

	var (
		backend cache.Backend
		err     error
	)
	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		backend, err = nonNil(mongo.Open(ctx, cfg.URI, cfg.Database))
	case "redis", "rediss":
		backend, err = nonNil(redis.Open(ctx, cfg.URI, cfg.Database))
	case "sqlite":
		backend, err = nonNil(sqlite.Open(ctx, rest))
	case "file":
		backend, err = nonNil(file.Open(rest))
	case "memory":
		backend = memory.New()
	default:
		err = fmt.Errorf("%w: unsupported scheme %q", cache.ErrConfiguration, scheme)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// nonNil keeps a failed constructor's nil pointer out of the interface.
func nonNil[B cache.Backend](b B, err error) (cache.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Opener returns a cache.Opener for cfg, for use with cache.Shared.
func Opener(cfg config.CacheConfig) cache.Opener {
	return func(ctx context.Context) (cache.Backend, error) {
		return Open(ctx, cfg)
	}
}

// Redact hides the credentials of a connection string.
func Redact(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at < 0 {
		return uri
	}
	if scheme, _, ok := strings.Cut(uri[:at], "://"); ok {
		return scheme + "://***@" + uri[at+1:]
	}
	return "***@" + uri[at+1:]
}
