package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flovouin/dashviz/dashapi"
	"github.com/flovouin/dashviz/internal/cache"
	"github.com/flovouin/dashviz/internal/metadata"
)

// Initializes the API client using the configuration.
// The first credentials set among the token, the API key, and the username and password are used. Without any
// credentials, the client only performs unauthenticated requests.
func makeClient(ctx context.Context, config apiConfig) (*dashapi.Client, error) {
	if len(config.Endpoint) == 0 {
		return nil, errors.New("the API endpoint should be set and non-empty")
	}

	switch {
	case len(config.Token) > 0 && len(config.CookieName) > 0:
		return dashapi.MakeAuthenticatedClientWithCookie(config.Endpoint, config.CookieName, config.Token)
	case len(config.Token) > 0:
		return dashapi.MakeAuthenticatedClientWithToken(config.Endpoint, config.Token)
	case len(config.ApiKey) > 0:
		return dashapi.MakeAuthenticatedClientWithApiKey(config.Endpoint, config.ApiKey)
	case len(config.Username) > 0:
		if len(config.Password) == 0 {
			return nil, errors.New("the API password should be set when a username is provided")
		}
		return dashapi.MakeAuthenticatedClientWithCredentials(ctx, config.Endpoint, config.Username, config.Password)
	default:
		return dashapi.NewClient(config.Endpoint)
	}
}

// Creates the cache for metadata tables. Returns a `nil` cache if caching is disabled.
// The returned function releases the resources held by the cache.
func makeCache(config cacheConfig) (cache.Cache, func() error, error) {
	noop := func() error { return nil }

	switch config.Backend {
	case "", "none":
		return nil, noop, nil
	case "memory":
		return cache.NewMemory(), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		return cache.NewRedis(client, config.Prefix), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", config.Backend)
	}
}

// Creates the store of metadata tables fetched through the client.
func makeStore(a *app, client *dashapi.Client, c cache.Cache) *metadata.Store {
	loader := &metadata.APILoader{
		Client:       client,
		PathTemplate: a.config.Metadata.Path,
		RowsPath:     a.config.Metadata.RowsPath,
	}

	opts := []metadata.StoreOption{metadata.WithLogger(a.logger)}
	if c != nil {
		opts = append(opts, metadata.WithCache(c, a.config.Cache.TTL))
	}

	return metadata.NewStore(loader, opts...)
}
