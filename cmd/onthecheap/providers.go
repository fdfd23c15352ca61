package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"onthecheap/internal/config"
	"onthecheap/internal/events"
	"onthecheap/internal/provider"
)

// buildProviders constructs the enabled adapters over a shared response
// cache. The returned cleanup closes the Redis client, if one was opened.
func buildProviders(ctx context.Context, c *config.Config) (*provider.Registry, func(), error) {
	cache, cleanup := buildCache(ctx, c)

	var adapters []provider.Provider
	for _, name := range c.Providers.Enabled {
		pc := provider.Config{
			APIKey:            c.Providers.Key(name),
			HTTPClient:        &http.Client{Timeout: c.Providers.Timeout},
			Cache:             cache,
			RequestsPerSecond: c.Providers.RequestsPerSecond,
			Burst:             c.Providers.Burst,
		}
		var (
			p   provider.Provider
			err error
		)
		switch name {
		case config.ProviderFoursquare:
			p, err = provider.NewFoursquare(pc)
		case config.ProviderGooglePlaces:
			p, err = provider.NewGooglePlaces(pc)
		default:
			err = fmt.Errorf("unknown provider %q", name)
		}
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("provider %s: %w", name, err)
		}
		adapters = append(adapters, p)
	}

	registry := provider.NewRegistry(adapters...)
	log.Info().Strs("providers", registry.Names()).Msg("venue providers configured")
	return registry, cleanup, nil
}

// buildCache returns the in-process TTL cache, backed by Redis when
// REDIS_URL is set and the server answers a ping. An unreachable Redis
// leaves the local tier on its own.
func buildCache(ctx context.Context, c *config.Config) (provider.Cache, func()) {
	local := provider.NewTTLCache(c.Cache.TTL, c.Cache.MaxEntries)
	noop := func() {}
	if c.Redis.URL == "" {
		return local, noop
	}

	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, using local provider cache only")
		return local, noop
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, using local provider cache only")
		_ = client.Close()
		return local, noop
	}

	shared := provider.NewRedisCache(client, c.Redis.Prefix, c.Cache.TTL)
	return provider.Tiered{Local: local, Shared: shared}, func() { _ = client.Close() }
}

// buildPublisher returns the AMQP publisher when RABBITMQ_URL is set and a
// no-op publisher otherwise.
func buildPublisher(c *config.Config) (events.Publisher, func()) {
	if c.Events.URL == "" {
		return events.Nop{}, func() {}
	}
	pub := events.NewAMQPPublisher(c.Events.URL, c.Events.Queue)
	return pub, func() {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("close event publisher")
		}
	}
}
