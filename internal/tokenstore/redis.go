package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lildude/lastactivity/internal/cache"
	"github.com/lildude/lastactivity/internal/token"
)

// DefaultRedisKey is the key the token is stored under.
const DefaultRedisKey = "strava_access_token"

// Redis stores the token as a JSON string under one key.
type Redis struct {
	cache cache.Cache
	key   string
}

func NewRedis(c cache.Cache, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{cache: c, key: key}
}

func (r *Redis) Load(ctx context.Context) (*token.CachedToken, error) {
	var t token.CachedToken
	err := r.cache.GetJSON(ctx, r.key, &t)
	if errors.Is(err, cache.ErrMiss) {
		return nil, token.ErrNotFound
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return nil, fmt.Errorf("%w: %v", token.ErrMalformed, err)
	}
	if err != nil {
		return nil, fmt.Errorf("loading token from redis: %w", err)
	}
	return &t, nil
}

func (r *Redis) Save(ctx context.Context, t *token.CachedToken) error {
	if err := r.cache.SetJSON(ctx, r.key, t); err != nil {
		return fmt.Errorf("saving token to redis: %w", err)
	}
	return nil
}
