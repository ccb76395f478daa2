package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/repository"
	"reklamai-generation/internal/infra/metrics"
	red "reklamai-generation/internal/infra/redis"
)

var _ repository.ModelRepository = (*modelRepoCacheDecorator)(nil)

type modelRepoCacheDecorator struct {
	inner repository.ModelRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewModelRepoCacheDecorator caches model rows by id. The catalog changes rarely
// and every poll needs the model's endpoint family.
func NewModelRepoCacheDecorator(inner repository.ModelRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ModelRepository {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &modelRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}
}

func modelCacheKey(id string) string { return fmt.Sprintf("model:%s", id) }

func (d *modelRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Model, error) {
	key := modelCacheKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var m model.Model
		if json.Unmarshal([]byte(val), &m) == nil {
			metrics.IncCacheRequest("model", "hit")
			return &m, nil
		}
	} else if err != redis.Nil {
		d.log.Warn().Err(err).Str("key", key).Msg("model cache read failed")
	}

	metrics.IncCacheRequest("model", "miss")
	m, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(m); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return m, nil
}
