package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedDirectory serves professional rates from Redis and falls back to the
// wrapped directory on a miss or any cache error. The directory is owned
// elsewhere and sends no change notifications, so a new rate takes effect once
// the cached entry expires after ttl.
type CachedDirectory struct {
	Directory
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedDirectory(inner Directory, client redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedDirectory {
	return &CachedDirectory{
		Directory: inner,
		client:    client,
		ttl:       ttl,
		log:       log.With(zap.String("component", "rate-cache")),
	}
}

func rateKey(id uuid.UUID) string {
	return "rate:" + id.String()
}

func (d *CachedDirectory) GetProfessionalRate(ctx context.Context, professionalID uuid.UUID) (Rate, error) {
	key := rateKey(professionalID)

	val, err := d.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if rate, perr := parseRate(val); perr == nil {
			return rate, nil
		}
		d.log.Warn("Discarding malformed cached rate", zap.String("key", key), zap.String("value", val))
	case !errors.Is(err, redis.Nil):
		d.log.Warn("Rate cache read failed", zap.Error(err), zap.String("key", key))
	}

	rate, err := d.Directory.GetProfessionalRate(ctx, professionalID)
	if err != nil {
		return Rate{}, err
	}

	if err := d.client.Set(ctx, key, formatRate(rate), d.ttl).Err(); err != nil {
		d.log.Warn("Rate cache write failed", zap.Error(err), zap.String("key", key))
	}
	return rate, nil
}

func formatRate(r Rate) string {
	return strconv.FormatInt(r.AmountCents, 10) + ":" + r.Currency
}

func parseRate(s string) (Rate, error) {
	cents, currency, ok := strings.Cut(s, ":")
	if !ok || len(currency) != 3 {
		return Rate{}, fmt.Errorf("malformed rate %q", s)
	}
	amount, err := strconv.ParseInt(cents, 10, 64)
	if err != nil {
		return Rate{}, fmt.Errorf("malformed rate %q: %w", s, err)
	}
	return Rate{AmountCents: amount, Currency: currency}, nil
}
