package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	errx "github.com/storefront-agent/server/internal/core/error"
	logx "github.com/storefront-agent/server/pkg/logger"
)

const DefaultKey = "catalog:products"

// RedisStore keeps the catalog in a single Redis hash: field = handle,
// value = JSON record. Hash fields carry no order, so Scroll sorts by handle
// to give every caller the same scan order for an unchanged catalog.
type RedisStore struct {
	rdb redis.Cmdable
	key string
}

func NewRedisStore(rdb redis.Cmdable, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Scroll(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}

	handles := make([]string, 0, len(rows))
	for handle := range rows {
		handles = append(handles, handle)
	}
	sort.Strings(handles)

	records := make([]Record, 0, len(handles))
	for _, handle := range handles {
		if limit > 0 && len(records) >= limit {
			break
		}
		var rec Record
		if err := json.Unmarshal([]byte(rows[handle]), &rec); err != nil {
			// A corrupt payload skips one record, not the scan.
			logx.Warn().Err(err).Str("handle", handle).Msg("skipping undecodable catalog record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RedisStore) Upsert(ctx context.Context, rec Record) error {
	if rec.Handle == "" {
		return errx.WrapValidation(fmt.Errorf("record %q has no handle", rec.Title), "catalog record requires a handle")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal catalog record: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.key, rec.Handle, payload).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, handle string) error {
	if err := s.rdb.HDel(ctx, s.key, handle).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
