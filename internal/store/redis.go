// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
)

// Redis keeps records in a sorted set scored by timestamp (Unix nanos).
type Redis struct {
	rdb      *goredis.Client
	key      string
	capacity int
}

// entry is the sorted-set member. The id keeps identical records distinct.
type entry struct {
	ID  string           `json:"id"`
	Fix gps.SatelliteFix `json:"fix"`
}

// NewRedis connects to redisURL (e.g. "redis://localhost:6379/0"). The set
// under key is trimmed to the newest capacity records on every append.
func NewRedis(ctx context.Context, redisURL, key string, capacity int) (*Redis, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: failed to ping redis: %w", ErrUnavailable, err)
	}
	return &Redis{rdb: rdb, key: key, capacity: capacity}, nil
}

func (r *Redis) Append(ctx context.Context, fix gps.SatelliteFix) error {
	defer observe("redis", "append", time.Now())

	member, err := json.Marshal(entry{ID: uuid.NewString(), Fix: fix})
	if err != nil {
		return fmt.Errorf("failed to encode satellite fix: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, r.key, goredis.Z{Score: float64(fix.Timestamp.UnixNano()), Member: member})
		pipe.ZRemRangeByRank(ctx, r.key, 0, int64(-r.capacity-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append satellite fix: %w", err)
	}
	return nil
}

func (r *Redis) Query(ctx context.Context, from, to time.Time, system string) ([]gps.SatelliteFix, error) {
	defer observe("redis", "query", time.Now())

	members, err := r.rdb.ZRangeByScore(ctx, r.key, &goredis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixNano(), 10),
		Max: strconv.FormatInt(to.UnixNano(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query satellite fixes: %w", err)
	}

	fixes := make([]gps.SatelliteFix, 0, len(members))
	for _, member := range members {
		var e entry
		if err := json.Unmarshal([]byte(member), &e); err != nil {
			return nil, fmt.Errorf("failed to decode stored fix: %w", err)
		}
		if system != "" && e.Fix.System != system {
			continue
		}
		fixes = append(fixes, e.Fix)
	}
	return fixes, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
