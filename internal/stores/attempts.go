package stores

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goFaceAuth/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "fa"

const (
	fieldSuccess = "s"
	fieldFailed  = "f"
	fieldLast    = "t"
)

// AttemptStore keeps per-identity counters in a hash and failure
// timestamps in a sorted set scored by Unix milliseconds. Every update runs
// inside one MULTI/EXEC so concurrent attempts cannot lose increments.
type AttemptStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewAttemptStore(redisClient redis.UniversalClient, prefix string) *AttemptStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &AttemptStore{redis: redisClient, prefix: prefix}
}

// Both keys share the identity hash tag so the MULTI/EXEC stays on one
// cluster slot.
func (s *AttemptStore) countersKey(identity string) string {
	return s.prefix + ":c:{" + identity + "}"
}

func (s *AttemptStore) windowKey(identity string) string {
	return s.prefix + ":w:{" + identity + "}"
}

func (s *AttemptStore) RecordAttempt(
	ctx context.Context,
	identity string,
	success bool,
	at time.Time,
	retain time.Duration,
) (store.Counters, error) {
	ck := s.countersKey(identity)
	wk := s.windowKey(identity)
	atMillis := at.UnixMilli()

	var counters *redis.MapStringStringCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if success {
			pipe.HIncrBy(ctx, ck, fieldSuccess, 1)
		} else {
			pipe.HIncrBy(ctx, ck, fieldFailed, 1)
			pipe.ZAdd(ctx, wk, redis.Z{Score: float64(atMillis), Member: uuid.NewString()})
			if retain > 0 {
				cutoff := at.Add(-retain).UnixMilli()
				pipe.ZRemRangeByScore(ctx, wk, "-inf", "("+strconv.FormatInt(cutoff, 10))
				pipe.PExpire(ctx, wk, retain)
			}
		}
		pipe.HSet(ctx, ck, fieldLast, atMillis)
		counters = pipe.HGetAll(ctx, ck)
		return nil
	})
	if err != nil {
		return store.Counters{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return parseCounters(counters.Val())
}

func (s *AttemptStore) Counters(ctx context.Context, identity string) (store.Counters, error) {
	values, err := s.redis.HGetAll(ctx, s.countersKey(identity)).Result()
	if err != nil {
		return store.Counters{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return parseCounters(values)
}

func (s *AttemptStore) FailuresSince(ctx context.Context, identity string, since time.Time) (int, error) {
	n, err := s.redis.ZCount(ctx, s.windowKey(identity), "("+strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return int(n), nil
}

func (s *AttemptStore) ResetFailures(ctx context.Context, identity string, counters bool) error {
	keys := []string{s.windowKey(identity)}
	if counters {
		keys = append(keys, s.countersKey(identity))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func parseCounters(values map[string]string) (store.Counters, error) {
	var out store.Counters
	if len(values) == 0 {
		return out, nil
	}

	var err error
	if v, ok := values[fieldSuccess]; ok {
		if out.Success, err = strconv.ParseUint(v, 10, 64); err != nil {
			return store.Counters{}, fmt.Errorf("%w: corrupt success counter", store.ErrUnavailable)
		}
	}
	if v, ok := values[fieldFailed]; ok {
		if out.Failed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return store.Counters{}, fmt.Errorf("%w: corrupt failed counter", store.ErrUnavailable)
		}
	}
	if v, ok := values[fieldLast]; ok {
		ms, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return store.Counters{}, fmt.Errorf("%w: corrupt last attempt: %v", store.ErrUnavailable, perr)
		}
		out.LastAttempt = time.UnixMilli(ms).UTC()
	}
	return out, nil
}
