package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const auditPayloadField = "r"

var ErrAuditLogBackend = errors.New("audit log backend unavailable")

// AuditLogEntry is one raw entry of an identity's audit stream.
type AuditLogEntry struct {
	ID      string
	Payload []byte
}

// AuditLogStore appends opaque audit payloads to a capped Redis stream per
// identity. Entries are never rewritten.
type AuditLogStore struct {
	redis  redis.UniversalClient
	prefix string
	maxLen int64
}

func NewAuditLogStore(redisClient redis.UniversalClient, prefix string, maxLen int64) *AuditLogStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &AuditLogStore{
		redis:  redisClient,
		prefix: prefix,
		maxLen: maxLen,
	}
}

func (s *AuditLogStore) key(identity string) string {
	return s.prefix + ":a:" + identity
}

func (s *AuditLogStore) Append(ctx context.Context, identity string, payload []byte) (string, error) {
	args := &redis.XAddArgs{
		Stream: s.key(identity),
		Values: map[string]interface{}{auditPayloadField: payload},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
	}
	id, err := s.redis.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuditLogBackend, err)
	}
	return id, nil
}

// Recent returns up to limit entries newer than since, newest first. A zero
// since returns the whole retained stream.
func (s *AuditLogStore) Recent(ctx context.Context, identity string, since time.Time, limit int64) ([]AuditLogEntry, error) {
	lower := "-"
	if !since.IsZero() {
		lower = strconv.FormatInt(since.UnixMilli(), 10)
	}

	var (
		msgs []redis.XMessage
		err  error
	)
	if limit > 0 {
		msgs, err = s.redis.XRevRangeN(ctx, s.key(identity), "+", lower, limit).Result()
	} else {
		msgs, err = s.redis.XRevRange(ctx, s.key(identity), "+", lower).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditLogBackend, err)
	}

	out := make([]AuditLogEntry, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values[auditPayloadField].(string)
		if !ok {
			continue
		}
		out = append(out, AuditLogEntry{ID: m.ID, Payload: []byte(raw)})
	}
	return out, nil
}
