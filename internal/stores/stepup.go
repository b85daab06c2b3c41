package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stepUpRecordVersion1 = 1

	stepUpFlagVerified = 1 << 0
)

var (
	ErrStepUpChallengeNotFound = errors.New("step-up challenge not found")
	ErrStepUpChallengeExpired  = errors.New("step-up challenge expired")
	ErrStepUpChallengeBackend  = errors.New("step-up challenge backend unavailable")
)

// StepUpChallenge is the persisted state of one pending or verified
// step-up request.
type StepUpChallenge struct {
	Identity   string
	SessionRef string
	ExpiresAt  int64
	Verified   bool
}

type StepUpStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewStepUpStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *StepUpStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &StepUpStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *StepUpStore) key(challengeID string) string {
	return s.prefix + ":m:" + challengeID
}

func (s *StepUpStore) Save(
	ctx context.Context,
	challengeID string,
	record *StepUpChallenge,
	ttl time.Duration,
) error {
	encoded, err := encodeStepUpChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStepUpChallengeBackend, err)
	}
	return nil
}

func (s *StepUpStore) Get(ctx context.Context, challengeID string) (*StepUpChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStepUpChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStepUpChallengeBackend, err)
	}

	record, err := decodeStepUpChallenge(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStepUpChallengeBackend, err)
	}
	if s.now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, ErrStepUpChallengeExpired
	}
	return record, nil
}

func (s *StepUpStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStepUpChallengeBackend, err)
	}
	return n > 0, nil
}

// MarkVerified sets the verified flag on a live challenge, keeping its
// remaining TTL. It returns false when the challenge was already verified.
func (s *StepUpStore) MarkVerified(ctx context.Context, challengeID string) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var changed bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeStepUpChallenge(data)
			if err != nil {
				return err
			}
			ttl := time.Unix(record.ExpiresAt, 0).Sub(s.now())
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrStepUpChallengeExpired
			}
			if record.Verified {
				return nil
			}

			record.Verified = true
			updated, err := encodeStepUpChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			if err == nil {
				changed = true
			}
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrStepUpChallengeNotFound
			}
			if errors.Is(err, ErrStepUpChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrStepUpChallengeBackend, err)
		}
		return changed, nil
	}

	return false, fmt.Errorf("%w: challenge update contention", ErrStepUpChallengeBackend)
}

func encodeStepUpChallenge(record *StepUpChallenge) ([]byte, error) {
	if len(record.Identity) > math.MaxUint16 || len(record.SessionRef) > math.MaxUint16 {
		return nil, errors.New("step-up challenge field length exceeded")
	}

	var buf bytes.Buffer
	buf.WriteByte(stepUpRecordVersion1)

	var flags byte
	if record.Verified {
		flags |= stepUpFlagVerified
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Identity))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Identity)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.SessionRef))); err != nil {
		return nil, err
	}
	buf.WriteString(record.SessionRef)

	return buf.Bytes(), nil
}

func decodeStepUpChallenge(data []byte) (*StepUpChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != stepUpRecordVersion1 {
		return nil, errors.New("invalid step-up challenge version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &StepUpChallenge{Verified: flags&stepUpFlagVerified != 0}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	if record.Identity, err = readString16(reader); err != nil {
		return nil, err
	}
	if record.SessionRef, err = readString16(reader); err != nil {
		return nil, err
	}
	return record, nil
}

func readString16(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
