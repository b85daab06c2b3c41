package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MrEthical07/goFaceAuth/store"
	"github.com/redis/go-redis/v9"
)

const (
	profileRecordVersion1 = 1

	profileFlagEnabled  = 1 << 0
	profileFlagLiveness = 1 << 1

	maxEmbeddingDimension = 1 << 16
)

// ProfileStore keeps one binary-encoded profile per identity under a single
// key, so a replacement is one SET and readers never observe a mix of old
// and new fields.
type ProfileStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewProfileStore(redisClient redis.UniversalClient, prefix string) *ProfileStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ProfileStore{redis: redisClient, prefix: prefix}
}

func (s *ProfileStore) key(identity string) string {
	return s.prefix + ":p:" + identity
}

func (s *ProfileStore) GetProfile(ctx context.Context, identity string) (*store.Profile, error) {
	data, err := s.redis.Get(ctx, s.key(identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	p, err := decodeProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return p, nil
}

func (s *ProfileStore) SaveProfile(ctx context.Context, p store.Profile) error {
	encoded, err := encodeProfile(&p)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(p.Identity), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *ProfileStore) SetEnabled(ctx context.Context, identity string, enabled bool) error {
	const maxRetries = 4
	key := s.key(identity)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			p, err := decodeProfile(data)
			if err != nil {
				return err
			}
			if p.Enabled == enabled {
				return nil
			}
			p.Enabled = enabled
			updated, err := encodeProfile(p)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return store.ErrNotFound
			}
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: profile update contention", store.ErrUnavailable)
}

func encodeProfile(p *store.Profile) ([]byte, error) {
	if len(p.Identity) > math.MaxUint16 {
		return nil, errors.New("profile identity length exceeded")
	}
	if len(p.Embedding) == 0 || len(p.Embedding) > maxEmbeddingDimension {
		return nil, errors.New("profile embedding dimension out of range")
	}

	var buf bytes.Buffer
	buf.Grow(16 + len(p.Identity) + 8*len(p.Embedding))
	buf.WriteByte(profileRecordVersion1)

	var flags byte
	if p.Enabled {
		flags |= profileFlagEnabled
	}
	if p.LivenessRequired {
		flags |= profileFlagLiveness
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, p.RegisteredAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(p.Identity))); err != nil {
		return nil, err
	}
	buf.WriteString(p.Identity)
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(p.Embedding))); err != nil {
		return nil, err
	}
	for _, v := range p.Embedding {
		if err := binary.Write(&buf, binary.BigEndian, math.Float64bits(v)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeProfile(data []byte) (*store.Profile, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != profileRecordVersion1 {
		return nil, errors.New("invalid profile version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	var registered int64
	if err := binary.Read(reader, binary.BigEndian, &registered); err != nil {
		return nil, err
	}

	id, err := readString16(reader)
	if err != nil {
		return nil, err
	}

	var dim uint32
	if err := binary.Read(reader, binary.BigEndian, &dim); err != nil {
		return nil, err
	}
	if dim == 0 || dim > maxEmbeddingDimension || int(dim)*8 != reader.Len() {
		return nil, errors.New("invalid profile embedding length")
	}
	embedding := make([]float64, dim)
	for i := range embedding {
		var bits uint64
		if err := binary.Read(reader, binary.BigEndian, &bits); err != nil {
			return nil, err
		}
		embedding[i] = math.Float64frombits(bits)
	}

	return &store.Profile{
		Identity:         id,
		Embedding:        embedding,
		Enabled:          flags&profileFlagEnabled != 0,
		RegisteredAt:     time.Unix(0, registered).UTC(),
		LivenessRequired: flags&profileFlagLiveness != 0,
	}, nil
}
