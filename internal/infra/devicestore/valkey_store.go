package devicestore

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/medimind/medimind-api/internal/domain/auth"
)

// ValkeyStore keeps auth artifacts in a Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "medimind"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Set stores a value with optional TTL; zero TTL means no expiry.
func (s *ValkeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	builder := s.client.B().Set().Key(s.key(key)).Value(value)
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// Get fetches a value; the second return reports presence.
func (s *ValkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	cmd := s.client.B().Get().Key(s.key(key)).Build()
	value, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Del removes a key.
func (s *ValkeyStore) Del(ctx context.Context, key string) error {
	cmd := s.client.B().Del().Key(s.key(key)).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) key(key string) string {
	return s.prefix + ":" + key
}

var _ auth.Cache = (*ValkeyStore)(nil)
