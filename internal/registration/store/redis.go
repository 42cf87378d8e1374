package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"regpay/internal/registration"
)

// Redis persists snapshots in Redis for deployments running more than one
// gateway replica, where the applicant's return from the payment provider
// may land on a different instance than the one that registered them.
// Entries are not expired: the snapshot must outlive any webhook lag.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis wraps an existing Redis client as a snapshot store.
func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

// Put stores the snapshot JSON under its namespaced key.
func (s *Redis) Put(ctx context.Context, snapshot *registration.Snapshot) error {
	if snapshot == nil || snapshot.Reference == "" {
		return fmt.Errorf("snapshot must carry a reference")
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, Key(snapshot.Reference), payload, 0).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// Get retrieves the snapshot for a reference. Unparseable payloads read as
// absent.
func (s *Redis) Get(ctx context.Context, reference string) (*registration.Snapshot, error) {
	payload, err := s.client.Get(ctx, Key(reference)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("snapshot for %q: %w", reference, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap registration.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.logger.Warn("discarding corrupted snapshot entry",
			"reference", reference,
			"error", err,
		)
		return nil, fmt.Errorf("snapshot for %q: %w", reference, ErrNotFound)
	}
	return &snap, nil
}
