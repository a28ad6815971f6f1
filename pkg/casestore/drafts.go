package casestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

const draftKeyPrefix = "icsr:draft:"

// DraftStore keeps the working copy of each case in Redis so pipeline steps
// read it without touching Postgres.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{client: client, ttl: ttl}
}

func draftKey(id string) string {
	return draftKeyPrefix + id
}

func (s *DraftStore) Save(ctx context.Context, c models.Case) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	return s.client.Set(ctx, draftKey(c.ID), payload, s.ttl).Err()
}

// Load returns ErrNotFound when no draft is cached.
func (s *DraftStore) Load(ctx context.Context, id string) (models.Case, error) {
	payload, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Case{}, ErrNotFound
	}
	if err != nil {
		return models.Case{}, err
	}
	var c models.Case
	if err := json.Unmarshal(payload, &c); err != nil {
		return models.Case{}, fmt.Errorf("failed to decode draft %s: %w", id, err)
	}
	return c, nil
}

func (s *DraftStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, draftKey(id)).Err()
}
