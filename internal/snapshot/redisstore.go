package snapshot

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/semanticarchitectures/voicenet-ome/internal/toolerrors"
)

const sessionKeyPrefix = "ome:session:"

// RedisStore is the production Store, persisting one JSON blob per session
// key and an index set for List.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore builds a RedisStore over an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

const sessionIndexKey = "ome:sessions"

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(snap.SessionID), data, 0)
	pipe.SAdd(ctx, sessionIndexKey, snap.SessionID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, toolerrors.New(toolerrors.KindSnapshotNotFound, "no snapshot for session "+sessionID)
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Load(ctx, id)
		if err != nil {
			var oe *toolerrors.OMEError
			if errors.As(err, &oe) && oe.Kind == toolerrors.KindSnapshotNotFound {
				continue // session was deleted concurrently; skip
			}
			return nil, err
		}
		out = append(out, Summary{
			SessionID:    snap.SessionID,
			SavedAt:      snap.SavedAt,
			MessageCount: len(snap.Messages),
			AgentCount:   len(snap.AgentState),
		})
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, sessionIndexKey, sessionID)
	_, err := pipe.Exec(ctx)
	return err
}
