package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Event is one durable audit-log entry recording a single scratchpad
// update, supplementing the in-process Memory with crash-visible history.
type Event struct {
	AgentID   string
	SessionID string
	Category  Category
	Payload   string
	AppliedAt time.Time
}

// MongoStore appends Memory updates to a durable collection as a side
// channel; it never backs the live scratchpad, which stays in-process.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore wraps an existing collection handle.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

type mongoEvent struct {
	AgentID   string    `bson:"agent_id"`
	SessionID string    `bson:"session_id"`
	Category  string    `bson:"category"`
	Payload   string    `bson:"payload"`
	AppliedAt time.Time `bson:"applied_at"`
}

// AppendEvents records a batch of memory updates. A nil store, or one built
// without a collection, is treated as a no-op so the audit trail can be
// optional per spec §1.
func (s *MongoStore) AppendEvents(ctx context.Context, events ...Event) error {
	if s == nil || s.coll == nil || len(events) == 0 {
		return nil
	}
	docs := make([]any, len(events))
	for i, e := range events {
		docs[i] = mongoEvent{
			AgentID:   e.AgentID,
			SessionID: e.SessionID,
			Category:  string(e.Category),
			Payload:   e.Payload,
			AppliedAt: e.AppliedAt,
		}
	}
	_, err := s.coll.InsertMany(ctx, docs)
	return err
}

// History returns every recorded event for an agent's session, oldest first.
func (s *MongoStore) History(ctx context.Context, agentID, sessionID string) ([]Event, error) {
	if s == nil || s.coll == nil {
		return nil, nil
	}
	cur, err := s.coll.Find(ctx, bson.M{"agent_id": agentID, "session_id": sessionID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []mongoEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Event, len(docs))
	for i, d := range docs {
		out[i] = Event{AgentID: d.AgentID, SessionID: d.SessionID, Category: Category(d.Category), Payload: d.Payload, AppliedAt: d.AppliedAt}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}
