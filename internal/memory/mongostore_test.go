package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMongoStore_NilStoreIsNoop(t *testing.T) {
	t.Parallel()

	var s *MongoStore
	require.NoError(t, s.AppendEvents(context.Background(), Event{AgentID: "a"}))

	history, err := s.History(context.Background(), "a", "session-1")
	require.NoError(t, err)
	require.Nil(t, history)
}

func TestMongoStore_UnconfiguredCollectionIsNoop(t *testing.T) {
	t.Parallel()

	s := NewMongoStore(nil)
	require.NoError(t, s.AppendEvents(context.Background(), Event{AgentID: "a"}))

	history, err := s.History(context.Background(), "a", "session-1")
	require.NoError(t, err)
	require.Nil(t, history)
}

func TestMongoStore_AppendEvents_EmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	s := NewMongoStore(nil)
	require.NoError(t, s.AppendEvents(context.Background()))
}
