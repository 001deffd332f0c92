package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/semanticarchitectures/voicenet-ome/internal/memory"
	"github.com/semanticarchitectures/voicenet-ome/internal/message"
)

func buildLog(t *testing.T) *message.Log {
	t.Helper()
	log := message.NewLog(10)
	log.Append(message.New("Command", "All stations, this is Command, status check, over.", message.KindUser))
	log.Append(message.New("Overlord", "Command, this is Overlord, all green, over.", message.KindAgent))
	return log
}

func TestManager_SaveRestore_RoundTripsLogAndMemory(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	log := buildLog(t)
	mem := memory.New(20)
	mem.UpsertFact("objective", "hold the ridge")
	require.NoError(t, mem.Append(memory.CategoryTaskList, "resupply at checkpoint two"))
	roster := []RosterEntry{{AgentID: "agent.overlord", Callsign: "Overlord", Memory: mem}}

	require.NoError(t, mgr.Save(t.Context(), "session-1", log, roster))

	restoredLog := message.NewLog(10)
	restoredMem := memory.New(20)
	restoredRoster := []RosterEntry{{AgentID: "agent.overlord", Callsign: "Overlord", Memory: restoredMem}}
	require.NoError(t, mgr.Restore(t.Context(), "session-1", restoredLog, restoredRoster))

	require.Equal(t, log.All(), restoredLog.All())
	snap := restoredMem.Snapshot()
	require.Equal(t, []string{"resupply at checkpoint two"}, snap.TaskList)
	require.Equal(t, "hold the ridge", snap.KeyFacts["objective"])
}

func TestManager_Save_RequiresSessionID(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	err := mgr.Save(t.Context(), "", message.NewLog(10), nil)
	require.Error(t, err)
}

func TestManager_Restore_UnknownSessionReturnsNotFound(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	err := mgr.Restore(t.Context(), "missing", message.NewLog(10), nil)
	require.Error(t, err)
}

func TestManager_List_SortsMostRecentFirst(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	require.NoError(t, mgr.Save(t.Context(), "older", message.NewLog(10), nil))
	require.NoError(t, mgr.Save(t.Context(), "newer", message.NewLog(10), nil))

	store := mgr.store.(*MapStore)
	store.mu.Lock()
	older := store.data["older"]
	older.SavedAt = older.SavedAt.Add(-time.Hour)
	store.data["older"] = older
	store.mu.Unlock()

	summaries, err := mgr.List(t.Context())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "newer", summaries[0].SessionID)
	require.Equal(t, "older", summaries[1].SessionID)
}

func TestManager_Delete_RemovesSession(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	require.NoError(t, mgr.Save(t.Context(), "session-1", message.NewLog(10), nil))
	require.NoError(t, mgr.Delete(t.Context(), "session-1"))

	_, err := mgr.store.Load(t.Context(), "session-1")
	require.Error(t, err)
}

func TestManager_Delete_NonexistentIsNotAnError(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	require.NoError(t, mgr.Delete(t.Context(), "never-existed"))
}

func TestManager_Export_StructuredIsValidJSON(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	log := buildLog(t)
	require.NoError(t, mgr.Save(t.Context(), "session-1", log, nil))

	out, err := mgr.Export(t.Context(), "session-1", FormatStructured)
	require.NoError(t, err)
	require.Contains(t, out, `"session_id": "session-1"`)
	require.Contains(t, out, "All stations, this is Command, status check, over.")
}

func TestManager_Export_TextIncludesTranscriptAndMemory(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	log := buildLog(t)
	mem := memory.New(20)
	require.NoError(t, mem.Append(memory.CategoryNotes, "watch the east flank"))
	roster := []RosterEntry{{AgentID: "agent.overlord", Callsign: "Overlord", Memory: mem}}
	require.NoError(t, mgr.Save(t.Context(), "session-1", log, roster))

	out, err := mgr.Export(t.Context(), "session-1", FormatText)
	require.NoError(t, err)
	require.Contains(t, out, "Transcript:")
	require.Contains(t, out, "Overlord (agent.overlord)")
	require.Contains(t, out, "watch the east flank")
}

func TestManager_Export_UnknownFormatIsAnError(t *testing.T) {
	t.Parallel()

	mgr := New(NewMapStore())
	require.NoError(t, mgr.Save(t.Context(), "session-1", message.NewLog(10), nil))

	_, err := mgr.Export(t.Context(), "session-1", Format("bogus"))
	require.Error(t, err)
}
