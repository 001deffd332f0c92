// Package snapshot implements the Snapshot Manager: durable, session-keyed
// persistence of the Message Log and every agent's Memory, with structured
// and text export formats.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/semanticarchitectures/voicenet-ome/internal/memory"
	"github.com/semanticarchitectures/voicenet-ome/internal/message"
	"github.com/semanticarchitectures/voicenet-ome/internal/toolerrors"
)

// AgentMemory pairs an agent identifier with its memory snapshot.
type AgentMemory struct {
	AgentID  string          `json:"agent_id"`
	Callsign string          `json:"callsign"`
	Memory   memory.Snapshot `json:"memory"`
}

// Snapshot is the full persisted state of one session.
type Snapshot struct {
	SessionID  string        `json:"session_id"`
	SavedAt    time.Time     `json:"saved_at"`
	Messages   []message.Message `json:"messages"`
	AgentState []AgentMemory `json:"agent_state"`
}

// Summary is the lightweight metadata returned by List, without the full
// message log or memory contents.
type Summary struct {
	SessionID    string    `json:"session_id"`
	SavedAt      time.Time `json:"saved_at"`
	MessageCount int       `json:"message_count"`
	AgentCount   int       `json:"agent_count"`
}

// Store is the durable backend a Manager persists Snapshots through.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, sessionID string) error
}

// RosterEntry is the subset of one agent's identity a Manager needs in order
// to capture and restore its memory.
type RosterEntry struct {
	AgentID  string
	Callsign string
	Memory   *memory.Memory
}

// Manager coordinates snapshot/restore of a Message Log and an agent roster
// against a Store (spec §4.11).
type Manager struct {
	store Store
}

// New constructs a Manager over the given Store.
func New(store Store) *Manager {
	return &Manager{store: store}
}

// Save captures the log's full contents and every roster member's memory,
// then persists them under sessionID, overwriting any prior snapshot.
func (m *Manager) Save(ctx context.Context, sessionID string, log *message.Log, roster []RosterEntry) error {
	if sessionID == "" {
		return toolerrors.New(toolerrors.KindConfig, "session id is required")
	}
	snap := Snapshot{
		SessionID: sessionID,
		SavedAt:   time.Now(),
		Messages:  log.All(),
	}
	for _, r := range roster {
		snap.AgentState = append(snap.AgentState, AgentMemory{
			AgentID:  r.AgentID,
			Callsign: r.Callsign,
			Memory:   r.Memory.Snapshot(),
		})
	}
	if err := m.store.Save(ctx, snap); err != nil {
		return toolerrors.Wrap(toolerrors.KindSnapshotError, "save snapshot", err)
	}
	return nil
}

// Restore loads sessionID and applies it to log and roster in place. Round
// trip fidelity (spec §8 invariant 9): the log's message order and every
// agent's memory categories are restored exactly as captured.
func (m *Manager) Restore(ctx context.Context, sessionID string, log *message.Log, roster []RosterEntry) error {
	snap, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return toolerrors.Wrap(toolerrors.KindSnapshotNotFound, "load snapshot "+sessionID, err)
	}
	log.Restore(snap.Messages)

	byID := make(map[string]memory.Snapshot, len(snap.AgentState))
	for _, a := range snap.AgentState {
		byID[a.AgentID] = a.Memory
	}
	for _, r := range roster {
		if ms, ok := byID[r.AgentID]; ok {
			r.Memory.Restore(ms)
		}
	}
	return nil
}

// List returns every persisted session's summary, most recently saved first.
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	summaries, err := m.store.List(ctx)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindSnapshotError, "list snapshots", err)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SavedAt.After(summaries[j].SavedAt)
	})
	return summaries, nil
}

// Delete removes a persisted session. Deleting a nonexistent session is not
// an error.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return toolerrors.Wrap(toolerrors.KindSnapshotError, "delete snapshot "+sessionID, err)
	}
	return nil
}

// Format selects an Export rendering.
type Format string

const (
	// FormatStructured renders the full Snapshot as indented JSON.
	FormatStructured Format = "structured"
	// FormatText renders a human-readable transcript plus memory summary.
	FormatText Format = "text"
)

// Export renders a persisted session in the requested Format.
func (m *Manager) Export(ctx context.Context, sessionID string, format Format) (string, error) {
	snap, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return "", toolerrors.Wrap(toolerrors.KindSnapshotNotFound, "load snapshot "+sessionID, err)
	}
	switch format {
	case FormatText:
		return renderText(snap), nil
	case FormatStructured, "":
		buf, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return "", toolerrors.Wrap(toolerrors.KindSnapshotError, "marshal snapshot", err)
		}
		return string(buf), nil
	default:
		return "", toolerrors.Newf(toolerrors.KindConfig, "unknown export format %q", format)
	}
}

func renderText(snap Snapshot) string {
	out := fmt.Sprintf("Session %s — saved %s\n\n", snap.SessionID, snap.SavedAt.Format(time.RFC3339))
	out += "Transcript:\n"
	for _, m := range snap.Messages {
		out += fmt.Sprintf("[%s] %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.Sender, m.Content)
	}
	out += "\nAgent memory:\n"
	for _, a := range snap.AgentState {
		out += fmt.Sprintf("- %s (%s):\n", a.Callsign, a.AgentID)
		writeTextList(&out, "Tasks", a.Memory.TaskList)
		if len(a.Memory.KeyFacts) > 0 {
			out += "  Key facts:\n"
			keys := make([]string, 0, len(a.Memory.KeyFacts))
			for k := range a.Memory.KeyFacts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out += fmt.Sprintf("    %s: %s\n", k, a.Memory.KeyFacts[k])
			}
		}
		writeTextList(&out, "Decisions", a.Memory.DecisionsMade)
		writeTextList(&out, "Concerns", a.Memory.Concerns)
		writeTextList(&out, "Notes", a.Memory.Notes)
	}
	return out
}

func writeTextList(out *string, label string, items []string) {
	if len(items) == 0 {
		return
	}
	*out += "  " + label + ":\n"
	for _, it := range items {
		*out += "    " + it + "\n"
	}
}
