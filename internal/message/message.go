// Package message implements the Message Log: a bounded, ordered,
// concurrency-safe record of voice-net transmissions with per-callsign
// context-window extraction.
package message

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/semanticarchitectures/voicenet-ome/internal/voicenet"
)

// Kind classifies who produced a Message.
type Kind string

const (
	KindUser   Kind = "user"
	KindAgent  Kind = "agent"
	KindSystem Kind = "system"
)

// Message is an immutable record of one voice-net transmission. Once
// appended to a Log it is never mutated.
type Message struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Sender      string
	Recipient   string // empty means undirected/broadcast
	Content     string
	Kind        Kind
	MessageType voicenet.MessageType
	IsBroadcast bool
}

// New constructs a Message, assigning a collision-free ID and parsing
// addressing metadata via the voice-net codec. IDs are generated here so
// uniqueness (spec invariant 1) holds even for messages never appended to a
// Log.
func New(sender, content string, kind Kind) Message {
	parsed := voicenet.Parse(content)
	recipient := parsed.Recipient
	if parsed.IsBroadcast {
		recipient = ""
	}
	s := sender
	if s == "" {
		s = parsed.Sender
	}
	return Message{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		Sender:      s,
		Recipient:   recipient,
		Content:     content,
		Kind:        kind,
		MessageType: parsed.Type,
		IsBroadcast: parsed.IsBroadcast,
	}
}

// NewSystem constructs a System message, which is never addressed and
// always visible in every agent's context window.
func NewSystem(content string) Message {
	return Message{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Content:   content,
		Kind:      KindSystem,
	}
}

// Log is a fixed-capacity FIFO container of Messages with O(1) append and
// O(1) head eviction, safe for concurrent readers and a single concurrent
// writer stream (appends are serialized internally).
type Log struct {
	mu       sync.RWMutex
	items    []Message
	head     int
	size     int
	capacity int
}

// NewLog constructs a Log with maximum length capacity (spec default 1000).
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Log{items: make([]Message, capacity), capacity: capacity}
}

// Append adds a message, evicting the oldest entry if the log is full.
func (l *Log) Append(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := (l.head + l.size) % l.capacity
	if l.size == l.capacity {
		l.head = (l.head + 1) % l.capacity
	} else {
		l.size++
	}
	l.items[idx] = m
}

// Len returns the current number of messages held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// All returns a copy of every message in log order (oldest first).
func (l *Log) All() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked(l.size)
}

// Recent returns a copy of the last n messages in log order.
func (l *Log) Recent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > l.size {
		n = l.size
	}
	if n < 0 {
		n = 0
	}
	return l.snapshotLocked(n)
}

// snapshotLocked returns the last n messages in log order; caller holds the lock.
func (l *Log) snapshotLocked(n int) []Message {
	out := make([]Message, n)
	start := l.size - n
	for i := 0; i < n; i++ {
		idx := (l.head + start + i) % l.capacity
		out[i] = l.items[idx]
	}
	return out
}

// Capacity returns the log's maximum length.
func (l *Log) Capacity() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.capacity
}

// Restore replaces the log's contents with messages, in log order, used by
// the Snapshot Manager on session load. Messages beyond capacity retain only
// the most recent ones, matching normal eviction behavior.
func (l *Log) Restore(messages []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(messages) > l.capacity {
		messages = messages[len(messages)-l.capacity:]
	}
	l.items = make([]Message, l.capacity)
	l.head = 0
	l.size = len(messages)
	copy(l.items, messages)
}

// ContextWindow returns the last w messages, in log order, that are from
// callsign c, addressed to c, broadcasts, or System messages.
func (l *Log) ContextWindow(c string, w int) []Message {
	normC := voicenet.NormalizeCallsign(c)
	l.mu.RLock()
	all := l.snapshotLocked(l.size)
	l.mu.RUnlock()

	out := make([]Message, 0, w)
	for i := len(all) - 1; i >= 0 && len(out) < w; i-- {
		m := all[i]
		if matchesWindow(m, normC) {
			out = append(out, m)
		}
	}
	// reverse into log order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func matchesWindow(m Message, normC string) bool {
	if m.Kind == KindSystem {
		return true
	}
	if m.IsBroadcast || m.Recipient == "" {
		return true
	}
	if voicenet.NormalizeCallsign(m.Sender) == normC {
		return true
	}
	if voicenet.NormalizeCallsign(m.Recipient) == normC {
		return true
	}
	return false
}
