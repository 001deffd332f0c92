// Package memory implements the per-agent scratchpad: five typed,
// size-bounded categories, MEMORIZE[...] command extraction from an agent's
// final utterance, and a compact prompt-fragment renderer.
package memory

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Category is one of the five fixed scratchpad buckets.
type Category string

const (
	CategoryTaskList      Category = "task_list"
	CategoryKeyFacts      Category = "key_facts"
	CategoryDecisionsMade Category = "decisions_made"
	CategoryConcerns      Category = "concerns"
	CategoryNotes         Category = "notes"
)

var categoryAliases = map[string]Category{
	"task_list":      CategoryTaskList,
	"task":           CategoryTaskList,
	"key_facts":      CategoryKeyFacts,
	"fact":           CategoryKeyFacts,
	"decisions_made": CategoryDecisionsMade,
	"decision":       CategoryDecisionsMade,
	"concerns":       CategoryConcerns,
	"concern":        CategoryConcerns,
	"notes":          CategoryNotes,
	"note":           CategoryNotes,
}

// ResolveCategory maps a case-insensitive category name (including singular
// aliases) to its canonical Category. ok is false for unrecognized names.
func ResolveCategory(name string) (Category, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

const defaultCap = 20

// Memory is one agent's scratchpad. All operations are serialized under mu,
// matching the spec's "only one turn per agent in flight" assumption.
type Memory struct {
	mu  sync.Mutex
	cap int

	taskList      []string
	keyFacts      map[string]string
	decisionsMade []string
	concerns      []string
	notes         []string
}

// New constructs a Memory with the given per-list category cap (spec default
// 20; must be >= 20).
func New(cap int) *Memory {
	if cap < 20 {
		cap = defaultCap
	}
	return &Memory{cap: cap, keyFacts: make(map[string]string)}
}

// Append adds content to an ordered category, truncating the oldest entry if
// the cap is exceeded. Invalid for CategoryKeyFacts.
func (m *Memory) Append(cat Category, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.listLocked(cat)
	if list == nil {
		return fmt.Errorf("memory: category %q does not accept appended content", cat)
	}
	*list = append(*list, content)
	if over := len(*list) - m.cap; over > 0 {
		*list = (*list)[over:]
	}
	return nil
}

// UpsertFact sets a key_facts entry by key.
func (m *Memory) UpsertFact(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyFacts[key] = value
}

func (m *Memory) listLocked(cat Category) *[]string {
	switch cat {
	case CategoryTaskList:
		return &m.taskList
	case CategoryDecisionsMade:
		return &m.decisionsMade
	case CategoryConcerns:
		return &m.concerns
	case CategoryNotes:
		return &m.notes
	default:
		return nil
	}
}

// Snapshot is a read-only copy of every category's current contents.
type Snapshot struct {
	TaskList      []string
	KeyFacts      map[string]string
	DecisionsMade []string
	Concerns      []string
	Notes         []string
}

// Snapshot returns a deep copy of the memory's current state.
func (m *Memory) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	facts := make(map[string]string, len(m.keyFacts))
	for k, v := range m.keyFacts {
		facts[k] = v
	}
	return Snapshot{
		TaskList:      append([]string(nil), m.taskList...),
		KeyFacts:      facts,
		DecisionsMade: append([]string(nil), m.decisionsMade...),
		Concerns:      append([]string(nil), m.concerns...),
		Notes:         append([]string(nil), m.notes...),
	}
}

// Restore replaces the memory's contents with a previously captured
// Snapshot, used by the Snapshot Manager on session load.
func (m *Memory) Restore(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskList = append([]string(nil), s.TaskList...)
	m.decisionsMade = append([]string(nil), s.DecisionsMade...)
	m.concerns = append([]string(nil), s.Concerns...)
	m.notes = append([]string(nil), s.Notes...)
	m.keyFacts = make(map[string]string, len(s.KeyFacts))
	for k, v := range s.KeyFacts {
		m.keyFacts[k] = v
	}
}

// Render produces a compact prompt fragment summarizing current contents,
// used by the Agent Runtime's system-prompt assembly (spec 4.8).
func (m *Memory) Render() string {
	s := m.Snapshot()
	var b strings.Builder
	b.WriteString("Memory:\n")
	writeList(&b, "Tasks", s.TaskList)
	if len(s.KeyFacts) > 0 {
		b.WriteString("- Key facts:\n")
		for k, v := range s.KeyFacts {
			fmt.Fprintf(&b, "  - %s: %s\n", k, v)
		}
	}
	writeList(&b, "Decisions", s.DecisionsMade)
	writeList(&b, "Concerns", s.Concerns)
	writeList(&b, "Notes", s.Notes)
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s:\n", label)
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}

var memorizeLine = regexp.MustCompile(`(?im)^\s*MEMORIZE\[([^\]]+)\]:\s*(.+?)\s*$`)

var factPayload = regexp.MustCompile(`^([^=]+)=(.*)$`)

// Warning describes an invalid MEMORIZE line rejected during extraction.
type Warning struct {
	Line   string
	Reason string
}

// ExtractResult reports how many updates were applied and any warnings
// raised while parsing MEMORIZE[...] lines.
type ExtractResult struct {
	Applied  int
	Warnings []Warning
}

// ExtractAndApply scans text line-anchored for `MEMORIZE[category]: content`
// commands, applies valid ones, and reports invalid ones as warnings. Never
// executes content as code — it is treated as opaque text throughout.
func (m *Memory) ExtractAndApply(text string) ExtractResult {
	var res ExtractResult
	matches := memorizeLine.FindAllStringSubmatch(text, -1)
	for _, match := range matches {
		catName, payload := match[1], match[2]
		cat, ok := ResolveCategory(catName)
		if !ok {
			res.Warnings = append(res.Warnings, Warning{Line: match[0], Reason: "unknown category " + catName})
			continue
		}
		if cat == CategoryKeyFacts {
			kv := factPayload.FindStringSubmatch(payload)
			if kv == nil {
				res.Warnings = append(res.Warnings, Warning{Line: match[0], Reason: "key_facts requires key=value"})
				continue
			}
			m.UpsertFact(strings.TrimSpace(kv[1]), strings.TrimSpace(kv[2]))
			res.Applied++
			continue
		}
		if err := m.Append(cat, payload); err != nil {
			res.Warnings = append(res.Warnings, Warning{Line: match[0], Reason: err.Error()})
			continue
		}
		res.Applied++
	}
	return res
}
