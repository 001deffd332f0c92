// Package speaking models the per-agent Speaking Criteria predicate: whether
// an agent should respond to the recent log, evaluated as an OR of
// primitive criteria.
package speaking

import (
	"regexp"

	"github.com/semanticarchitectures/voicenet-ome/internal/message"
	"github.com/semanticarchitectures/voicenet-ome/internal/voicenet"
)

// Criterion evaluates whether an agent should speak given the recent log
// and its own normalized callsign. Implementations never fire on the
// agent's own message (spec §8 invariant 11): every Criterion here skips
// messages sent by selfCallsign itself, so callers pass the log unfiltered.
type Criterion interface {
	Evaluate(recent []message.Message, selfCallsign string) bool
}

func lastOther(recent []message.Message, selfNorm string) (message.Message, bool) {
	for i := len(recent) - 1; i >= 0; i-- {
		if voicenet.NormalizeCallsign(recent[i].Sender) != selfNorm {
			return recent[i], true
		}
	}
	return message.Message{}, false
}

// DirectAddress fires when the most recent non-self message's recipient
// matches this agent's callsign after normalization.
type DirectAddress struct{}

func (DirectAddress) Evaluate(recent []message.Message, self string) bool {
	m, ok := lastOther(recent, voicenet.NormalizeCallsign(self))
	if !ok {
		return false
	}
	return m.Recipient != "" && voicenet.NormalizeCallsign(m.Recipient) == voicenet.NormalizeCallsign(self)
}

// Keywords fires when the most recent message's body contains any keyword,
// case-insensitive, whole-word.
type Keywords struct {
	Words []string
}

func (k Keywords) Evaluate(recent []message.Message, self string) bool {
	m, ok := lastOther(recent, voicenet.NormalizeCallsign(self))
	if !ok {
		return false
	}
	for _, w := range k.Words {
		if w == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if re.MatchString(m.Content) {
			return true
		}
	}
	return false
}

// Question fires when the most recent message is a QUERY type.
type Question struct{}

func (Question) Evaluate(recent []message.Message, self string) bool {
	m, ok := lastOther(recent, voicenet.NormalizeCallsign(self))
	if !ok {
		return false
	}
	return m.MessageType == voicenet.TypeQuery
}

// SquadLeader applies only to squad_leader agents: it fires when no
// specialist matched (evaluated externally and passed in via
// noSpecialistMatched) or a coordination keyword is present.
type SquadLeader struct {
	CoordinationKeywords []string
}

// Evaluate implements Criterion with noSpecialistMatched always false; use
// EvaluateWithFallback from the Orchestrator, which knows whether any
// specialist matched.
func (s SquadLeader) Evaluate(recent []message.Message, self string) bool {
	return s.EvaluateWithFallback(recent, self, false)
}

func (s SquadLeader) EvaluateWithFallback(recent []message.Message, self string, noSpecialistMatched bool) bool {
	if noSpecialistMatched {
		_, ok := lastOther(recent, voicenet.NormalizeCallsign(self))
		return ok
	}
	kw := Keywords{Words: s.CoordinationKeywords}
	return kw.Evaluate(recent, self)
}

// Composite ORs a set of criteria.
type Composite struct {
	Criteria []Criterion
}

func (c Composite) Evaluate(recent []message.Message, self string) bool {
	for _, crit := range c.Criteria {
		if crit.Evaluate(recent, self) {
			return true
		}
	}
	return false
}
