// Package orchestrator implements the turn scheduler: addressed/broadcast
// responder selection, capped concurrent dispatch, and deterministic
// reported ordering.
package orchestrator

import (
	"context"
	"sort"
	"sync"

	"github.com/semanticarchitectures/voicenet-ome/internal/agentrt"
	"github.com/semanticarchitectures/voicenet-ome/internal/message"
	"github.com/semanticarchitectures/voicenet-ome/internal/speaking"
	"github.com/semanticarchitectures/voicenet-ome/internal/telemetry"
	"github.com/semanticarchitectures/voicenet-ome/internal/voicenet"
)

// Config tunes the orchestrator.
type Config struct {
	MaxResponses int // R, default 3
}

// DefaultConfig returns the spec's documented default.
func DefaultConfig() Config {
	return Config{MaxResponses: 3}
}

// rosterEntry pairs an Agent with its own serial-turn lock (spec §5: no two
// turns of the same agent run concurrently).
type rosterEntry struct {
	agent *agentrt.Agent
	mu    sync.Mutex
}

// Orchestrator owns the agent roster and the Message Log.
type Orchestrator struct {
	cfg     Config
	runtime *agentrt.Runtime
	log     *message.Log
	logger  telemetry.Logger

	roster []*rosterEntry // registration order; squad leader may be anywhere
}

// New constructs an Orchestrator over the given roster, in registration
// order. At most one agent should have SquadLeader set.
func New(cfg Config, runtime *agentrt.Runtime, log *message.Log, agents []*agentrt.Agent, logger telemetry.Logger) *Orchestrator {
	if cfg.MaxResponses <= 0 {
		cfg.MaxResponses = 3
	}
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	roster := make([]*rosterEntry, len(agents))
	for i, a := range agents {
		roster[i] = &rosterEntry{agent: a}
	}
	return &Orchestrator{cfg: cfg, runtime: runtime, log: log, logger: logger, roster: roster}
}

// Response is one agent's utterance produced for a turn.
type Response struct {
	AgentID  string
	Callsign string
	Text     string
}

// squadLeader returns the roster's squad_leader entry, if any.
func (o *Orchestrator) squadLeader() *rosterEntry {
	for _, r := range o.roster {
		if r.agent.SquadLeader {
			return r
		}
	}
	return nil
}

func (o *Orchestrator) findByCallsign(callsign string) *rosterEntry {
	norm := voicenet.NormalizeCallsign(callsign)
	for _, r := range o.roster {
		if voicenet.NormalizeCallsign(r.agent.Callsign) == norm {
			return r
		}
	}
	return nil
}

// selectResponders implements §4.10 step 2.
func (o *Orchestrator) selectResponders(userMsg message.Message, recent []message.Message) []*rosterEntry {
	if userMsg.Recipient != "" && voicenet.NormalizeCallsign(userMsg.Recipient) != "ALL" {
		if entry := o.findByCallsign(userMsg.Recipient); entry != nil {
			return []*rosterEntry{entry}
		}
		if sl := o.squadLeader(); sl != nil {
			return []*rosterEntry{sl}
		}
		return nil
	}

	// Broadcast/undirected: evaluate Speaking Criteria, squad_leader first
	// then registration order, capped at MaxResponses.
	var specialistMatched bool
	var candidates []*rosterEntry
	sl := o.squadLeader()
	for _, r := range o.roster {
		if r.agent.SquadLeader {
			continue
		}
		if evaluates(r.agent.SpeakingCriteria, recent, r.agent.Callsign) {
			candidates = append(candidates, r)
			specialistMatched = true
		}
	}
	var ordered []*rosterEntry
	if sl != nil && slFires(sl.agent.SpeakingCriteria, recent, sl.agent.Callsign, specialistMatched) {
		ordered = append(ordered, sl)
	}
	ordered = append(ordered, candidates...)

	if len(ordered) > o.cfg.MaxResponses {
		ordered = ordered[:o.cfg.MaxResponses]
	}
	return ordered
}

func evaluates(c speaking.Criterion, recent []message.Message, self string) bool {
	if c == nil {
		return false
	}
	return c.Evaluate(recent, self)
}

func slFires(c speaking.Criterion, recent []message.Message, self string, specialistMatched bool) bool {
	if sl, ok := c.(speaking.SquadLeader); ok {
		return sl.EvaluateWithFallback(recent, self, !specialistMatched)
	}
	return evaluates(c, recent, self)
}

// HandleUserMessage runs one full turn: append, select, dispatch, fallback,
// append responses, and return them in deterministic priority order.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, sender, content string) ([]Response, error) {
	userMsg := message.New(sender, content, message.KindUser)
	o.log.Append(userMsg)

	recent := o.log.Recent(64)
	isBroadcast := userMsg.Recipient == "" || voicenet.NormalizeCallsign(userMsg.Recipient) == "ALL"

	responders := o.selectResponders(userMsg, recent)

	type outcome struct {
		entry *rosterEntry
		text  string
		err   error
	}
	outcomes := make([]outcome, len(responders))
	var wg sync.WaitGroup
	for i, r := range responders {
		wg.Add(1)
		go func(i int, r *rosterEntry) {
			defer wg.Done()
			r.mu.Lock()
			defer r.mu.Unlock()
			result, err := o.runtime.RunTurn(ctx, r.agent, o.log)
			outcomes[i] = outcome{entry: r, text: result.Utterance, err: err}
		}(i, r)
	}
	wg.Wait()

	var responses []Response
	anySpoke := false
	for _, oc := range outcomes {
		if oc.err != nil {
			o.log.Append(message.NewSystem("turn failed for " + oc.entry.agent.Callsign + ": " + oc.err.Error()))
			continue
		}
		if oc.text == "" {
			continue
		}
		anySpoke = true
		utterance := message.New(oc.entry.agent.Callsign, oc.text, message.KindAgent)
		o.log.Append(utterance)
		responses = append(responses, Response{AgentID: oc.entry.agent.ID, Callsign: oc.entry.agent.Callsign, Text: oc.text})
	}

	if isBroadcast && !anySpoke {
		if sl := o.squadLeader(); sl != nil {
			sl.mu.Lock()
			result, err := o.runtime.RunTurn(ctx, sl.agent, o.log)
			sl.mu.Unlock()
			if err == nil && result.Utterance != "" {
				utterance := message.New(sl.agent.Callsign, result.Utterance, message.KindAgent)
				o.log.Append(utterance)
				responses = append(responses, Response{AgentID: sl.agent.ID, Callsign: sl.agent.Callsign, Text: result.Utterance})
			}
		}
	}

	sortByPriority(responses, o.roster)
	return responses, nil
}

// sortByPriority reorders responses into the deterministic reported order:
// squad_leader first, then registration order (spec §4.10 step 5).
func sortByPriority(responses []Response, roster []*rosterEntry) {
	priority := make(map[string]int, len(roster))
	for i, r := range roster {
		p := i + 1
		if r.agent.SquadLeader {
			p = 0
		}
		priority[r.agent.ID] = p
	}
	sort.SliceStable(responses, func(i, j int) bool {
		return priority[responses[i].AgentID] < priority[responses[j].AgentID]
	})
}
