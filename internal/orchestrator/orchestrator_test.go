package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semanticarchitectures/voicenet-ome/internal/agentrt"
	"github.com/semanticarchitectures/voicenet-ome/internal/llm"
	"github.com/semanticarchitectures/voicenet-ome/internal/memory"
	"github.com/semanticarchitectures/voicenet-ome/internal/message"
	"github.com/semanticarchitectures/voicenet-ome/internal/speaking"
	"github.com/semanticarchitectures/voicenet-ome/internal/telemetry"
	"github.com/semanticarchitectures/voicenet-ome/internal/tools"
)

type fixedProvider struct{ reply string }

func (p fixedProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{StopReason: llm.StopEndTurn, Content: []llm.ContentBlock{{Type: "text", Text: p.reply}}}, nil
}

type silentProvider struct{}

func (silentProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{StopReason: llm.StopEndTurn, Content: nil}, nil
}

func newTestOrchestrator(t *testing.T, agents []*agentrt.Agent) (*Orchestrator, *message.Log) {
	t.Helper()
	rt := agentrt.New(agentrt.DefaultConfig(), tools.New(nil), nil, telemetry.NoopLogger{})
	log := message.NewLog(100)
	return New(DefaultConfig(), rt, log, agents, telemetry.NoopLogger{}), log
}

func leaderAgent(reply string) *agentrt.Agent {
	return &agentrt.Agent{
		ID: "agent.overlord", Callsign: "Overlord", BasePrompt: "lead the net", SquadLeader: true,
		SpeakingCriteria: speaking.SquadLeader{CoordinationKeywords: []string{"status"}},
		Memory:           memory.New(20),
		Provider:         fixedProvider{reply: reply},
	}
}

func specialistAgent(id, callsign string, criteria speaking.Criterion, reply string) *agentrt.Agent {
	return &agentrt.Agent{
		ID: id, Callsign: callsign, BasePrompt: "specialist",
		SpeakingCriteria: criteria,
		Memory:           memory.New(20),
		Provider:         fixedProvider{reply: reply},
	}
}

func TestHandleUserMessage_DirectedToSpecificAgent(t *testing.T) {
	t.Parallel()

	leader := leaderAgent("All stations, this is Overlord, standing by, over.")
	scout := specialistAgent("agent.raven", "Raven", speaking.DirectAddress{}, "Command, this is Raven, wilco, over.")
	orch, _ := newTestOrchestrator(t, []*agentrt.Agent{leader, scout})

	responses, err := orch.HandleUserMessage(context.Background(), "Command", "Raven, this is Command, report position, over.")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "Raven", responses[0].Callsign)
}

func TestHandleUserMessage_DirectedToUnknownFallsBackToSquadLeader(t *testing.T) {
	t.Parallel()

	leader := leaderAgent("All stations, this is Overlord, I'll handle it, over.")
	scout := specialistAgent("agent.raven", "Raven", speaking.DirectAddress{}, "should not speak")
	orch, _ := newTestOrchestrator(t, []*agentrt.Agent{leader, scout})

	responses, err := orch.HandleUserMessage(context.Background(), "Command", "Ghost, this is Command, report position, over.")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "Overlord", responses[0].Callsign)
}

func TestHandleUserMessage_BroadcastCapsAtMaxResponses(t *testing.T) {
	t.Parallel()

	leader := leaderAgent("All stations, this is Overlord, go ahead, over.")
	agents := []*agentrt.Agent{leader}
	for i := 0; i < 5; i++ {
		callsign := string(rune('A' + i))
		agents = append(agents, specialistAgent("agent."+callsign, callsign, speaking.Keywords{Words: []string{"status"}}, callsign+" reporting"))
	}
	orch, _ := newTestOrchestrator(t, agents)

	responses, err := orch.HandleUserMessage(context.Background(), "Command", "All stations, this is Command, status check, over.")
	require.NoError(t, err)
	require.LessOrEqual(t, len(responses), 3)
}

func TestHandleUserMessage_SquadLeaderFallsBackWhenNoSpecialistMatches(t *testing.T) {
	t.Parallel()

	leader := leaderAgent("All stations, this is Overlord, acknowledged, over.")
	scout := specialistAgent("agent.raven", "Raven", speaking.Keywords{Words: []string{"recon"}}, "should not speak")
	orch, _ := newTestOrchestrator(t, []*agentrt.Agent{leader, scout})

	responses, err := orch.HandleUserMessage(context.Background(), "Command", "All stations, this is Command, good morning, over.")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "Overlord", responses[0].Callsign)
}

func TestHandleUserMessage_ReportedOrderIsSquadLeaderFirst(t *testing.T) {
	t.Parallel()

	leader := leaderAgent("All stations, this is Overlord, copy, over.")
	leader.SpeakingCriteria = speaking.SquadLeader{CoordinationKeywords: []string{"status"}}
	scout := specialistAgent("agent.raven", "Raven", speaking.Keywords{Words: []string{"status"}}, "Command, this is Raven, status nominal, over.")
	orch, _ := newTestOrchestrator(t, []*agentrt.Agent{leader, scout})

	responses, err := orch.HandleUserMessage(context.Background(), "Command", "All stations, this is Command, status check, over.")
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.Equal(t, "Overlord", responses[0].Callsign)
	require.Equal(t, "Raven", responses[1].Callsign)
}

func TestHandleUserMessage_AppendsUserAndAgentMessagesToLog(t *testing.T) {
	t.Parallel()

	leader := leaderAgent("All stations, this is Overlord, copy, over.")
	leader.SpeakingCriteria = speaking.SquadLeader{CoordinationKeywords: []string{"status"}}
	orch, log := newTestOrchestrator(t, []*agentrt.Agent{leader})

	_, err := orch.HandleUserMessage(context.Background(), "Command", "All stations, this is Command, status check, over.")
	require.NoError(t, err)
	require.Equal(t, 2, log.Len()) // user message + leader's reply
}
