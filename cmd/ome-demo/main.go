// Command ome-demo wires a small two-agent squad — a squad leader and one
// specialist — over an in-memory session and runs a scripted exchange.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/semanticarchitectures/voicenet-ome/internal/agentrt"
	"github.com/semanticarchitectures/voicenet-ome/internal/llm"
	"github.com/semanticarchitectures/voicenet-ome/internal/memory"
	"github.com/semanticarchitectures/voicenet-ome/internal/message"
	"github.com/semanticarchitectures/voicenet-ome/internal/orchestrator"
	"github.com/semanticarchitectures/voicenet-ome/internal/snapshot"
	"github.com/semanticarchitectures/voicenet-ome/internal/speaking"
	"github.com/semanticarchitectures/voicenet-ome/internal/telemetry"
	"github.com/semanticarchitectures/voicenet-ome/internal/tools"
)

// scriptedProvider is a fixed-response llm.Provider used so the demo runs
// without network access or API keys.
type scriptedProvider struct {
	reply string
}

func (p scriptedProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{
		StopReason: llm.StopEndTurn,
		Content:    []llm.ContentBlock{{Type: "text", Text: p.reply}},
	}, nil
}

func main() {
	ctx := context.Background()
	logger := telemetry.NoopLogger{}

	log := message.NewLog(1000)
	registry := tools.New(logger)

	runtime := agentrt.New(agentrt.DefaultConfig(), registry, nil, logger)

	leader := &agentrt.Agent{
		ID:          "agent.overlord",
		Callsign:    "Overlord",
		Model:       "demo-model",
		MaxTokens:   512,
		BasePrompt:  "You are Overlord, the squad leader coordinating the net.",
		SquadLeader: true,
		SpeakingCriteria: speaking.SquadLeader{
			CoordinationKeywords: []string{"status", "sitrep", "coordinate"},
		},
		Memory:   memory.New(20),
		Provider: scriptedProvider{reply: "All stations, this is Overlord, acknowledged, over."},
	}
	scout := &agentrt.Agent{
		ID:         "agent.raven",
		Callsign:   "Raven",
		Model:      "demo-model",
		MaxTokens:  512,
		BasePrompt: "You are Raven, forward reconnaissance.",
		SpeakingCriteria: speaking.Composite{Criteria: []speaking.Criterion{
			speaking.DirectAddress{},
			speaking.Keywords{Words: []string{"recon", "scout", "sitrep"}},
		}},
		Memory:   memory.New(20),
		Provider: scriptedProvider{reply: "Overlord, this is Raven, sitrep follows, over."},
	}

	orch := orchestrator.New(orchestrator.DefaultConfig(), runtime, log, []*agentrt.Agent{leader, scout}, logger)

	responses, err := orch.HandleUserMessage(ctx, "Command", "All stations, this is Command, requesting sitrep, over.")
	if err != nil {
		fmt.Fprintln(os.Stderr, "turn failed:", err)
		os.Exit(1)
	}
	for _, r := range responses {
		fmt.Printf("%s: %s\n", r.Callsign, r.Text)
	}

	mgr := snapshot.New(snapshot.NewMapStore())
	roster := []snapshot.RosterEntry{
		{AgentID: leader.ID, Callsign: leader.Callsign, Memory: leader.Memory},
		{AgentID: scout.ID, Callsign: scout.Callsign, Memory: scout.Memory},
	}
	if err := mgr.Save(ctx, "demo-session", log, roster); err != nil {
		fmt.Fprintln(os.Stderr, "save snapshot failed:", err)
		os.Exit(1)
	}
	text, err := mgr.Export(ctx, "demo-session", snapshot.FormatText)
	if err != nil {
		fmt.Fprintln(os.Stderr, "export snapshot failed:", err)
		os.Exit(1)
	}
	fmt.Println(text)
}
