// Package agentrt implements the Agent Runtime: the bounded tool-use state
// machine that takes one agent through a single turn — context assembly,
// LLM generation, tool-use iteration, and memory-command extraction.
package agentrt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/semanticarchitectures/voicenet-ome/internal/llm"
	"github.com/semanticarchitectures/voicenet-ome/internal/mcpclient"
	"github.com/semanticarchitectures/voicenet-ome/internal/memory"
	"github.com/semanticarchitectures/voicenet-ome/internal/message"
	"github.com/semanticarchitectures/voicenet-ome/internal/retry"
	"github.com/semanticarchitectures/voicenet-ome/internal/speaking"
	"github.com/semanticarchitectures/voicenet-ome/internal/telemetry"
	"github.com/semanticarchitectures/voicenet-ome/internal/toolerrors"
	"github.com/semanticarchitectures/voicenet-ome/internal/tools"
)

// Config tunes one Agent Runtime instance (spec §4.7/§9 defaults).
type Config struct {
	ContextWindow     int           // W, default 20
	MaxToolIterations int           // I, default 5
	LLMTimeout        time.Duration // default 120s
	ToolCallTimeout   time.Duration // default 30s
	Retry             retry.Config
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{ContextWindow: 20, MaxToolIterations: 5, LLMTimeout: 120 * time.Second, ToolCallTimeout: 30 * time.Second, Retry: retry.DefaultConfig()}
}

// Agent is one roster member: identity, configuration, and runtime state.
type Agent struct {
	ID               string
	Callsign         string
	Model            string
	Temperature      float64
	MaxTokens        int
	BasePrompt       string
	SquadLeader      bool
	SpeakingCriteria speaking.Criterion

	Memory   *memory.Memory
	Provider llm.Provider
}

// Runtime drives one Agent through its turn against the shared Tool
// Registry / Client Pool.
type Runtime struct {
	cfg      Config
	registry *tools.Registry
	pool     *mcpclient.Pool
	logger   telemetry.Logger
}

// New constructs a Runtime. registry/pool may be nil, meaning no tools are
// available to any agent driven by this Runtime.
func New(cfg Config, registry *tools.Registry, pool *mcpclient.Pool, logger telemetry.Logger) *Runtime {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 20
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 5
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 120 * time.Second
	}
	if cfg.ToolCallTimeout <= 0 {
		cfg.ToolCallTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Runtime{cfg: cfg, registry: registry, pool: pool, logger: logger}
}

// TurnResult is what one agent produced for one turn.
type TurnResult struct {
	Utterance      string // empty if the agent declined to speak
	MemoryApplied  int
	MemoryWarnings []memory.Warning
}

// RunTurn executes the bounded tool-use loop for one agent against the
// given message log, returning its utterance (if any) and memory side
// effects. Cancellation is observed before every LLM call and between tool
// invocations; on cancel the partial utterance is empty.
func (r *Runtime) RunTurn(ctx context.Context, agent *Agent, log *message.Log) (TurnResult, error) {
	window := log.ContextWindow(agent.Callsign, r.cfg.ContextWindow)
	catalog := r.effectiveCatalog()

	system := r.buildSystemPrompt(agent, catalog)
	msgs := convertWindow(window)

	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}
	reply, err := r.generate(ctx, agent, system, msgs, catalog)
	if err != nil {
		return TurnResult{}, toolerrors.Wrap(toolerrors.KindAgentResponse, "llm generate failed", err)
	}

	iter := 0
	for reply.StopReason == llm.StopToolUse {
		iter++
		if iter > r.cfg.MaxToolIterations {
			return TurnResult{}, toolerrors.New(toolerrors.KindOverflow, "tool-use loop exceeded max iterations")
		}
		if err := ctx.Err(); err != nil {
			return TurnResult{}, err
		}

		assistantBlocks := reply.Content
		resultBlocks := make([]llm.ContentBlock, 0, len(reply.ToolCalls()))
		for _, call := range reply.ToolCalls() {
			if err := ctx.Err(); err != nil {
				return TurnResult{}, err
			}
			content, isErr := r.invokeTool(ctx, call)
			resultBlocks = append(resultBlocks, llm.ContentBlock{
				Type:              "tool_result",
				ToolUseID:         call.ToolUseID,
				ToolResultContent: content,
				ToolResultIsError: isErr,
			})
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: assistantBlocks})
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: resultBlocks})

		if err := ctx.Err(); err != nil {
			return TurnResult{}, err
		}
		reply, err = r.generate(ctx, agent, system, msgs, catalog)
		if err != nil {
			return TurnResult{}, toolerrors.Wrap(toolerrors.KindAgentResponse, "llm generate failed", err)
		}
	}

	text := reply.Text()
	extraction := agent.Memory.ExtractAndApply(text)
	for _, w := range extraction.Warnings {
		r.logger.Warn(ctx, "memory.update", "agent_id", agent.ID, "reason", w.Reason, "line", w.Line)
	}
	if extraction.Applied > 0 {
		r.logger.Info(ctx, "memory.update", "agent_id", agent.ID, "applied", extraction.Applied)
	}

	return TurnResult{Utterance: text, MemoryApplied: extraction.Applied, MemoryWarnings: extraction.Warnings}, nil
}

// invokeTool calls the tool wrapped in the Retry Engine, classifying
// CircuitOpen/ToolTimeout/ToolExecutionError per §7. A failed call never
// aborts the loop: it is rendered as a structured textual error result.
func (r *Runtime) invokeTool(ctx context.Context, call llm.ContentBlock) (content string, isError bool) {
	if r.pool == nil {
		return toolerrors.New(toolerrors.KindToolNotFound, "no tool client pool configured").Error(), true
	}
	var args map[string]any
	if len(call.ToolInput) > 0 {
		_ = json.Unmarshal(call.ToolInput, &args)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.ToolCallTimeout)
	defer cancel()

	var result mcpclient.CallResult
	err := retry.Do(callCtx, r.cfg.Retry, isRetryableToolError, func(ctx context.Context) error {
		res, callErr := r.pool.CallTool(ctx, call.ToolName, args)
		result = res
		return callErr
	})
	if err != nil {
		return toolerrors.FromError(err).Error(), true
	}
	return result.Content, result.IsError
}

func isRetryableToolError(err error) bool {
	return toolerrors.Retryable(err)
}

// generate wraps the provider call in the per-request LLM timeout and
// classifies rate-limit failures as retryable per the Open Question
// decision recorded in DESIGN.md.
func (r *Runtime) generate(ctx context.Context, agent *Agent, system string, msgs []llm.Message, catalog []tools.Descriptor) (*llm.Response, error) {
	llmCtx, cancel := context.WithTimeout(ctx, r.cfg.LLMTimeout)
	defer cancel()

	req := llm.Request{System: system, Messages: msgs, Tools: toolSpecs(catalog), Model: agent.Model, Temperature: agent.Temperature, MaxTokens: agent.MaxTokens}

	var resp *llm.Response
	err := retry.Do(llmCtx, r.cfg.Retry, func(err error) bool {
		return errors.Is(err, llm.ErrRateLimited)
	}, func(ctx context.Context) error {
		out, genErr := agent.Provider.Generate(ctx, req)
		resp = out
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *Runtime) effectiveCatalog() []tools.Descriptor {
	if r.registry == nil {
		return nil
	}
	return r.registry.ListAll()
}

func toolSpecs(catalog []tools.Descriptor) []llm.ToolSpec {
	if len(catalog) == 0 {
		return nil
	}
	out := make([]llm.ToolSpec, len(catalog))
	for i, d := range catalog {
		out[i] = llm.ToolSpec{Name: d.ToolName, Description: d.Description, InputSchema: d.InputSchema}
	}
	return out
}

func convertWindow(window []message.Message) []llm.Message {
	out := make([]llm.Message, 0, len(window))
	for _, m := range window {
		role := llm.RoleUser
		switch m.Kind {
		case message.KindAgent:
			role = llm.RoleAssistant
		case message.KindSystem:
			role = llm.RoleSystem
		}
		out = append(out, llm.Message{Role: role, Content: []llm.ContentBlock{{Type: "text", Text: renderTagged(m)}}})
	}
	return out
}

func renderTagged(m message.Message) string {
	if m.Kind == message.KindSystem {
		return m.Content
	}
	return fmt.Sprintf("%s: %s", m.Sender, m.Content)
}

// buildSystemPrompt assembles the layered system prompt per spec §4.8:
// base prompt, voice-net protocol reminder, memory summary, tool catalog
// (iff non-empty), MEMORIZE instructions.
func (r *Runtime) buildSystemPrompt(agent *Agent, catalog []tools.Descriptor) string {
	var b strings.Builder
	b.WriteString(agent.BasePrompt)
	b.WriteString("\n\n")
	b.WriteString(voiceNetReminder)
	b.WriteString("\n\n")
	b.WriteString(agent.Memory.Render())
	if len(catalog) > 0 {
		b.WriteString("\nAvailable tools:\n")
		for _, d := range catalog {
			fmt.Fprintf(&b, "- %s (%s): %s\n", d.ToolName, d.ServerName, d.Description)
		}
	}
	b.WriteString("\n")
	b.WriteString(memorizeInstructions)
	return b.String()
}

const voiceNetReminder = `You communicate over a shared voice net. Address a single recipient as
"<Callsign>, this is <YourCallsign>, <message>, over." Address everyone as
"All stations, this is <YourCallsign>, <message>, over."`

const memorizeInstructions = `To persist information across turns, emit one line per item:
MEMORIZE[task_list]: <content>
MEMORIZE[key_facts]: <key>=<value>
MEMORIZE[decisions_made]: <content>
MEMORIZE[concerns]: <content>
MEMORIZE[notes]: <content>`
