// Package mcpclient implements the Tool Client Pool: one long-lived MCP
// session per configured tool server, tool discovery/installation into a
// Registry, circuit-breaker- and rate-limit-guarded invocation, and
// reverse-order shutdown.
package mcpclient

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/semanticarchitectures/voicenet-ome/internal/breaker"
	"github.com/semanticarchitectures/voicenet-ome/internal/telemetry"
	"github.com/semanticarchitectures/voicenet-ome/internal/toolerrors"
	"github.com/semanticarchitectures/voicenet-ome/internal/tools"
)

// ServerConfig describes one tool server to connect to (spec §6).
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string // set instead of Command for streamable-HTTP servers

	ConnectTimeout time.Duration // default 30s
	InitTimeout    time.Duration // default 10s
	CallTimeout    time.Duration // default 30s

	// RateLimitPerSecond bounds call admission to this server; 0 disables
	// limiting (supplemental backpressure beyond the breaker, spec §5).
	RateLimitPerSecond float64
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = 10 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	return c
}

type serverHandle struct {
	cfg     ServerConfig
	session *mcpsdk.ClientSession
	breaker *breaker.Breaker
	limiter *rate.Limiter
}

// Pool manages one session per configured tool server.
type Pool struct {
	registry *tools.Registry
	logger   telemetry.Logger

	order   []string
	servers map[string]*serverHandle
}

// New constructs an empty Pool bound to the given Registry.
func New(registry *tools.Registry, logger telemetry.Logger) *Pool {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Pool{registry: registry, logger: logger, servers: make(map[string]*serverHandle)}
}

// Connect establishes a session for each server in order, discovers its
// tools, and installs them into the Registry. If any server's discovery
// fails, every successfully connected server in this call is rolled back
// (sessions closed, tools uninstalled) and the error is returned.
func (p *Pool) Connect(ctx context.Context, servers []ServerConfig) error {
	connected := make([]string, 0, len(servers))
	for _, raw := range servers {
		cfg := raw.withDefaults()
		if err := p.connectOne(ctx, cfg); err != nil {
			for i := len(connected) - 1; i >= 0; i-- {
				p.closeOne(connected[i])
			}
			return toolerrors.Wrap(toolerrors.KindConfig, fmt.Sprintf("connect tool server %q", cfg.Name), err)
		}
		connected = append(connected, cfg.Name)
	}
	return nil
}

func (p *Pool) connectOne(ctx context.Context, cfg ServerConfig) error {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "voicenet-ome", Version: "0.1.0"}, nil)

	var session *mcpsdk.ClientSession
	var err error
	switch {
	case cfg.Command != "":
		cmd := exec.Command(cfg.Command, cfg.Args...)
		if len(cfg.Env) > 0 {
			env := os.Environ()
			for k, v := range cfg.Env {
				env = append(env, k+"="+v)
			}
			cmd.Env = env
		}
		session, err = client.Connect(connectCtx, &mcpsdk.CommandTransport{Command: cmd}, nil)
	case cfg.URL != "":
		session, err = client.Connect(connectCtx, &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}, nil)
	default:
		return fmt.Errorf("tool server %q: neither command nor url configured", cfg.Name)
	}
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	initCtx, initCancel := context.WithTimeout(ctx, cfg.InitTimeout)
	defer initCancel()

	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), 1)
	}
	h := &serverHandle{cfg: cfg, session: session, breaker: breaker.New(breaker.DefaultConfig()), limiter: limiter}
	h.breaker.OnTransition(func(from, to breaker.State) {
		p.logger.Info(ctx, "breaker.state_change", "server_name", cfg.Name, "from", from, "to", to, "failure_count", h.breaker.Stats().FailureCount)
	})

	discovered := 0
	for tool, toolErr := range session.Tools(initCtx, nil) {
		if toolErr != nil {
			p.registry.Uninstall(cfg.Name)
			_ = session.Close()
			return fmt.Errorf("list_tools: %w", toolErr)
		}
		p.registry.Install(tools.Descriptor{
			ToolName:    cfg.Name + "_" + tool.Name,
			ServerName:  cfg.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
		discovered++
	}

	p.servers[cfg.Name] = h
	p.order = append(p.order, cfg.Name)
	p.logger.Info(ctx, "mcp.connect", "server_name", cfg.Name, "tools_discovered", discovered)
	return nil
}

func schemaToMap(schema any) map[string]any {
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Close tears down every session in reverse registration order. Calling
// Close twice is a no-op on the second call (spec §8 invariant 12).
func (p *Pool) Close() {
	for i := len(p.order) - 1; i >= 0; i-- {
		p.closeOne(p.order[i])
	}
	p.order = nil
}

func (p *Pool) closeOne(name string) {
	h, ok := p.servers[name]
	if !ok {
		return
	}
	_ = h.session.Close()
	p.registry.Uninstall(name)
	delete(p.servers, name)
}

// CallResult is the outcome of a successful (transport-level) tool call.
// IsError mirrors the MCP wire protocol's isError flag: the call completed
// but the tool itself reported a structured failure, which the Agent
// Runtime feeds back to the model as data rather than aborting the turn.
type CallResult struct {
	Content string
	IsError bool
}

// CallTool resolves toolName to its server, consults the breaker, and
// invokes the call under the configured timeout, per the §4.4 invocation
// contract. The returned error is only set for transport-level failures
// (ToolNotFound, CircuitOpen, ToolTimeout, ToolExecutionError); a structured
// tool-side failure surfaces via CallResult.IsError instead.
func (p *Pool) CallTool(ctx context.Context, toolName string, arguments map[string]any) (CallResult, error) {
	desc, ok := p.registry.Lookup(toolName)
	if !ok {
		return CallResult{}, toolerrors.New(toolerrors.KindToolNotFound, "tool not found: "+toolName)
	}
	h, ok := p.servers[desc.ServerName]
	if !ok {
		return CallResult{}, toolerrors.New(toolerrors.KindToolNotFound, "tool server not connected: "+desc.ServerName)
	}

	if !h.breaker.Allow() {
		return CallResult{}, toolerrors.New(toolerrors.KindCircuitOpen, "circuit open for server "+desc.ServerName)
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			h.breaker.RecordFailure()
			return CallResult{}, toolerrors.Wrap(toolerrors.KindToolExecutionError, "rate limiter wait", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, h.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	p.logger.Info(ctx, "tool.call.start", "tool_name", toolName, "server_name", desc.ServerName)
	result, err := h.session.CallTool(callCtx, &mcpsdk.CallToolParams{Name: desc.ToolName[len(desc.ServerName)+1:], Arguments: arguments})
	duration := time.Since(start)

	if err != nil {
		h.breaker.RecordFailure()
		if callCtx.Err() != nil {
			p.logger.Warn(ctx, "tool.call.end", "tool_name", toolName, "server_name", desc.ServerName, "duration_ms", duration.Milliseconds(), "outcome", "timeout")
			return CallResult{}, toolerrors.Wrap(toolerrors.KindToolTimeout, "tool call timed out", err)
		}
		p.logger.Warn(ctx, "tool.call.end", "tool_name", toolName, "server_name", desc.ServerName, "duration_ms", duration.Milliseconds(), "outcome", "error")
		return CallResult{}, toolerrors.Wrap(toolerrors.KindToolExecutionError, "tool call failed", err)
	}

	h.breaker.RecordSuccess()
	p.logger.Info(ctx, "tool.call.end", "tool_name", toolName, "server_name", desc.ServerName, "duration_ms", duration.Milliseconds(), "outcome", "success")
	return CallResult{Content: stringifyResult(result), IsError: result != nil && result.IsError}, nil
}

func stringifyResult(result *mcpsdk.CallToolResult) string {
	if result == nil {
		return ""
	}
	var out string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			out += tc.Text
		}
	}
	return out
}
