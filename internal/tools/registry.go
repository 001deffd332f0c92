// Package tools implements the Tool Registry: an in-process aggregator of
// ToolDescriptors discovered across the tool-server federation.
package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/semanticarchitectures/voicenet-ome/internal/telemetry"
)

// Descriptor describes one callable tool published by a tool server.
type Descriptor struct {
	ToolName    string
	ServerName  string
	Description string
	InputSchema map[string]any
}

// Registry aggregates Descriptors across servers, keyed by tool_name.
// tool_name collisions resolve to first-registered and log a warning.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Descriptor
	order   []string
	logger  telemetry.Logger
}

// New constructs an empty Registry. A nil logger is replaced with a no-op.
func New(logger telemetry.Logger) *Registry {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Registry{byName: make(map[string]Descriptor), logger: logger}
}

// Install adds a Descriptor. If tool_name already exists, the existing
// registration wins and the attempt is logged as a warning.
func (r *Registry) Install(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[d.ToolName]; ok {
		r.logger.Warn(context.Background(), "tools: name collision, keeping first registration",
			"tool_name", d.ToolName, "kept_server", existing.ServerName, "rejected_server", d.ServerName)
		return
	}
	r.byName[d.ToolName] = d
	r.order = append(r.order, d.ToolName)
}

// Uninstall removes all Descriptors registered under serverName, used when a
// tool server's session is torn down.
func (r *Registry) Uninstall(serverName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	for _, name := range r.order {
		if r.byName[name].ServerName == serverName {
			delete(r.byName, name)
			continue
		}
		kept = append(kept, name)
	}
	r.order = kept
}

// ListAll returns every registered Descriptor, ordered by tool_name for
// deterministic prompt rendering.
func (r *Registry) ListAll() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolName < out[j].ToolName })
	return out
}

// Lookup resolves tool_name to its Descriptor.
func (r *Registry) Lookup(toolName string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[toolName]
	return d, ok
}
