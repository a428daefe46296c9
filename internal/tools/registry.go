package tools

import (
	"sort"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/config"
)

// Registry holds every tool that passed registration-time policy gating.
// A tool that's filtered out here is never exposed to the agent;
// attempting to call it by name yields a standard MCP method-not-found
// from the transport layer, since the registry simply has no entry for
// it.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry registers every candidate tool that survives cfg's policy:
// Atlas tools are dropped unless an Atlas API service account is
// configured, readOnly drops non-read/metadata/connect tools, and
// disabledTools drops by category, operationType, or exact name.
func NewRegistry(cfg *config.Config, candidates []Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(candidates))}
	disabled := toSet(cfg.DisabledTools)
	atlasConfigured := cfg.APIClientID != "" && cfg.APIClientSecret != ""

	var names []string
	for _, t := range candidates {
		if t.Category == CategoryAtlas && !atlasConfigured {
			continue
		}
		if cfg.ReadOnly && t.OperationType != OpRead && t.OperationType != OpMeta && t.OperationType != OpConnect {
			continue
		}
		if disabled[string(t.Category)] || disabled[string(t.OperationType)] || disabled[t.Name] {
			continue
		}
		r.tools[t.Name] = t
		names = append(names, t.Name)
	}

	sort.Strings(names)
	r.order = names
	return r
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Get returns the tool registered under name, and whether it exists.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool sorted by name, for listTools
// responses.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}
