package toolserver

import (
	"context"
	"fmt"
)

// Registry is the read side of the supervisor: a merged view of every
// connected server's tool catalog, plus name-based dispatch.
type Registry struct {
	sup *Supervisor
}

func NewRegistry(sup *Supervisor) *Registry {
	return &Registry{sup: sup}
}

// AllTools returns the catalog of every connected server keyed by server
// name. Servers without tools are present with an empty list so callers can
// tell "connected, no tools" from "not connected".
func (r *Registry) AllTools() map[string][]Tool {
	out := make(map[string][]Tool)
	for _, name := range r.sup.activeNames() {
		sess, ok := r.sup.session(name)
		if !ok {
			continue
		}
		tools := sess.Tools()
		if tools == nil {
			tools = []Tool{}
		}
		out[name] = tools
	}
	return out
}

// ServerCatalog pairs a server name with its tool catalog.
type ServerCatalog struct {
	Server string
	Tools  []Tool
}

// Catalog returns every connected server's tools in supervisor start order,
// the same order Resolve scans. Consumers that dedupe by tool name in this
// order therefore keep exactly the descriptors Resolve would dispatch to.
func (r *Registry) Catalog() []ServerCatalog {
	var out []ServerCatalog
	for _, name := range r.sup.activeNames() {
		sess, ok := r.sup.session(name)
		if !ok {
			continue
		}
		tools := sess.Tools()
		if tools == nil {
			tools = []Tool{}
		}
		out = append(out, ServerCatalog{Server: name, Tools: tools})
	}
	return out
}

// ServerTools returns one server's catalog. A known but unconnected server
// yields an empty list.
func (r *Registry) ServerTools(name string) ([]Tool, error) {
	if _, ok := r.sup.cfg.Server(name); !ok {
		return nil, fmt.Errorf("unknown server: %s", name)
	}
	sess, ok := r.sup.session(name)
	if !ok {
		return []Tool{}, nil
	}
	return sess.Tools(), nil
}

// Resolve maps a tool name to the server that provides it. When several
// servers expose the same name, the earliest-started server wins.
func (r *Registry) Resolve(tool string) (string, bool) {
	for _, name := range r.sup.activeNames() {
		sess, ok := r.sup.session(name)
		if !ok {
			continue
		}
		for _, t := range sess.Tools() {
			if t.Name == tool {
				return name, true
			}
		}
	}
	return "", false
}

// Execute dispatches a tool call to the server that provides it. A tool no
// connected server offers is a failed call, not a panic or an error return.
func (r *Registry) Execute(ctx context.Context, tool string, args map[string]any) (bool, string) {
	server, ok := r.Resolve(tool)
	if !ok {
		return false, fmt.Sprintf("tool not available: %s", tool)
	}
	return r.ExecuteOn(ctx, server, tool, args)
}

// ExecuteOn dispatches a tool call to a specific server.
func (r *Registry) ExecuteOn(ctx context.Context, server, tool string, args map[string]any) (bool, string) {
	sess, ok := r.sup.session(server)
	if !ok {
		return false, fmt.Sprintf("server not connected: %s", server)
	}
	return sess.Call(ctx, tool, args)
}
