package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"shapebot/internal/domain"
)

// Registry holds the directive tools and executes them by name.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

func (r *Registry) Register(t domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.logger.Debug("registered tool", "name", t.Name())
}

func (r *Registry) Get(name string) domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Execute runs the tool named by req.Tool.
func (r *Registry) Execute(ctx context.Context, req domain.ToolRequest) (domain.Reply, error) {
	t := r.Get(req.Tool)
	if t == nil {
		return domain.Reply{}, fmt.Errorf("unknown tool: %s (available: %v)", req.Tool, r.Names())
	}
	r.logger.Debug("executing tool", "name", req.Tool, "input_len", len(req.Input))
	return t.Execute(ctx, req)
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
