package modelagent

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory is a constructor that creates an Agent.
type Factory func() Agent

// Registry maps stub names to their factory constructors and manages the
// lifecycle of spawned agents.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	spawned   []Agent
}

// NewRegistry creates a Registry pre-registered with the built-in stubs.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}
	r.factories["echo"] = func() Agent { return NewEchoAgent() }
	r.factories["lorem"] = func() Agent { return NewLoremAgent() }
	r.factories["reverse"] = func() Agent { return NewReverseAgent() }
	return r
}

// Register adds or replaces a factory under name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Spawn creates a single agent by name using the registered factory.
func (r *Registry) Spawn(name string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("modelagent: no factory registered for %q", name)
	}
	ag := factory()
	r.spawned = append(r.spawned, ag)
	return ag, nil
}

// SpawnAll creates every registered agent, assigns sequential ports
// starting from basePort, and starts each one's HTTP server. Returns the
// endpoint URL per stub name.
func (r *Registry) SpawnAll(ctx context.Context, basePort int) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Deterministic order for port assignment.
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	endpoints := make(map[string]string, len(names))
	var agents []Agent
	for i, name := range names {
		ag := r.factories[name]()
		addr := fmt.Sprintf("127.0.0.1:%d", basePort+i)
		if err := ag.Start(ctx, addr); err != nil {
			for j := len(agents) - 1; j >= 0; j-- {
				_ = agents[j].Stop(ctx)
			}
			return nil, fmt.Errorf("modelagent: start %q on %s: %w", name, addr, err)
		}
		agents = append(agents, ag)
		endpoints[name] = "http://" + addr
	}

	r.spawned = append(r.spawned, agents...)
	return endpoints, nil
}

// StopAll gracefully stops all spawned agents in reverse order.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for i := len(r.spawned) - 1; i >= 0; i-- {
		if err := r.spawned[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.spawned = nil
	return firstErr
}
