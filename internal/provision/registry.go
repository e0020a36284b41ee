package provision

import "github.com/agentoven/purview-router/pkg/models"

// Names under which connected agents are registered and exposed to the
// routing agent.
const (
	FabricAgent = "fabric_agent"
	WebAgent    = "web_agent"
	RAGAgent    = "rag_agent"
)

// Registry holds the connected agents in creation order.
type Registry struct {
	names  []string
	agents map[string]*models.Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*models.Agent)}
}

// Add registers a under name. Re-adding a name replaces the agent but keeps
// its original position.
func (r *Registry) Add(name string, a *models.Agent) {
	if _, ok := r.agents[name]; !ok {
		r.names = append(r.names, name)
	}
	r.agents[name] = a
}

// Get returns the agent registered under name.
func (r *Registry) Get(name string) (*models.Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// Names returns the registered names in creation order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int { return len(r.names) }

// Each calls fn for every agent in creation order.
func (r *Registry) Each(fn func(name string, a *models.Agent)) {
	for _, name := range r.names {
		fn(name, r.agents[name])
	}
}
