package skill

import (
	"fmt"

	"github.com/edgard/skillbot/internal/config"
	"github.com/edgard/skillbot/internal/provider"
)

// Registry maps command verbs to executors, keeping configuration order.
type Registry struct {
	ordered   []*Executor
	byCommand map[string]*Executor
}

// NewRegistry builds one executor per skill.
func NewRegistry(skills []config.SkillConfig, adapters map[string]provider.Adapter, deps Deps) (*Registry, error) {
	r := &Registry{byCommand: make(map[string]*Executor, len(skills))}
	for _, s := range skills {
		adapter, ok := adapters[s.Provider]
		if !ok {
			return nil, fmt.Errorf("skill %q: no adapter for provider %q", s.Name, s.Provider)
		}
		if _, dup := r.byCommand[s.Command]; dup {
			return nil, fmt.Errorf("skill %q: duplicate command %q", s.Name, s.Command)
		}
		e := NewExecutor(s, adapter, deps)
		r.ordered = append(r.ordered, e)
		r.byCommand[s.Command] = e
	}
	return r, nil
}

// Lookup returns the executor for a command verb without the leading slash.
func (r *Registry) Lookup(command string) (*Executor, bool) {
	e, ok := r.byCommand[command]
	return e, ok
}

// All returns the executors in configuration order.
func (r *Registry) All() []*Executor {
	return r.ordered
}
