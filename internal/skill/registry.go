// ABOUTME: Static catalog of registered remote skills for the gateway.
// ABOUTME: Maps skill ids to app identity and endpoint; immutable after load.

package skill

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSkillNotFound indicates the requested skill id is not registered.
var ErrSkillNotFound = errors.New("skill not found")

// Skill describes one registered remote delegate. Immutable once loaded.
type Skill struct {
	ID       string // unique within the registry
	AppID    string // app identity used for outbound credential negotiation
	Endpoint string // base URL of the skill's activity endpoint
}

// Registry is the configured catalog of known skills plus the single callback
// base URL every skill uses to reach back into this gateway.
type Registry struct {
	hostEndpoint string
	skills       map[string]*Skill
}

// NewRegistry builds a registry from the given skills. Duplicate or
// incomplete entries are a configuration error, caught at startup.
func NewRegistry(hostEndpoint string, skills ...*Skill) (*Registry, error) {
	if hostEndpoint == "" {
		return nil, fmt.Errorf("skill host endpoint is required")
	}

	byID := make(map[string]*Skill, len(skills))
	for _, s := range skills {
		if s.ID == "" || s.AppID == "" || s.Endpoint == "" {
			return nil, fmt.Errorf("skill %q: id, app id, and endpoint are all required", s.ID)
		}
		if _, exists := byID[s.ID]; exists {
			return nil, fmt.Errorf("skill %q registered twice", s.ID)
		}
		byID[s.ID] = s
	}

	return &Registry{
		hostEndpoint: hostEndpoint,
		skills:       byID,
	}, nil
}

// Get returns the skill registered under id, or ErrSkillNotFound.
func (r *Registry) Get(id string) (*Skill, error) {
	s, ok := r.skills[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSkillNotFound, id)
	}
	return s, nil
}

// List returns all registered skills sorted by id.
func (r *Registry) List() []*Skill {
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HostEndpoint returns the callback base URL skills use to reach the gateway.
func (r *Registry) HostEndpoint() string {
	return r.hostEndpoint
}
