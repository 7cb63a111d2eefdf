package stage

import (
	"fmt"

	"projecttracker/internal/model"
)

const (
	MechanicalDesign model.StageID = "mechanical-design"
	ElectricalDesign model.StageID = "electrical-design"
	Manufacturing    model.StageID = "manufacturing"
	Wiring           model.StageID = "wiring"
	Assembly         model.StageID = "assembly"
	Controls         model.StageID = "controls"
	Dispatch         model.StageID = "dispatch"
	Installation     model.StageID = "installation"

	// legacy five-stage workflow
	Design     model.StageID = "design"
	Production model.StageID = "production"
)

type Stage struct {
	Name  model.StageID `json:"name"`
	Label string        `json:"label"`
}

// Registry is the fixed, ordered list of workflow stages.
type Registry struct {
	stages []Stage
	index  map[model.StageID]int
}

func NewRegistry(stages ...Stage) (*Registry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("registry needs at least one stage")
	}
	r := &Registry{
		stages: make([]Stage, 0, len(stages)),
		index:  make(map[model.StageID]int, len(stages)),
	}
	for _, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage name must not be empty")
		}
		if _, dup := r.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate stage %q", s.Name)
		}
		r.index[s.Name] = len(r.stages)
		r.stages = append(r.stages, s)
	}
	return r, nil
}

func MustRegistry(stages ...Stage) *Registry {
	r, err := NewRegistry(stages...)
	if err != nil {
		panic(err)
	}
	return r
}

var (
	Default = MustRegistry(
		Stage{MechanicalDesign, "Mechanical Design"},
		Stage{ElectricalDesign, "Electrical Design"},
		Stage{Manufacturing, "Manufacturing"},
		Stage{Wiring, "Wiring"},
		Stage{Assembly, "Assembly"},
		Stage{Controls, "Controls"},
		Stage{Dispatch, "Ready for Dispatch"},
		Stage{Installation, "Installation & Commissioning"},
	)

	Legacy = MustRegistry(
		Stage{Design, "Design"},
		Stage{Production, "Production"},
		Stage{Controls, "Controls"},
		Stage{Dispatch, "Ready for Dispatch"},
		Stage{Installation, "Installation & Commissioning"},
	)
)

// ByName resolves a registry from configuration.
func ByName(name string) (*Registry, error) {
	switch name {
	case "", "default":
		return Default, nil
	case "legacy":
		return Legacy, nil
	}
	return nil, fmt.Errorf("unknown stage registry %q", name)
}

func (r *Registry) Stages() []Stage {
	out := make([]Stage, len(r.stages))
	copy(out, r.stages)
	return out
}

func (r *Registry) IDs() []model.StageID {
	out := make([]model.StageID, len(r.stages))
	for i, s := range r.stages {
		out[i] = s.Name
	}
	return out
}

func (r *Registry) First() model.StageID { return r.stages[0].Name }

func (r *Registry) Len() int { return len(r.stages) }

func (r *Registry) Contains(id model.StageID) bool {
	_, ok := r.index[id]
	return ok
}

// Index returns the position of id, or -1.
func (r *Registry) Index(id model.StageID) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// Label falls back to the raw id for stages outside the registry.
func (r *Registry) Label(id model.StageID) string {
	if i, ok := r.index[id]; ok {
		return r.stages[i].Label
	}
	return string(id)
}
