// Package breath implements the cyclic breathing guide and its protocol catalog.
package breath

import (
	"fmt"
	"sort"

	"github.com/BTreeMap/Parabola/internal/models"
)

// Breathing instructions shared by the built-in protocols.
const (
	InstructionBreatheIn  = "Breathe In"
	InstructionHold       = "Hold"
	InstructionBreatheOut = "Breathe Out"
)

var (
	// ErrUnknownSequence is returned when a sequence id is not in the catalog.
	ErrUnknownSequence = fmt.Errorf("%w: unknown breathing sequence", models.ErrConfiguration)
	// ErrEmptySequence is returned for a sequence without phases.
	ErrEmptySequence = fmt.Errorf("%w: breathing sequence has no phases", models.ErrConfiguration)
	// ErrInvalidPhase is returned for a phase with a non-positive duration.
	ErrInvalidPhase = fmt.Errorf("%w: phase duration must be positive", models.ErrConfiguration)
)

// Catalog is an immutable lookup of breathing protocols by id.
type Catalog struct {
	sequences map[string]models.PhaseSequence
}

// NewCatalog builds a catalog from the given sequences. Phase positions are
// normalised to their index. Empty sequences are accepted here and rejected
// when started, so a catalog can describe a protocol that is not ready yet.
func NewCatalog(sequences ...models.PhaseSequence) (*Catalog, error) {
	c := &Catalog{sequences: make(map[string]models.PhaseSequence, len(sequences))}
	for _, seq := range sequences {
		if seq.ID == "" {
			return nil, fmt.Errorf("%w: sequence id is required", models.ErrConfiguration)
		}
		if _, dup := c.sequences[seq.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate sequence id %q", models.ErrConfiguration, seq.ID)
		}
		phases := make([]models.Phase, len(seq.Phases))
		for i, p := range seq.Phases {
			if p.DurationSeconds <= 0 {
				return nil, fmt.Errorf("%w (sequence %q, phase %d)", ErrInvalidPhase, seq.ID, i)
			}
			p.Position = i
			phases[i] = p
		}
		seq.Phases = phases
		c.sequences[seq.ID] = seq
	}
	return c, nil
}

// Lookup returns a copy of the sequence with the given id.
func (c *Catalog) Lookup(id string) (models.PhaseSequence, error) {
	seq, ok := c.sequences[id]
	if !ok {
		return models.PhaseSequence{}, fmt.Errorf("%w: %q", ErrUnknownSequence, id)
	}
	if len(seq.Phases) == 0 {
		return models.PhaseSequence{}, fmt.Errorf("%w: %q", ErrEmptySequence, id)
	}
	seq.Phases = append([]models.Phase(nil), seq.Phases...)
	return seq, nil
}

// List returns every sequence ordered by id.
func (c *Catalog) List() []models.PhaseSequence {
	out := make([]models.PhaseSequence, 0, len(c.sequences))
	for _, seq := range c.sequences {
		seq.Phases = append([]models.Phase(nil), seq.Phases...)
		out = append(out, seq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultSequences returns the built-in protocols.
func DefaultSequences() []models.PhaseSequence {
	return []models.PhaseSequence{
		{
			ID:          "box",
			Name:        "Box Breathing",
			Description: "Focus & Reset",
			Phases: []models.Phase{
				{Label: InstructionBreatheIn, DurationSeconds: 4},
				{Label: InstructionHold, DurationSeconds: 4},
				{Label: InstructionBreatheOut, DurationSeconds: 4},
				{Label: InstructionHold, DurationSeconds: 4},
			},
		},
		{
			ID:          "coherence",
			Name:        "Coherence Breathing",
			Description: "Stress Regulation",
			Phases: []models.Phase{
				{Label: InstructionBreatheIn, DurationSeconds: 6},
				{Label: InstructionBreatheOut, DurationSeconds: 6},
			},
		},
		{
			ID:          "sleep",
			Name:        "4-7-8 Downshift",
			Description: "Sleep Protocol",
			Phases: []models.Phase{
				{Label: InstructionBreatheIn, DurationSeconds: 4},
				{Label: InstructionHold, DurationSeconds: 7},
				{Label: InstructionBreatheOut, DurationSeconds: 8},
			},
		},
	}
}

// DefaultCatalog returns a catalog of the built-in protocols.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSequences()...)
	if err != nil {
		panic(fmt.Sprintf("built-in breathing catalog is invalid: %v", err))
	}
	return c
}
