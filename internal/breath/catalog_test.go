package breath

import (
	"errors"
	"testing"

	"github.com/BTreeMap/Parabola/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	want := map[string]string{"box": "4-4-4-4", "coherence": "6-6", "sleep": "4-7-8"}
	for id, pattern := range want {
		seq, err := c.Lookup(id)
		if err != nil {
			t.Fatalf("lookup %q failed: %v", id, err)
		}
		if seq.Pattern() != pattern {
			t.Errorf("%s: expected pattern %s, got %s", id, pattern, seq.Pattern())
		}
		for i, p := range seq.Phases {
			if p.Position != i {
				t.Errorf("%s: phase %d has position %d", id, i, p.Position)
			}
		}
	}
	if got := len(c.List()); got != 3 {
		t.Errorf("expected 3 protocols, got %d", got)
	}
}

func TestCatalogLookupErrors(t *testing.T) {
	c, err := NewCatalog(models.PhaseSequence{ID: "empty", Name: "Not ready"})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	if _, err := c.Lookup("missing"); !errors.Is(err, ErrUnknownSequence) || !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected unknown sequence configuration error, got %v", err)
	}
	if _, err := c.Lookup("empty"); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("expected empty sequence error, got %v", err)
	}
}

func TestNewCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		seqs []models.PhaseSequence
	}{
		{"missing id", []models.PhaseSequence{{Phases: []models.Phase{{Label: "In", DurationSeconds: 1}}}}},
		{"duplicate id", []models.PhaseSequence{{ID: "a"}, {ID: "a"}}},
		{"zero duration", []models.PhaseSequence{{ID: "a", Phases: []models.Phase{{Label: "In", DurationSeconds: 0}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.seqs...); !errors.Is(err, models.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	c := DefaultCatalog()
	seq, _ := c.Lookup("box")
	seq.Phases[0].DurationSeconds = 99

	again, _ := c.Lookup("box")
	if again.Phases[0].DurationSeconds != 4 {
		t.Errorf("catalog was mutated through a lookup result")
	}
}
