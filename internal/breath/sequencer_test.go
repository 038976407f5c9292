package breath

import (
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/Parabola/internal/models"
	"github.com/BTreeMap/Parabola/internal/testutil"
)

func newTestSequencer(t *testing.T, opts ...Option) (*Sequencer, *testutil.ManualClock) {
	t.Helper()
	clk := testutil.NewManualClock(time.Date(2025, 6, 2, 21, 0, 0, 0, time.UTC))
	return NewSequencer(clk, DefaultCatalog(), opts...), clk
}

func TestStartPrimesThenRuns(t *testing.T) {
	s, clk := newTestSequencer(t)
	if err := s.Start("box"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	st := s.State()
	if st.Status != models.SequencerPriming || st.Instruction != models.PrimingInstruction {
		t.Fatalf("expected priming, got %+v", st)
	}
	if clk.Pending() != 1 {
		t.Fatalf("expected one pending callback while priming, got %d", clk.Pending())
	}

	clk.Advance(DefaultPrimingDelay)
	st = s.State()
	if st.Status != models.SequencerRunning || st.CurrentPhaseIndex != 0 || st.Instruction != InstructionBreatheIn {
		t.Fatalf("expected phase 0 running, got %+v", st)
	}
	if clk.Pending() != 1 {
		t.Errorf("expected one pending advance while running, got %d", clk.Pending())
	}
}

func TestBoxBreathingCycle(t *testing.T) {
	s, clk := newTestSequencer(t)
	if err := s.Start("box"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(DefaultPrimingDelay)

	for i := 0; i < 4; i++ {
		s.advancePhase()
	}
	st := s.State()
	if st.CurrentPhaseIndex != 0 || st.CycleCount != 1 {
		t.Errorf("expected index 0 and one cycle, got %+v", st)
	}
	if clk.Pending() != 1 {
		t.Errorf("expected exactly one pending advance, got %d", clk.Pending())
	}
}

func TestClockDrivenCycles(t *testing.T) {
	s, clk := newTestSequencer(t)
	if err := s.Start("sleep"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(DefaultPrimingDelay)

	// 4-7-8: two full cycles take 38 seconds, then 4s lands on "Hold".
	clk.Advance(38 * time.Second)
	st := s.State()
	if st.CycleCount != 2 || st.CurrentPhaseIndex != 0 {
		t.Fatalf("expected two cycles at phase 0, got %+v", st)
	}
	clk.Advance(4 * time.Second)
	st = s.State()
	if st.CurrentPhaseIndex != 1 || st.Instruction != InstructionHold {
		t.Errorf("expected Hold phase, got %+v", st)
	}
}

func TestCycleCountIncrementsOncePerTraversal(t *testing.T) {
	s, clk := newTestSequencer(t)
	if err := s.Start("coherence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(DefaultPrimingDelay)

	for i := 1; i <= 10; i++ {
		s.advancePhase()
		st := s.State()
		if st.CycleCount != i/2 {
			t.Fatalf("after %d advances expected %d cycles, got %d", i, i/2, st.CycleCount)
		}
		if st.CurrentPhaseIndex != i%2 {
			t.Fatalf("after %d advances expected index %d, got %d", i, i%2, st.CurrentPhaseIndex)
		}
	}
}

func TestStartRejectsBadSequence(t *testing.T) {
	empty := models.PhaseSequence{ID: "empty"}
	catalog, err := NewCatalog(append(DefaultSequences(), empty)...)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	clk := testutil.NewManualClock(time.Unix(0, 0))
	s := NewSequencer(clk, catalog)
	if err := s.Start("box"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	before := s.State()

	if err := s.Start("nope"); !errors.Is(err, ErrUnknownSequence) {
		t.Errorf("expected ErrUnknownSequence, got %v", err)
	}
	if err := s.Start("empty"); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("expected ErrEmptySequence, got %v", err)
	}
	if s.State() != before {
		t.Errorf("rejected start mutated state: %+v -> %+v", before, s.State())
	}
	if clk.Pending() != 1 {
		t.Errorf("rejected start disturbed the pending callback")
	}
}

func TestStopCancelsAndIsIdempotent(t *testing.T) {
	var summaries []RunSummary
	s, clk := newTestSequencer(t, WithOnStop(func(r RunSummary) { summaries = append(summaries, r) }))
	if err := s.Start("box"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(DefaultPrimingDelay + 16*time.Second)

	s.Stop()
	s.Stop()
	st := s.State()
	if st.Status != models.SequencerStopped {
		t.Fatalf("expected stopped, got %+v", st)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending callbacks after stop, got %d", clk.Pending())
	}

	clk.Advance(time.Minute)
	if s.State() != st {
		t.Errorf("state changed after stop: %+v -> %+v", st, s.State())
	}
	if len(summaries) != 1 || summaries[0].Cycles != 1 || summaries[0].SequenceID != "box" {
		t.Errorf("expected a single summary with one cycle, got %+v", summaries)
	}
}

func TestStopFromIdle(t *testing.T) {
	var summaries []RunSummary
	s, clk := newTestSequencer(t, WithOnStop(func(r RunSummary) { summaries = append(summaries, r) }))

	s.Stop()
	if st := s.State(); st.Status != models.SequencerStopped || st.CycleCount != 0 {
		t.Fatalf("expected stopped with no cycles, got %+v", st)
	}
	s.Stop()
	if clk.Pending() != 0 {
		t.Errorf("expected no pending callbacks, got %d", clk.Pending())
	}
	if len(summaries) != 0 {
		t.Errorf("stop without a run produced summaries: %+v", summaries)
	}

	if err := s.Start("coherence"); err != nil {
		t.Fatalf("Start after stop failed: %v", err)
	}
	if st := s.State(); st.Status != models.SequencerPriming {
		t.Errorf("expected priming after restart, got %+v", st)
	}
}

func TestStopDuringPriming(t *testing.T) {
	s, clk := newTestSequencer(t)
	if err := s.Start("box"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()
	clk.Advance(DefaultPrimingDelay)
	if st := s.State(); st.Status != models.SequencerStopped {
		t.Errorf("priming callback fired after stop: %+v", st)
	}
}

func TestRestartCancelsPriorSchedule(t *testing.T) {
	var summaries []RunSummary
	s, clk := newTestSequencer(t, WithOnStop(func(r RunSummary) { summaries = append(summaries, r) }))
	if err := s.Start("box"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(DefaultPrimingDelay + 3*time.Second)

	if err := s.Start("coherence"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if clk.Pending() != 1 {
		t.Fatalf("expected exactly one pending callback after restart, got %d", clk.Pending())
	}
	st := s.State()
	if st.SequenceID != "coherence" || st.Status != models.SequencerPriming || st.CycleCount != 0 {
		t.Errorf("unexpected state after restart: %+v", st)
	}
	if len(summaries) != 1 || summaries[0].SequenceID != "box" {
		t.Errorf("expected the replaced run to be summarised, got %+v", summaries)
	}
}

func TestStaleAdvanceIgnored(t *testing.T) {
	s, clk := newTestSequencer(t)
	if err := s.Start("box"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(DefaultPrimingDelay)
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	s.Stop()
	s.fire(gen, s.advanceLocked)
	if st := s.State(); st.CurrentPhaseIndex != 0 || st.Status != models.SequencerStopped {
		t.Errorf("stale advance mutated state: %+v", st)
	}
}

func TestDeadlineBasedScheduling(t *testing.T) {
	s, clk := newTestSequencer(t)
	if err := s.Start("box"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(DefaultPrimingDelay)
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	// Deliver the advance one second early; the next phase still ends on the
	// original 4-second grid.
	clk.Advance(3 * time.Second)
	s.fire(gen, s.advanceLocked)
	delays := clk.Delays()
	if got := delays[len(delays)-1]; got != 5*time.Second {
		t.Errorf("expected next advance in 5s, got %v", got)
	}
}

func TestOnChangeSnapshots(t *testing.T) {
	var instructions []string
	s, clk := newTestSequencer(t, WithPrimingDelay(time.Second), WithOnChange(func(st models.SequencerState) {
		instructions = append(instructions, st.Instruction)
	}))
	if err := s.Start("coherence"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clk.Advance(time.Second + 12*time.Second)

	want := []string{models.PrimingInstruction, InstructionBreatheIn, InstructionBreatheOut, InstructionBreatheIn}
	if len(instructions) != len(want) {
		t.Fatalf("expected %v, got %v", want, instructions)
	}
	for i := range want {
		if instructions[i] != want[i] {
			t.Errorf("notification %d: expected %q, got %q", i, want[i], instructions[i])
		}
	}
}
