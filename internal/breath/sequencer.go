package breath

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/Parabola/internal/clock"
	"github.com/BTreeMap/Parabola/internal/models"
)

// DefaultPrimingDelay is the grace period before the first phase begins.
const DefaultPrimingDelay = 2 * time.Second

// RunSummary describes a breathing session that has ended.
type RunSummary struct {
	SequenceID string
	Cycles     int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithPrimingDelay overrides DefaultPrimingDelay.
func WithPrimingDelay(d time.Duration) Option {
	return func(s *Sequencer) {
		if d >= 0 {
			s.primingDelay = d
		}
	}
}

// WithOnChange registers a hook invoked with the new snapshot after every
// transition, outside the sequencer lock.
func WithOnChange(fn func(models.SequencerState)) Option {
	return func(s *Sequencer) {
		s.onChange = fn
	}
}

// WithOnStop registers a hook invoked when a priming or running session ends,
// either through Stop or because Start replaced it.
func WithOnStop(fn func(RunSummary)) Option {
	return func(s *Sequencer) {
		s.onStop = fn
	}
}

// Sequencer walks a PhaseSequence cyclically until stopped.
//
// Exactly one callback is pending while Priming or Running. Every transition
// is scheduled from the previous phase deadline rather than from the time the
// previous callback ran, so long sessions do not accumulate drift.
type Sequencer struct {
	mu           sync.Mutex
	clock        clock.Clock
	catalog      *Catalog
	primingDelay time.Duration

	seq       models.PhaseSequence
	index     int
	cycles    int
	status    models.SequencerStatus
	startedAt time.Time

	pending  clock.Handle
	gen      uint64
	deadline time.Time

	onChange func(models.SequencerState)
	onStop   func(RunSummary)
}

// NewSequencer creates an idle sequencer over the given catalog.
func NewSequencer(c clock.Clock, catalog *Catalog, opts ...Option) *Sequencer {
	s := &Sequencer{
		clock:        c,
		catalog:      catalog,
		primingDelay: DefaultPrimingDelay,
		status:       models.SequencerIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the given sequence with a priming period. Any prior run is
// cancelled first. Unknown or empty sequences are rejected without touching
// the current state.
func (s *Sequencer) Start(sequenceID string) error {
	seq, err := s.catalog.Lookup(sequenceID)
	if err != nil {
		slog.Warn("Sequencer.Start: rejected sequence", "sequence_id", sequenceID, "error", err)
		return err
	}

	s.mu.Lock()
	prev, hadRun := s.endRunLocked()
	s.seq = seq
	s.index = 0
	s.cycles = 0
	s.status = models.SequencerPriming
	s.startedAt = s.clock.Now()
	s.deadline = s.startedAt.Add(s.primingDelay)
	s.scheduleLocked(s.beginLocked)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Debug("Sequencer.Start", "sequence_id", sequenceID, "priming_delay", s.primingDelay)
	if hadRun && s.onStop != nil {
		s.onStop(prev)
	}
	s.notify(snap)
	return nil
}

// Stop cancels any pending transition and moves to Stopped from any state.
// It is idempotent. The stop hook runs only when a run was in progress.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	prev, hadRun := s.endRunLocked()
	if s.status == models.SequencerStopped {
		s.mu.Unlock()
		return
	}
	s.status = models.SequencerStopped
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Debug("Sequencer.Stop", "sequence_id", snap.SequenceID, "cycles", snap.CycleCount)
	if hadRun && s.onStop != nil {
		s.onStop(prev)
	}
	s.notify(snap)
}

// State returns a snapshot of the sequencer.
func (s *Sequencer) State() models.SequencerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Sequence returns the active sequence, if any.
func (s *Sequencer) Sequence() (models.PhaseSequence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq.ID == "" {
		return models.PhaseSequence{}, false
	}
	seq := s.seq
	seq.Phases = append([]models.Phase(nil), s.seq.Phases...)
	return seq, true
}

// advancePhase moves to the next phase. Only meaningful while Running.
func (s *Sequencer) advancePhase() {
	s.mu.Lock()
	ok := s.advanceLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if ok {
		s.notify(snap)
	}
}

// beginLocked ends priming and starts phase 0.
func (s *Sequencer) beginLocked() bool {
	if s.status != models.SequencerPriming {
		return false
	}
	s.cancelPendingLocked()
	s.status = models.SequencerRunning
	s.deadline = s.deadline.Add(s.seq.Phases[0].Duration())
	s.scheduleLocked(s.advanceLocked)
	return true
}

func (s *Sequencer) advanceLocked() bool {
	if s.status != models.SequencerRunning {
		return false
	}
	s.cancelPendingLocked()
	next := (s.index + 1) % len(s.seq.Phases)
	if next == 0 {
		s.cycles++
	}
	s.index = next
	s.deadline = s.deadline.Add(s.seq.Phases[next].Duration())
	s.scheduleLocked(s.advanceLocked)
	return true
}

// scheduleLocked arms step to run at the current deadline.
func (s *Sequencer) scheduleLocked(step func() bool) {
	s.gen++
	gen := s.gen
	delay := s.deadline.Sub(s.clock.Now())
	s.pending = s.clock.ScheduleOnce(delay, func() { s.fire(gen, step) })
}

// fire runs a scheduled step unless it was cancelled after being queued.
func (s *Sequencer) fire(gen uint64, step func() bool) {
	s.mu.Lock()
	if gen != s.gen || s.pending == "" {
		s.mu.Unlock()
		return
	}
	s.pending = ""
	ok := step()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if ok {
		s.notify(snap)
	}
}

func (s *Sequencer) cancelPendingLocked() {
	if s.pending != "" {
		s.clock.Cancel(s.pending)
		s.pending = ""
	}
}

// endRunLocked cancels the pending transition and summarises an active run.
func (s *Sequencer) endRunLocked() (RunSummary, bool) {
	s.cancelPendingLocked()
	if s.status != models.SequencerPriming && s.status != models.SequencerRunning {
		return RunSummary{}, false
	}
	return RunSummary{
		SequenceID: s.seq.ID,
		Cycles:     s.cycles,
		StartedAt:  s.startedAt,
		EndedAt:    s.clock.Now(),
	}, true
}

func (s *Sequencer) snapshotLocked() models.SequencerState {
	st := models.SequencerState{
		SequenceID:        s.seq.ID,
		CurrentPhaseIndex: s.index,
		CycleCount:        s.cycles,
		Status:            s.status,
	}
	switch s.status {
	case models.SequencerPriming:
		st.Instruction = models.PrimingInstruction
	case models.SequencerRunning:
		st.Instruction = s.seq.Phases[s.index].Label
	}
	return st
}

func (s *Sequencer) notify(snap models.SequencerState) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
