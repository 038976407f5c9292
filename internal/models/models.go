// Package models defines the core data structures for Parabola.
//
// It includes the session state snapshots exposed by the timing engine, the
// immutable breathing protocol definitions, request outcomes and the API
// response envelope shared across modules.
package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrConfiguration is the root of every rejected engine configuration
// (invalid duration, unknown sequence, empty phase list). It is never retried.
var ErrConfiguration = errors.New("configuration error")

// CountdownStatus is the lifecycle state of a focus countdown.
type CountdownStatus string

const (
	// CountdownIdle means the countdown is configured but has not started.
	CountdownIdle CountdownStatus = "idle"
	// CountdownRunning means ticks are being consumed.
	CountdownRunning CountdownStatus = "running"
	// CountdownPaused means the countdown is suspended and can be resumed.
	CountdownPaused CountdownStatus = "paused"
	// CountdownCompleted means the countdown reached zero.
	CountdownCompleted CountdownStatus = "completed"
)

// TimerConfig holds the immutable duration of a focus session.
type TimerConfig struct {
	TotalSeconds int `json:"total_seconds"`
}

// Validate reports whether the configuration can start a session.
func (c TimerConfig) Validate() error {
	if c.TotalSeconds <= 0 {
		return ErrConfiguration
	}
	return nil
}

// CountdownState is a read-only snapshot of a focus countdown.
type CountdownState struct {
	TotalSeconds     int             `json:"total_seconds"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Status           CountdownStatus `json:"status"`
}

// Elapsed returns the number of seconds already counted down.
func (s CountdownState) Elapsed() int {
	return s.TotalSeconds - s.RemainingSeconds
}

// Phase is one labeled, timed step of a breathing protocol.
type Phase struct {
	Label           string `json:"label"`
	DurationSeconds int    `json:"duration_seconds"`
	Position        int    `json:"position"`
}

// Duration returns the phase length as a time.Duration.
func (p Phase) Duration() time.Duration {
	return time.Duration(p.DurationSeconds) * time.Second
}

// PhaseSequence is the ordered, cyclic list of phases of one protocol.
type PhaseSequence struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Phases      []Phase `json:"phases"`
}

// Pattern renders the phase durations the way protocols are usually named, e.g. "4-7-8".
func (s PhaseSequence) Pattern() string {
	parts := make([]string, len(s.Phases))
	for i, p := range s.Phases {
		parts[i] = strconv.Itoa(p.DurationSeconds)
	}
	return strings.Join(parts, "-")
}

// SequencerStatus is the lifecycle state of a breathing sequencer.
type SequencerStatus string

const (
	// SequencerIdle means no sequence has been started yet.
	SequencerIdle SequencerStatus = "idle"
	// SequencerPriming is the grace period before phase 0 begins.
	SequencerPriming SequencerStatus = "priming"
	// SequencerRunning means phases are advancing.
	SequencerRunning SequencerStatus = "running"
	// SequencerStopped means the user ended the session.
	SequencerStopped SequencerStatus = "stopped"
)

// PrimingInstruction is shown while a sequencer is priming.
const PrimingInstruction = "Get Ready..."

// SequencerState is a read-only snapshot of a breathing sequencer.
type SequencerState struct {
	SequenceID        string          `json:"sequence_id,omitempty"`
	CurrentPhaseIndex int             `json:"current_phase_index"`
	CycleCount        int             `json:"cycle_count"`
	Status            SequencerStatus `json:"status"`
	Instruction       string          `json:"instruction,omitempty"`
}

// OutcomeKind distinguishes generated text from fallback text.
type OutcomeKind string

const (
	// OutcomeSuccess carries text generated by the AI service.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeFallback carries a user-facing message in place of an error.
	OutcomeFallback OutcomeKind = "fallback"
)

// RequestOutcome is the result of a text-generation request. It always holds
// renderable text.
type RequestOutcome struct {
	Kind OutcomeKind `json:"kind"`
	Text string      `json:"text"`
}

// SuccessOutcome builds a successful outcome.
func SuccessOutcome(text string) RequestOutcome {
	return RequestOutcome{Kind: OutcomeSuccess, Text: text}
}

// FallbackOutcome builds a fallback outcome with a display message.
func FallbackOutcome(message string) RequestOutcome {
	return RequestOutcome{Kind: OutcomeFallback, Text: message}
}

// IsFallback reports whether the outcome is a fallback message.
func (o RequestOutcome) IsFallback() bool {
	return o.Kind == OutcomeFallback
}

// SessionKind identifies what produced a session record.
type SessionKind string

const (
	SessionKindFocus  SessionKind = "focus"
	SessionKindBreath SessionKind = "breath"
)

// SessionRecord is a finished focus or breathing session kept for statistics.
type SessionRecord struct {
	ID              string      `json:"id"`
	Kind            SessionKind `json:"kind"`
	Label           string      `json:"label"`
	DurationSeconds int         `json:"duration_seconds"`
	Cycles          int         `json:"cycles"`
	Completed       bool        `json:"completed"`
	StartedAt       time.Time   `json:"started_at"`
	EndedAt         time.Time   `json:"ended_at"`
}

// CompanionEntry is one AI companion response shown to the user.
type CompanionEntry struct {
	ID        string    `json:"id"`
	Flow      string    `json:"flow"`
	Prompt    string    `json:"prompt"`
	Text      string    `json:"text"`
	Fallback  bool      `json:"fallback"`
	CreatedAt time.Time `json:"created_at"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
