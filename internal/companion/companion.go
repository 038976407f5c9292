// Package companion implements the AI companion flows: the morning ritual,
// evening advice, capture summaries and protocol explanations. Each flow
// builds a prompt from user input plus built-in content and resolves it
// through a Requester, so every flow always has text to show.
package companion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Parabola/internal/models"
)

// Flow names recorded on companion entries.
const (
	FlowRitual  = "ritual"
	FlowAdvice  = "advice"
	FlowSummary = "summary"
	FlowExplain = "explain"
)

// RitualFormatMessage is shown when a ritual response cannot be used.
const RitualFormatMessage = "The AI response was not in the correct format. Please try again."

var (
	// ErrEmptyGoal is returned when the morning ritual is requested without a goal.
	ErrEmptyGoal = errors.New("goal must not be empty")
	// ErrRitualFormat is returned when the ritual response is not the expected JSON.
	ErrRitualFormat = errors.New("ritual response not in the expected format")
	// ErrUnknownProtocol is returned by ExplainProtocol for an unlisted id.
	ErrUnknownProtocol = fmt.Errorf("%w: unknown protocol", models.ErrConfiguration)
)

// Requester resolves a prompt into text or a fallback message.
type Requester interface {
	Execute(ctx context.Context, prompt string) models.RequestOutcome
}

// Recorder persists companion responses.
type Recorder interface {
	AddCompanionEntry(ctx context.Context, entry models.CompanionEntry) error
}

// Ritual is the generated plan for the day.
type Ritual struct {
	Wins     []string `json:"wins"`
	Identity string   `json:"identity"`
}

// EveningReview is the user's end-of-day reflection.
type EveningReview struct {
	Wins        []string `json:"wins"`
	Improvement string   `json:"improvement"`
}

// Companion runs the flows against a Requester.
type Companion struct {
	requester Requester
	recorder  Recorder
	insights  []Insight
	protocols []Protocol
	now       func() time.Time
}

// Option configures a Companion.
type Option func(*Companion)

// WithRecorder records every response on r.
func WithRecorder(r Recorder) Option {
	return func(c *Companion) {
		c.recorder = r
	}
}

// WithInsights replaces the insight journal used by Summarize.
func WithInsights(insights []Insight) Option {
	return func(c *Companion) {
		c.insights = insights
	}
}

// WithProtocols replaces the knowledge hub used by ExplainProtocol.
func WithProtocols(protocols []Protocol) Option {
	return func(c *Companion) {
		c.protocols = protocols
	}
}

// WithNow sets the time source for entry timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Companion) {
		c.now = now
	}
}

// New creates a Companion.
func New(requester Requester, opts ...Option) *Companion {
	c := &Companion{
		requester: requester,
		insights:  DefaultInsights,
		protocols: KnowledgeHub,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Protocols returns the knowledge hub entries.
func (c *Companion) Protocols() []Protocol {
	return c.protocols
}

// Insights returns the insight journal.
func (c *Companion) Insights() []Insight {
	return c.insights
}

// MorningRitual generates three wins and an identity statement for goal.
func (c *Companion) MorningRitual(ctx context.Context, goal string) (Ritual, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return Ritual{}, ErrEmptyGoal
	}
	prompt := fmt.Sprintf(`My main goal today is: %q. Based on this, generate a JSON object with two keys: "wins" (an array of 3 specific, actionable key wins for the day) and "identity" (a short, powerful core identity statement for today). Example format: {"wins": ["Win 1", "Win 2", "Win 3"], "identity": "Today, I am..."}`, goal)

	out := c.run(ctx, FlowRitual, prompt)
	if out.IsFallback() {
		return Ritual{}, fmt.Errorf("%w: %s", ErrRitualFormat, out.Text)
	}
	ritual, err := ParseRitual(out.Text)
	if err != nil {
		slog.Warn("Companion.MorningRitual: failed to parse response", "error", err)
		return Ritual{}, err
	}
	return ritual, nil
}

// ParseRitual decodes a ritual response. Markdown code fences around the
// JSON object are ignored.
func ParseRitual(text string) (Ritual, error) {
	var r Ritual
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &r); err != nil {
		return Ritual{}, fmt.Errorf("%w: %v", ErrRitualFormat, err)
	}
	if len(r.Wins) == 0 || strings.TrimSpace(r.Identity) == "" {
		return Ritual{}, fmt.Errorf("%w: missing wins or identity", ErrRitualFormat)
	}
	return r, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// EveningAdvice suggests one small improvement for tomorrow.
func (c *Companion) EveningAdvice(ctx context.Context, review EveningReview) models.RequestOutcome {
	var wins []string
	for _, w := range review.Wins {
		if w = strings.TrimSpace(w); w != "" {
			wins = append(wins, w)
		}
	}
	prompt := fmt.Sprintf(`Here's my evening review. My wins today were: %q. The one thing I want to improve is: %q. Based on this, give me one small, actionable "1%% improvement" suggestion for tomorrow. Keep it concise and encouraging.`,
		strings.Join(wins, ", "), strings.TrimSpace(review.Improvement))
	return c.run(ctx, FlowAdvice, prompt)
}

// Summarize condenses the quick dump and the insight journal into key takeaways.
func (c *Companion) Summarize(ctx context.Context, quickDump string) models.RequestOutcome {
	var b strings.Builder
	b.WriteString("Summarize the following notes and thoughts into a few key takeaways:\n\n")
	b.WriteString("Quick Dump:\n")
	b.WriteString(strings.TrimSpace(quickDump))
	b.WriteString("\n\nInsight Journal:\n")
	for i, n := range c.insights {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Title: %s\nContent: %s", n.Title, n.Content)
	}
	return c.run(ctx, FlowSummary, b.String())
}

// ExplainProtocol asks for a conversational explanation of a knowledge hub protocol.
func (c *Companion) ExplainProtocol(ctx context.Context, protocolID string) (models.RequestOutcome, error) {
	p, ok := c.protocol(protocolID)
	if !ok {
		return models.RequestOutcome{}, fmt.Errorf("%w %q", ErrUnknownProtocol, protocolID)
	}
	prompt := fmt.Sprintf(`Explain the core principles of the %q protocol in a simple, conversational way. Focus on the 'why' behind the key actions.`, p.Title)
	return c.run(ctx, FlowExplain, prompt), nil
}

func (c *Companion) protocol(id string) (Protocol, bool) {
	for _, p := range c.protocols {
		if p.ID == id {
			return p, true
		}
	}
	return Protocol{}, false
}

// run executes prompt and records the response. Recording failures are
// logged, never returned.
func (c *Companion) run(ctx context.Context, flow, prompt string) models.RequestOutcome {
	slog.Debug("Companion.run: executing flow", "flow", flow, "prompt_length", len(prompt))
	out := c.requester.Execute(ctx, prompt)
	if c.recorder == nil {
		return out
	}
	entry := models.CompanionEntry{
		Flow:      flow,
		Prompt:    prompt,
		Text:      out.Text,
		Fallback:  out.IsFallback(),
		CreatedAt: c.now(),
	}
	if err := c.recorder.AddCompanionEntry(ctx, entry); err != nil {
		slog.Warn("Companion.run: failed to record entry", "flow", flow, "error", err)
	}
	return out
}
