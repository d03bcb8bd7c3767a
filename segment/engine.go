package segment

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/macroplay/insights/analyze"
)

// ============================================================================
// SEGMENTATION ENGINE
// ============================================================================
// One run at a time. A second request while a run is in flight gets
// ErrBusy immediately instead of queuing — segmentation over the same
// dataset twice concurrently would just burn the generation quota.
// ============================================================================

// ErrBusy is returned when a segmentation run is already in flight.
var ErrBusy = errors.New("segmentation already in progress")

// TextGenerator produces free text for a prompt. The Gemini client
// satisfies this through a small adapter; tests use a local fake.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// TextGeneratorFunc adapts a function to the TextGenerator interface.
type TextGeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f TextGeneratorFunc) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Engine runs segmentation over an annotated collection.
type Engine struct {
	gen TextGenerator
	log *zap.Logger

	busy atomic.Bool
}

// NewEngine creates a segmentation engine. gen may be nil, in which
// case every run uses the rule-based fallback.
func NewEngine(gen TextGenerator, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{gen: gen, log: log}
}

// labelInput is the per-record signal pair extracted once up front.
type labelInput struct {
	record    analyze.Annotated
	usageMB   float64
	days      int
	daysKnown bool
}

func inputsFrom(records []analyze.Annotated) []labelInput {
	inputs := make([]labelInput, 0, len(records))
	for _, r := range records {
		inputs = append(inputs, labelInput{
			record:    r,
			usageMB:   r.UsageMB,
			days:      r.DaysSinceRecharge,
			daysKnown: r.DaysSinceRecharge >= 0,
		})
	}
	return inputs
}

// Run segments the collection. extraCriteria is optional analyst
// guidance passed through to the plan generator. When generation fails
// for any reason the run still succeeds via the rule-based fallback;
// only a concurrent run is an error.
func (e *Engine) Run(ctx context.Context, records []analyze.Annotated, extraCriteria string) (*Outcome, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	usage := UsageStats(records)
	days := DaysStats(records)
	t := thresholdsFrom(usage)
	inputs := inputsFrom(records)

	if e.gen == nil {
		e.log.Info("no plan generator configured, using rule-based segmentation",
			zap.Int("records", len(records)))
		return applyFallback(inputs, t), nil
	}

	prompt := buildPrompt(records, usage, days, extraCriteria)

	response, err := e.gen.GenerateText(ctx, prompt)
	if err != nil {
		e.log.Warn("plan generation failed, using rule-based segmentation", zap.Error(err))
		return applyFallback(inputs, t), nil
	}

	p, err := parsePlan(response)
	if err != nil {
		e.log.Warn("plan parse failed, using rule-based segmentation", zap.Error(err))
		return applyFallback(inputs, t), nil
	}

	rules := compileRules(p)
	out := &Outcome{
		Source:   "ai",
		Segments: p.Segments,
		Records:  make([]Labeled, 0, len(inputs)),
	}
	for _, in := range inputs {
		seg := assign(rules, in.usageMB, in.days, in.daysKnown, t)
		out.Records = append(out.Records, Labeled{
			Annotated: in.record,
			Segment:   seg.Name,
			Color:     seg.Color,
		})
	}

	e.log.Info("segmentation complete",
		zap.String("source", out.Source),
		zap.Int("segments", len(out.Segments)),
		zap.Int("records", len(out.Records)))
	return out, nil
}
