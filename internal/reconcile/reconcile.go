// Package reconcile orchestrates lexical matching and AI arbitration for the
// lines of one invoice.
package reconcile

import (
	"context"

	"github.com/rs/zerolog"

	"facturo/internal/arbiter"
	"facturo/internal/catalog"
	"facturo/internal/match"
	"facturo/internal/ubl"
)

// Statuses produced without arbiter involvement.
const (
	StatusNoMatchFound      = "no_match_found"
	StatusHighConfidence    = "matched_high_confidence"
	StatusLowConfidenceNoAI = "matched_low_confidence_no_ai"
	StatusAIErrorFallback   = "ai_error_fallback"
)

// AnnotatedLine is an invoice line plus the reconciliation outcome. This is
// the unit persisted in per-document artifacts and folded into the ledger.
type AnnotatedLine struct {
	ubl.Line
	MatchedCode        catalog.Code `json:"matched_code"`
	MatchedDescription *string      `json:"matched_description"`
	Score              float64      `json:"score"`
	Status             string       `json:"status"`
	Reasoning          string       `json:"reasoning,omitempty"`
	FuzzyScore         *float64     `json:"fuzzy_score,omitempty"`
}

// Matched reports whether the line ended up with a standardized code.
func (l AnnotatedLine) Matched() bool { return l.MatchedCode != nil }

// Summary counts reconciliation outcomes for one run.
type Summary struct {
	Total        int
	ArbiterCalls int
	ByStatus     map[string]int
}

// Engine reconciles extracted lines against the catalog, escalating
// low-confidence matches to the arbiter when one is configured.
type Engine struct {
	Catalog         []catalog.Entry
	MinScore        float64
	GeminiThreshold float64
	Arbiter         arbiter.Arbiter
	Log             zerolog.Logger
}

const arbiterTopN = 5

// Reconcile annotates every line in order. A single line's arbitration
// failure falls back to its best lexical candidate and never aborts the run.
func (e *Engine) Reconcile(ctx context.Context, lines []ubl.Line) ([]AnnotatedLine, Summary) {
	out := make([]AnnotatedLine, 0, len(lines))
	sum := Summary{Total: len(lines), ByStatus: map[string]int{}}

	escalate := e.Arbiter != nil && e.Arbiter.Enabled()

	for _, line := range lines {
		candidates := match.Rank(line.Description, e.Catalog, e.MinScore)

		var a AnnotatedLine
		switch {
		case len(candidates) == 0:
			a = AnnotatedLine{Line: line, Score: 0.0, Status: StatusNoMatchFound}

		case !escalate || candidates[0].Score >= e.GeminiThreshold:
			a = adopt(line, candidates[0])
			if candidates[0].Score >= e.GeminiThreshold {
				a.Status = StatusHighConfidence
			} else {
				a.Status = StatusLowConfidenceNoAI
			}

		default:
			a = e.arbitrate(ctx, line, candidates)
			sum.ArbiterCalls++
		}

		e.Log.Debug().
			Str("line_id", a.LineID).
			Str("status", a.Status).
			Float64("score", a.Score).
			Msg("line reconciled")
		sum.ByStatus[a.Status]++
		out = append(out, a)
	}
	return out, sum
}

func (e *Engine) arbitrate(ctx context.Context, line ubl.Line, candidates []match.Candidate) AnnotatedLine {
	best := candidates[0]
	top := candidates
	if len(top) > arbiterTopN {
		top = top[:arbiterTopN]
	}

	d, err := e.Arbiter.Analyze(ctx, line.Description, top)
	if err != nil {
		e.Log.Error().Err(err).Str("line_id", line.LineID).Msg("arbitration failed, using best lexical candidate")
		a := adopt(line, best)
		a.Status = StatusAIErrorFallback
		a.Reasoning = "arbitration error: " + err.Error()
		a.FuzzyScore = &best.Score
		return a
	}

	a := AnnotatedLine{
		Line:        line,
		MatchedCode: d.Code,
		Score:       d.Confidence,
		Status:      d.Status,
		Reasoning:   d.Reasoning,
		FuzzyScore:  &best.Score,
	}
	if d.Code != nil {
		desc := d.Description
		a.MatchedDescription = &desc
	}
	return a
}

func adopt(line ubl.Line, c match.Candidate) AnnotatedLine {
	desc := c.Description
	return AnnotatedLine{
		Line:               line,
		MatchedCode:        c.Code,
		MatchedDescription: &desc,
		Score:              c.Score,
	}
}
