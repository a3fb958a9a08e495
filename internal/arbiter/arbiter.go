// Package arbiter escalates low-confidence lexical matches to a generative
// model that picks one of the offered candidates or declares no match.
package arbiter

import (
	"context"

	"facturo/internal/catalog"
	"facturo/internal/match"
)

// Statuses reported on arbitrated lines.
const (
	StatusSelected          = "ai_selected"           // model picked one offered candidate
	StatusNoMatch           = "ai_no_match"           // model decided none of the candidates fit
	StatusFallback          = "ai_fallback"           // backend or parse failure, best lexical candidate adopted
	StatusRejectedSelection = "ai_rejected_selection" // model named a code outside the offered set
	StatusNoCandidates      = "no_match"              // nothing to arbitrate
)

// Decision is the arbiter's answer for one line.
type Decision struct {
	Code        catalog.Code // nil when no match
	Description string
	Confidence  float64
	Reasoning   string
	Status      string
}

// Arbiter selects among lexical candidates. Implementations must never invent
// a code outside the candidate set; every failure mode degrades to either the
// best offered candidate or a no-match decision.
type Arbiter interface {
	Enabled() bool
	Analyze(ctx context.Context, description string, candidates []match.Candidate) (Decision, error)
}

// Off is the no-op arbiter used when escalation is disabled.
type Off struct{}

func (Off) Enabled() bool { return false }

func (Off) Analyze(context.Context, string, []match.Candidate) (Decision, error) {
	return Decision{Status: StatusNoCandidates, Reasoning: "arbiter disabled"}, nil
}

// NoCandidates is the decision for an empty candidate set.
func NoCandidates() Decision {
	return Decision{
		Confidence: 0.0,
		Reasoning:  "no candidates available from lexical matching",
		Status:     StatusNoCandidates,
	}
}

// Fallback adopts the best lexical candidate after a failed arbitration.
func Fallback(best match.Candidate, cause string) Decision {
	return Decision{
		Code:        best.Code,
		Description: best.Description,
		Confidence:  best.Score,
		Reasoning:   "arbitration failed: " + cause + "; using best lexical candidate",
		Status:      StatusFallback,
	}
}
