package arbiter

import (
	"encoding/json"
	"fmt"
	"strings"

	"facturo/internal/catalog"
	"facturo/internal/match"
)

func buildPrompt(description string, candidates []match.Candidate) string {
	var list strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&list, "%d. Code: %s\n   Description: %s\n   Fuzzy score: %.2f\n",
			i+1, catalog.CodeString(c.Code), c.Description, c.Score)
	}

	return fmt.Sprintf(`You are an expert at matching invoice product descriptions against a reference database.

PRODUCT FROM THE INVOICE:
%q

TOP CANDIDATE CODES (chosen by the fuzzy matching algorithm):
%s
YOUR TASK:
Analyze the invoice product description and PICK the best matching code from the options above.

STRICT RULES:
1. You may only pick one of the codes listed above
2. If NO code fits the product, return "selected_code": null
3. Never invent new codes - use EXACTLY a code from the list or null

Evaluation criteria:
- Product category and materials
- Technical specifications (if any)
- Intended use of the product
- Industry-specific terms

ANSWER ONLY with a JSON object in EXACTLY this format (no markdown, no extra text):
{
  "selected_code": "the chosen code OR null",
  "confidence": 0.85,
  "reasoning": "Short explanation of why you chose this code (max 100 words)"
}

Confidence levels:
- 0.9-1.0: very certain match
- 0.7-0.9: good match with minor uncertainty
- 0.5-0.7: acceptable match, manual review recommended
- below 0.5: high uncertainty, needs manual review
- 0.0: no code fits (selected_code: null)`, description, list.String())
}

type rawDecision struct {
	SelectedCode any      `json:"selected_code"`
	Confidence   *float64 `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
}

// parseDecision decodes the model's JSON answer, tolerating surrounding
// code-fence markers. A selection outside the offered candidate set is
// rejected in favor of the best lexical candidate, never adopted.
func parseDecision(text string, candidates []match.Candidate) Decision {
	dec := json.NewDecoder(strings.NewReader(stripCodeFence(text)))
	dec.UseNumber()

	var raw rawDecision
	if err := dec.Decode(&raw); err != nil {
		return Fallback(candidates[0], "could not parse gemini response")
	}

	confidence := 0.5
	if raw.Confidence != nil {
		confidence = clamp01(*raw.Confidence)
	}
	reasoning := raw.Reasoning
	if reasoning == "" {
		reasoning = "no reasoning provided"
	}

	selected := codeAnswer(raw.SelectedCode)
	if selected == "" {
		return Decision{
			Confidence: confidence,
			Reasoning:  reasoning,
			Status:     StatusNoMatch,
		}
	}

	for _, c := range candidates {
		if catalog.CodeString(c.Code) == selected {
			return Decision{
				Code:        c.Code,
				Description: c.Description,
				Confidence:  confidence,
				Reasoning:   reasoning,
				Status:      StatusSelected,
			}
		}
	}

	d := Fallback(candidates[0], fmt.Sprintf("model selected code %q which was not among the offered candidates", selected))
	d.Status = StatusRejectedSelection
	return d
}

// codeAnswer canonicalizes the selected_code field; "" means no selection.
func codeAnswer(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		if c == "null" {
			return ""
		}
		return strings.TrimSpace(c)
	case json.Number:
		return c.String()
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

// stripCodeFence drops ```-style fences the model sometimes wraps around JSON.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
