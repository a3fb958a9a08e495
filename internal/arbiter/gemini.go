package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"facturo/internal/match"
)

// ErrNoAPIKey means the Gemini arbiter was requested without a key.
var ErrNoAPIKey = errors.New("gemini: api key not configured")

const requestTimeout = 30 * time.Second

// Gemini arbitrates via the Google generative AI API.
type Gemini struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewGemini builds an arbiter backed by the given model.
func NewGemini(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{client: client, model: model, log: log}, nil
}

func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) Enabled() bool { return true }

// Analyze sends the candidates to the model and maps its answer to a
// Decision. Backend and parse failures degrade to the best lexical candidate;
// they are reported in the decision, not as an error.
func (g *Gemini) Analyze(ctx context.Context, description string, candidates []match.Candidate) (Decision, error) {
	if len(candidates) == 0 {
		return NoCandidates(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(description, candidates)))
	if err != nil {
		g.log.Warn().Err(err).Str("description", description).Msg("gemini request failed")
		return Fallback(candidates[0], "gemini request failed: "+err.Error()), nil
	}

	text := responseText(resp)
	if text == "" {
		return Fallback(candidates[0], "empty gemini response"), nil
	}

	d := parseDecision(text, candidates)
	if d.Status == StatusRejectedSelection {
		g.log.Warn().Str("description", description).Str("reasoning", d.Reasoning).Msg("gemini selection rejected")
	}
	return d, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
