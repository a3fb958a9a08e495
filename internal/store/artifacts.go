package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"facturo/internal/catalog"
	"facturo/internal/reconcile"
)

// ArtifactDoc is the persisted standardized output of one invoice.
type ArtifactDoc struct {
	Lines []reconcile.AnnotatedLine `json:"lines"`
}

// WriteArtifacts serializes the annotated lines both as a JSON document and a
// flat CSV with one row per line.
func WriteArtifacts(jsonPath, csvPath string, lines []reconcile.AnnotatedLine) error {
	raw, err := json.MarshalIndent(ArtifactDoc{Lines: lines}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := writeCSVArtifact(csvPath, lines); err != nil {
		return err
	}
	return nil
}

var csvHeader = []string{
	"line_id", "description", "quantity", "unit_price", "line_total",
	"matched_code", "matched_description", "score", "status", "reasoning", "fuzzy_score",
}

func writeCSVArtifact(path string, lines []reconcile.AnnotatedLine) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write csv artifact: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv artifact: %w", err)
	}
	for _, l := range lines {
		desc := ""
		if l.MatchedDescription != nil {
			desc = *l.MatchedDescription
		}
		fuzzy := ""
		if l.FuzzyScore != nil {
			fuzzy = formatScore(*l.FuzzyScore)
		}
		rec := []string{
			l.LineID, l.Description, l.Quantity, l.UnitPrice, l.LineTotal,
			catalog.CodeString(l.MatchedCode), desc, formatScore(l.Score), l.Status, l.Reasoning, fuzzy,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write csv artifact: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv artifact: %w", err)
	}
	return nil
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ReadArtifact loads a JSON artifact back. Codes decode as json.Number so the
// original scalar type survives the round-trip.
func ReadArtifact(path string) ([]reconcile.AnnotatedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var doc ArtifactDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return doc.Lines, nil
}

// csvSibling maps a JSON artifact name to its CSV twin.
func csvSibling(jsonName string) string {
	return strings.TrimSuffix(jsonName, ".json") + ".csv"
}
