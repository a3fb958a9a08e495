// Package service wires the per-document pipeline: extract, match, arbitrate,
// persist, ledger.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"facturo/internal/arbiter"
	"facturo/internal/catalog"
	"facturo/internal/reconcile"
	"facturo/internal/store"
	"facturo/internal/ubl"
)

// Progress receives stage names at fixed pipeline checkpoints, so a caller
// driving a responsive surface can report without being able to block the run.
type Progress func(stage string)

// Pipeline checkpoint names.
const (
	StageExtracting     = "extracting lines"
	StageLoadingCatalog = "loading catalog"
	StageMatching       = "matching descriptions"
	StageWritingOutput  = "writing artifact"
	StageUpdatingLedger = "updating ledger"
	StageDone           = "done"
)

// Processor runs the document pipeline. The whole run is synchronous; one
// invoice either completes or fails as a whole, except that per-line arbiter
// failures are absorbed by the reconciliation engine.
type Processor struct {
	Store           *store.Store
	Arbiter         arbiter.Arbiter
	MinScore        float64
	GeminiThreshold float64
	Log             zerolog.Logger
}

func (p *Processor) engine(entries []catalog.Entry) *reconcile.Engine {
	return &reconcile.Engine{
		Catalog:         entries,
		MinScore:        p.MinScore,
		GeminiThreshold: p.GeminiThreshold,
		Arbiter:         p.Arbiter,
		Log:             p.Log,
	}
}

// Standardize extracts and reconciles one invoice without touching the store.
func (p *Processor) Standardize(ctx context.Context, xmlPath, codesPath string, progress Progress) ([]ubl.Line, []reconcile.AnnotatedLine, reconcile.Summary, error) {
	notify(progress, StageExtracting)
	lines, err := ubl.ExtractFile(xmlPath)
	if err != nil {
		return nil, nil, reconcile.Summary{}, fmt.Errorf("extraction: %w", err)
	}
	p.Log.Info().Int("lines", len(lines)).Str("invoice", xmlPath).Msg("lines extracted")

	notify(progress, StageLoadingCatalog)
	entries, err := catalog.LoadFile(codesPath)
	if err != nil {
		return nil, nil, reconcile.Summary{}, fmt.Errorf("catalog load: %w", err)
	}
	p.Log.Info().Int("codes", len(entries)).Str("catalog", codesPath).Msg("catalog loaded")

	notify(progress, StageMatching)
	annotated, sum := p.engine(entries).Reconcile(ctx, lines)
	return lines, annotated, sum, nil
}

// ProcessInvoice runs the full pipeline and registers the result: artifacts
// written, ledger updated, registry entry appended.
func (p *Processor) ProcessInvoice(ctx context.Context, xmlPath, codesPath string, progress Progress) (store.Document, reconcile.Summary, error) {
	_, annotated, sum, err := p.Standardize(ctx, xmlPath, codesPath, progress)
	if err != nil {
		return store.Document{}, reconcile.Summary{}, err
	}

	notify(progress, StageWritingOutput)
	name := docName(xmlPath)
	doc, err := p.Store.AddDocument(name, annotated, time.Now())
	if err != nil {
		return store.Document{}, reconcile.Summary{}, fmt.Errorf("save document: %w", err)
	}
	notify(progress, StageUpdatingLedger)

	p.Log.Info().
		Str("document", doc.Name).
		Int("lines", doc.LinesCount).
		Int("matched", doc.MatchedCount).
		Msg("invoice processed")
	notify(progress, StageDone)
	return doc, sum, nil
}

func notify(progress Progress, stage string) {
	if progress != nil {
		progress(stage)
	}
}

func docName(xmlPath string) string {
	base := filepath.Base(xmlPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
