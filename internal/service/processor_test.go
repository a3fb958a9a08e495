package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"facturo/internal/arbiter"
	"facturo/internal/reconcile"
	"facturo/internal/store"
)

const testInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2">
  <cac:InvoiceLine>
    <cbc:InvoicedQuantity unitCode="EA">12.5</cbc:InvoicedQuantity>
    <cbc:LineExtensionAmount currencyID="RON">625.00</cbc:LineExtensionAmount>
    <cac:Item>
      <cbc:Description>Steel Pipe 10mm</cbc:Description>
    </cac:Item>
    <cac:Price>
      <cbc:PriceAmount currencyID="RON">50.00</cbc:PriceAmount>
    </cac:Price>
  </cac:InvoiceLine>
  <cac:InvoiceLine>
    <cbc:InvoicedQuantity>1</cbc:InvoicedQuantity>
    <cac:Item>
      <cbc:Description>AZBQ-44</cbc:Description>
    </cac:Item>
  </cac:InvoiceLine>
</Invoice>`

const testCatalog = "cod,denumire\nC100,Steel Pipe 10mm\nC200,Copper Wire 2mm\n"

func writeFixtures(t *testing.T) (xmlPath, codesPath string) {
	t.Helper()
	dir := t.TempDir()
	xmlPath = filepath.Join(dir, "factura-martie.xml")
	codesPath = filepath.Join(dir, "codes.csv")
	require.NoError(t, os.WriteFile(xmlPath, []byte(testInvoice), 0o644))
	require.NoError(t, os.WriteFile(codesPath, []byte(testCatalog), 0o644))
	return xmlPath, codesPath
}

func testProcessor(t *testing.T) (*Processor, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return &Processor{
		Store:           st,
		Arbiter:         arbiter.Off{},
		MinScore:        0.18,
		GeminiThreshold: 0.30,
		Log:             zerolog.Nop(),
	}, st
}

func TestStandardize(t *testing.T) {
	t.Parallel()

	xmlPath, codesPath := writeFixtures(t)
	p, _ := testProcessor(t)

	lines, annotated, sum, err := p.Standardize(context.Background(), xmlPath, codesPath, nil)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Len(t, annotated, 2)
	require.Equal(t, 2, sum.Total)

	require.Equal(t, reconcile.StatusHighConfidence, annotated[0].Status)
	require.Equal(t, "C100", annotated[0].MatchedCode)
	require.Equal(t, "12.5", annotated[0].Quantity)
	require.Equal(t, reconcile.StatusNoMatchFound, annotated[1].Status)
	require.Equal(t, 1, sum.ByStatus[reconcile.StatusHighConfidence])
	require.Equal(t, 1, sum.ByStatus[reconcile.StatusNoMatchFound])
}

func TestStandardizeMissingInvoice(t *testing.T) {
	t.Parallel()

	_, codesPath := writeFixtures(t)
	p, _ := testProcessor(t)

	_, _, _, err := p.Standardize(context.Background(), "does-not-exist.xml", codesPath, nil)
	require.ErrorContains(t, err, "extraction")
}

func TestStandardizeBadCatalog(t *testing.T) {
	t.Parallel()

	xmlPath, _ := writeFixtures(t)
	badCodes := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(badCodes, []byte("onlyone\nC100\n"), 0o644))
	p, _ := testProcessor(t)

	_, _, _, err := p.Standardize(context.Background(), xmlPath, badCodes, nil)
	require.ErrorContains(t, err, "catalog load")
}

func TestProcessInvoice(t *testing.T) {
	t.Parallel()

	xmlPath, codesPath := writeFixtures(t)
	p, st := testProcessor(t)

	doc, sum, err := p.ProcessInvoice(context.Background(), xmlPath, codesPath, nil)
	require.NoError(t, err)
	require.Equal(t, "factura-martie", doc.Name)
	require.Equal(t, 2, doc.LinesCount)
	require.Equal(t, 1, doc.MatchedCount)
	require.Equal(t, 2, sum.Total)

	// registry, artifacts and ledger are all committed
	docs := st.Documents()
	require.Len(t, docs, 1)
	require.Equal(t, doc.ID, docs[0].ID)
	require.FileExists(t, st.ArtifactPath(doc.Artifact))

	back, err := store.ReadArtifact(st.ArtifactPath(doc.Artifact))
	require.NoError(t, err)
	require.Len(t, back, 2)

	inv := st.Inventory()
	require.Len(t, inv, 1)
	require.Equal(t, "Steel Pipe 10mm", inv[0].Description)
	require.InDelta(t, 12.5, inv[0].Quantity, 1e-9)
}

func TestProcessInvoiceProgressStages(t *testing.T) {
	t.Parallel()

	xmlPath, codesPath := writeFixtures(t)
	p, _ := testProcessor(t)

	var stages []string
	_, _, err := p.ProcessInvoice(context.Background(), xmlPath, codesPath, func(stage string) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		StageExtracting,
		StageLoadingCatalog,
		StageMatching,
		StageWritingOutput,
		StageUpdatingLedger,
		StageDone,
	}, stages)
}

func TestProcessInvoiceFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	_, codesPath := writeFixtures(t)
	p, st := testProcessor(t)

	_, _, err := p.ProcessInvoice(context.Background(), "missing.xml", codesPath, nil)
	require.Error(t, err)
	require.Empty(t, st.Documents())
	require.Empty(t, st.Inventory())
}
