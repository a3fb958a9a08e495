package store

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"facturo/internal/reconcile"
)

// InventoryEntry is one cumulative ledger row.
type InventoryEntry struct {
	Description string
	Quantity    float64
}

// Inventory returns the ledger sorted by description.
func (s *Store) Inventory() []InventoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]InventoryEntry, 0, len(s.data.Inventory))
	for desc, qty := range s.data.Inventory {
		out = append(out, InventoryEntry{Description: desc, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out
}

// addLines folds annotated lines into the ledger. Lines without a matched
// description or with a quantity that does not parse are skipped silently:
// tolerated malformed input, not an error. Caller holds the lock.
func (s *Store) addLines(lines []reconcile.AnnotatedLine) {
	for _, l := range lines {
		desc, qty, ok := ledgerKey(l)
		if !ok {
			continue
		}
		s.data.Inventory[desc] += qty
	}
}

// subtractLines reverses addLines for a deleted document. Entries that drop
// to zero or below are removed entirely. Caller holds the lock.
func (s *Store) subtractLines(lines []reconcile.AnnotatedLine) {
	for _, l := range lines {
		desc, qty, ok := ledgerKey(l)
		if !ok {
			continue
		}
		if _, present := s.data.Inventory[desc]; !present {
			continue
		}
		s.data.Inventory[desc] -= qty
		if s.data.Inventory[desc] <= 0 {
			delete(s.data.Inventory, desc)
		}
	}
}

func ledgerKey(l reconcile.AnnotatedLine) (string, float64, bool) {
	if l.MatchedDescription == nil || *l.MatchedDescription == "" {
		return "", 0, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(l.Quantity))
	if err != nil {
		return "", 0, false
	}
	qty, _ := d.Float64()
	return *l.MatchedDescription, qty, true
}

// Recompute discards the ledger and rebuilds it by replaying every registered
// document's artifact. Unreadable artifacts are logged and skipped so one
// damaged file cannot block repair of the rest.
func (s *Store) Recompute() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Inventory = map[string]float64{}
	for _, doc := range s.data.Documents {
		lines, err := ReadArtifact(s.ArtifactPath(doc.Artifact))
		if err != nil {
			s.log.Warn().Err(err).Str("document", doc.Name).Msg("skipping artifact during recompute")
			continue
		}
		s.addLines(lines)
	}
	return s.save()
}

// ExportInventoryXLSX writes the ledger to a two-column workbook.
func (s *Store) ExportInventoryXLSX(path string) error {
	entries := s.Inventory()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Description")
	_ = f.SetCellValue(sheet, "B1", "Quantity")
	for i, e := range entries {
		cellA, _ := excelize.CoordinatesToCellName(1, i+2)
		cellB, _ := excelize.CoordinatesToCellName(2, i+2)
		_ = f.SetCellValue(sheet, cellA, e.Description)
		_ = f.SetCellValue(sheet, cellB, e.Quantity)
	}
	return f.SaveAs(path)
}
