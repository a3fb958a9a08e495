// Package store owns the process-wide state: the document registry, the
// cumulative inventory ledger and the per-document artifacts, persisted as a
// single JSON blob under the data directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	dataFileName = "data.json"
	artifactsDir = "artifacts"
	dateFormat   = "2006-01-02 15:04"
)

// Document is one registry entry for a processed invoice.
type Document struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Artifact     string `json:"artifact"`
	Date         string `json:"date"`
	LinesCount   int    `json:"lines_count"`
	MatchedCount int    `json:"matched_count"`
}

// Data is the persisted blob: registry plus ledger.
type Data struct {
	Documents []Document         `json:"documents"`
	Inventory map[string]float64 `json:"inventory"`
}

// Store guards the blob and its artifacts. All mutations are serialized by a
// single mutex since registry and ledger must stay consistent per document.
type Store struct {
	mu   sync.Mutex
	dir  string
	log  zerolog.Logger
	data Data
}

// Open loads (or initializes) the store under dir. Corrupt or empty blob
// content is discarded and replaced with a fresh empty store; a parse failure
// never reaches the caller. Legacy records are migrated to the current shape
// before anything else reads them, re-persisting only when something changed.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, artifactsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dir, log: log}
	migrated, err := s.load()
	if err != nil {
		return nil, err
	}
	if migrated {
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("persist migrated store: %w", err)
		}
	}
	return s, nil
}

func emptyData() Data {
	return Data{Documents: []Document{}, Inventory: map[string]float64{}}
}

func (s *Store) dataPath() string { return filepath.Join(s.dir, dataFileName) }

// ArtifactPath resolves an artifact filename inside the data directory.
func (s *Store) ArtifactPath(name string) string {
	return filepath.Join(s.dir, artifactsDir, name)
}

func (s *Store) load() (migrated bool, err error) {
	raw, err := os.ReadFile(s.dataPath())
	if errors.Is(err, os.ErrNotExist) {
		s.data = emptyData()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read store: %w", err)
	}
	if len(raw) == 0 {
		s.data = emptyData()
		return false, nil
	}

	var blob struct {
		Documents []json.RawMessage  `json:"documents"`
		Inventory map[string]float64 `json:"inventory"`
	}
	if err := json.Unmarshal(raw, &blob); err != nil {
		s.log.Warn().Err(err).Msg("store file corrupt, starting with an empty store")
		_ = os.Remove(s.dataPath())
		s.data = emptyData()
		return false, nil
	}

	s.data = emptyData()
	if blob.Inventory != nil {
		s.data.Inventory = blob.Inventory
	}
	for _, rawDoc := range blob.Documents {
		doc, changed := migrateDocument(rawDoc)
		if changed {
			migrated = true
		}
		s.data.Documents = append(s.data.Documents, doc)
	}
	return migrated, nil
}

// migrateDocument upgrades a stored record to the current field set, filling
// unknown counts with 0 and assigning an ID when the record predates them.
func migrateDocument(raw json.RawMessage) (Document, bool) {
	var legacy struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Artifact     string `json:"artifact"`
		CSVFilename  string `json:"csv_filename"`
		Filename     string `json:"filename"`
		Date         string `json:"date"`
		LinesCount   *int   `json:"lines_count"`
		MatchedCount *int   `json:"matched_count"`
	}
	changed := false
	if err := json.Unmarshal(raw, &legacy); err != nil {
		// unreadable record: keep a placeholder rather than dropping data
		return Document{ID: uuid.NewString(), Name: "Unknown", Date: time.Now().Format(dateFormat)}, true
	}

	doc := Document{ID: legacy.ID, Name: legacy.Name, Artifact: legacy.Artifact, Date: legacy.Date}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
		changed = true
	}
	if doc.Name == "" {
		doc.Name = "Unknown"
		changed = true
	}
	if doc.Artifact == "" {
		switch {
		case legacy.CSVFilename != "":
			doc.Artifact = legacy.CSVFilename
		case legacy.Filename != "":
			doc.Artifact = legacy.Filename
		}
		changed = true
	}
	if doc.Date == "" {
		doc.Date = time.Now().Format(dateFormat)
		changed = true
	}
	if legacy.LinesCount != nil {
		doc.LinesCount = *legacy.LinesCount
	} else {
		changed = true
	}
	if legacy.MatchedCount != nil {
		doc.MatchedCount = *legacy.MatchedCount
	} else {
		changed = true
	}
	return doc, changed
}

func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := os.WriteFile(s.dataPath(), raw, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}
