package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"facturo/internal/reconcile"
)

var (
	// ErrNotFound means no registry entry matched the given reference.
	ErrNotFound = errors.New("document not found")
	// ErrAmbiguousName means a name-based delete matched several documents.
	ErrAmbiguousName = errors.New("document name is ambiguous, use the id")
)

// AddDocument writes the artifacts for one processed invoice, folds its lines
// into the ledger and appends a registry record, keeping the registry sorted
// by name (case-insensitive, stable) and committing the blob.
func (s *Store) AddDocument(name string, lines []reconcile.AnnotatedLine, now time.Time) (Document, error) {
	id := uuid.NewString()
	// short id suffix keeps same-name, same-second artifacts from colliding
	base := fmt.Sprintf("%s_%s_%s_standardized", now.Format("20060102_150405"), name, id[:8])
	jsonName := base + ".json"
	if err := WriteArtifacts(s.ArtifactPath(jsonName), s.ArtifactPath(base+".csv"), lines); err != nil {
		return Document{}, err
	}

	matched := 0
	for _, l := range lines {
		if l.Matched() {
			matched++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addLines(lines)

	doc := Document{
		ID:           id,
		Name:         name,
		Artifact:     jsonName,
		Date:         now.Format(dateFormat),
		LinesCount:   len(lines),
		MatchedCount: matched,
	}
	s.data.Documents = append(s.data.Documents, doc)
	sortDocuments(s.data.Documents)

	if err := s.save(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func sortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return strings.ToLower(docs[i].Name) < strings.ToLower(docs[j].Name)
	})
}

// Documents returns a copy of the registry in its sorted order.
func (s *Store) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Document(nil), s.data.Documents...)
}

// Search returns every document whose name contains query, case-insensitive.
// An empty query returns the full registry unfiltered.
func (s *Store) Search(query string) []Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return append([]Document(nil), s.data.Documents...)
	}
	q := strings.ToLower(query)
	var out []Document
	for _, doc := range s.data.Documents {
		if strings.Contains(strings.ToLower(doc.Name), q) {
			out = append(out, doc)
		}
	}
	return out
}

// Suggest returns up to three registered names closest to query by edit
// distance, for when a substring search comes back empty.
func (s *Store) Suggest(query string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	limit := len([]rune(q))/2 + 2

	type scored struct {
		name string
		dist int
	}
	var close []scored
	for _, doc := range s.data.Documents {
		d := levenshtein.ComputeDistance(q, strings.ToLower(doc.Name))
		if d <= limit {
			close = append(close, scored{name: doc.Name, dist: d})
		}
	}
	sort.SliceStable(close, func(i, j int) bool { return close[i].dist < close[j].dist })
	if len(close) > 3 {
		close = close[:3]
	}
	names := make([]string, 0, len(close))
	for _, c := range close {
		names = append(names, c.name)
	}
	return names
}

// Delete removes the document matching ref (ID first, then exact name), its
// artifacts, and subtracts its lines from the ledger. A name shared by
// several documents is refused as ambiguous.
func (s *Store) Delete(ref string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, doc := range s.data.Documents {
		if doc.ID == ref {
			idx = i
			break
		}
	}
	if idx == -1 {
		for i, doc := range s.data.Documents {
			if strings.EqualFold(doc.Name, ref) {
				if idx != -1 {
					return Document{}, fmt.Errorf("%q: %w", ref, ErrAmbiguousName)
				}
				idx = i
			}
		}
	}
	if idx == -1 {
		return Document{}, fmt.Errorf("%q: %w", ref, ErrNotFound)
	}

	doc := s.data.Documents[idx]

	lines, err := ReadArtifact(s.ArtifactPath(doc.Artifact))
	if err != nil {
		s.log.Warn().Err(err).Str("document", doc.Name).Msg("artifact unreadable, ledger not adjusted")
	} else {
		s.subtractLines(lines)
	}

	_ = os.Remove(s.ArtifactPath(doc.Artifact))
	_ = os.Remove(s.ArtifactPath(csvSibling(doc.Artifact)))

	s.data.Documents = append(s.data.Documents[:idx], s.data.Documents[idx+1:]...)
	if err := s.save(); err != nil {
		return Document{}, err
	}
	return doc, nil
}
