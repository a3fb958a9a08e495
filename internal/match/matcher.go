// Package match scores invoice line descriptions against the catalog using a
// Ratcliff/Obershelp longest-matching-blocks ratio.
package match

import (
	"math"
	"sort"
	"strings"

	"facturo/internal/catalog"
)

// Candidate is one scored catalog entry for a line description.
type Candidate struct {
	Code        catalog.Code `json:"matched_code"`
	Description string       `json:"matched_description"`
	Score       float64      `json:"score"`
}

// Rank scores description against every catalog entry (both lower-cased),
// drops candidates under minScore and returns the rest ordered by score
// descending. Equal scores keep catalog order.
func Rank(description string, entries []catalog.Entry, minScore float64) []Candidate {
	desc := strings.ToLower(description)
	var out []Candidate
	for _, e := range entries {
		score := Ratio(desc, strings.ToLower(e.Description))
		if score >= minScore {
			out = append(out, Candidate{
				Code:        e.Code,
				Description: e.Description,
				Score:       round4(score),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Ratio returns 2*M/T where M is the total length of matched blocks found by
// recursively taking the longest common substring and recursing on both
// unmatched remainders, and T is the combined length of the inputs. Operates
// on runes; two empty strings score 1.0.
func Ratio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}
	m := newMatcher(ar, br)
	return 2.0 * float64(m.matchedTotal()) / float64(total)
}

type matcher struct {
	a, b []rune
	b2j  map[rune][]int
}

func newMatcher(a, b []rune) *matcher {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}
	return &matcher{a: a, b: b, b2j: b2j}
}

// matchedTotal sums the sizes of all matching blocks.
func (m *matcher) matchedTotal() int {
	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(m.a), 0, len(m.b)}}
	matched := 0
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		i, j, k := m.findLongestMatch(s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// findLongestMatch locates the longest block common to a[alo:ahi] and
// b[blo:bhi]. Ties resolve to the block starting earliest in a, then b.
func (m *matcher) findLongestMatch(alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newj2len := map[int]int{}
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
