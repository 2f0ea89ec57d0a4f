// Package similarity scores how alike two titles are, using the
// Sørensen–Dice coefficient over character bigrams of normalized strings.
package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds accents, lowercases, collapses runs of non-alphanumeric
// characters to single spaces and trims.
func Normalize(s string) string {
	folded, _, err := transform.String(foldAccents, s)
	if err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity returns a score in [0,1] for the two strings. Identical
// normalized strings score 1; anything too short to form a bigram scores 0
// unless exactly equal.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)

	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	ba := bigrams(na)
	bb := bigrams(nb)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	counts := map[string]int{}
	for _, g := range ba {
		counts[g]++
	}

	shared := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(ba)+len(bb))
}

// bigrams returns every consecutive two-rune substring, multiset semantics:
// a bigram occurring twice can match at most twice on the other side.
func bigrams(s string) []string {
	rs := []rune(s)
	if len(rs) < 2 {
		return nil
	}

	out := make([]string, 0, len(rs)-1)
	for i := 0; i+1 < len(rs); i++ {
		out = append(out, string(rs[i:i+2]))
	}

	return out
}

// Candidate is one catalog entry to score against a source title.
type Candidate struct {
	ID        string
	Title     string
	AltTitles []string
}

// BestCandidate scores each candidate against the source title, taking the
// maximum over the primary and all alternate titles, and returns the index
// of the best candidate with its score. Ties keep the first-seen candidate.
// Returns (-1, 0) for an empty candidate list.
func BestCandidate(sourceTitle string, candidates []Candidate) (int, float64) {
	best, bestScore := -1, 0.0

	for i, c := range candidates {
		score := Similarity(sourceTitle, c.Title)
		for _, alt := range c.AltTitles {
			if s := Similarity(sourceTitle, alt); s > score {
				score = s
			}
		}

		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}

	return best, bestScore
}
