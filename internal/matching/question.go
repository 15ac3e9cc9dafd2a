// Package matching decides whether two markets on different platforms
// describe the same real-world event, scoring question text, resolution
// sources, expiries, and timezones.
package matching

import (
	"regexp"
	"strings"
)

var stopwords = map[string]bool{
	"will": true, "the": true, "be": true, "in": true, "on": true, "at": true,
	"by": true, "for": true, "of": true, "to": true, "a": true, "an": true,
	"and": true, "or": true, "is": true, "are": true, "was": true, "were": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "can": true, "could": true,
	"should": true, "would": true, "may": true, "might": true, "must": true,
	"shall": true,
}

var (
	// Dollar amounts, percentages, and shorthand magnitudes like "50k" or "1.5b".
	numberPattern = regexp.MustCompile(`\$?[\d,]+\.?\d*[kmb]?`)
	punctPattern  = regexp.MustCompile(`[^\w\s$%]`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// normalizeQuestion lowercases and strips punctuation while keeping the
// characters that carry meaning in market questions ($, %).
func normalizeQuestion(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = punctPattern.ReplaceAllString(q, " ")
	q = spacePattern.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

// contentWords returns the set of non-stopword tokens.
func contentWords(normalized string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		if !stopwords[tok] {
			out[tok] = true
		}
	}
	return out
}

// keywords returns the subset of content words long enough to be
// discriminating.
func keywords(normalized string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		if len(tok) >= 4 && !stopwords[tok] {
			out[tok] = true
		}
	}
	return out
}

// extractNumbers pulls every numeric token out of the raw question text.
// Two questions about "$50k" and "$100k" are different events no matter how
// similar the surrounding words are. Matches are canonicalized (commas and a
// trailing dot removed) so venue formatting differences do not break equality.
func extractNumbers(raw string) map[string]bool {
	out := make(map[string]bool)
	for _, n := range numberPattern.FindAllString(strings.ToLower(raw), -1) {
		n = strings.ReplaceAll(n, ",", "")
		n = strings.TrimSuffix(n, ".")
		out[n] = true
	}
	return out
}

func setOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// numberMatch is a three-way indicator over the numeric token sets: 1.0 when
// they are identical (including both empty), 0.5 when they merely overlap,
// 0.0 when disjoint. A shared-but-unequal set of figures is suspicious, not
// partially fine, so this is deliberately coarser than Jaccard.
func numberMatch(a, b map[string]bool) float64 {
	if len(a) == len(b) {
		equal := true
		for k := range a {
			if !b[k] {
				equal = false
				break
			}
		}
		if equal {
			return 1.0
		}
	}
	for k := range a {
		if b[k] {
			return 0.5
		}
	}
	return 0.0
}

// QuestionSimilarity blends character-level and token-level similarity of two
// market questions into a score in [0,1]. Numeric token agreement is weighted
// separately so that questions differing only in a threshold figure score low.
func QuestionSimilarity(questionA, questionB string) float64 {
	na := normalizeQuestion(questionA)
	nb := normalizeQuestion(questionB)
	if na == nb {
		return 1.0
	}

	seq := sequenceRatio(na, nb)
	jac := setOverlap(contentWords(na), contentWords(nb))
	kw := setOverlap(keywords(na), keywords(nb))
	num := numberMatch(extractNumbers(questionA), extractNumbers(questionB))

	return seq*0.25 + jac*0.35 + kw*0.25 + num*0.15
}

// sequenceRatio is a character-level similarity in [0,1]: twice the total
// length of the longest matching blocks divided by the combined length.
func sequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1.0
	}
	m := matchedChars(ra, rb)
	return 2.0 * float64(m) / float64(len(ra)+len(rb))
}

// matchedChars sums the longest matching block and recurses on the pieces to
// its left and right.
func matchedChars(a, b []rune) int {
	ai, bj, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchedChars(a[:ai], b[:bj]) +
		matchedChars(a[ai+size:], b[bj+size:])
}

func longestMatch(a, b []rune) (besti, bestj, bestsize int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	b2j := make(map[rune][]int, len(b))
	for j, c := range b {
		b2j[c] = append(b2j[c], j)
	}
	j2len := make(map[int]int)
	for i, c := range a {
		newj2len := make(map[int]int)
		for _, j := range b2j[c] {
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
