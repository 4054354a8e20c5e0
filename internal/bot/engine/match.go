package engine

import (
	"strconv"
	"strings"
)

// matchConfidenceBar is the score a single candidate must clear for the
// matcher to auto-apply it.  Exact matches score 1.0; substring and prefix
// containment are treated as matches; bounded edit-distance candidates stay
// below the bar and are offered as suggestions only.
const matchConfidenceBar = 0.7

// maxSuggestions caps how many near-misses are offered back to the user.
const maxSuggestions = 3

// MatchResult is the outcome of matching free text against a closed option
// set.
type MatchResult struct {
	Matched    bool
	Option     string
	Confidence float64
	// Suggestions holds up to three near-miss options, ordered by
	// increasing edit distance, when no single match cleared the bar.
	Suggestions []string
}

// containmentMaxWords caps how long a message may be and still count as a
// phrase wrapping an option ("tomorrow works for me").  A long sentence that
// merely mentions an option word is not an answer to it.
const containmentMaxWords = 4

// MatchOption fuzzy-matches freeText against options.
//
// Precedence:
//  1. case-insensitive exact match → confidence 1.0
//  2. a bare menu index ("2") → the corresponding option, confidence 1.0
//  3. substring / prefix containment: the input as a fragment of an option
//     ("morning"), or a short phrase containing an option → match
//  4. bounded edit distance (threshold 2 for candidates of length ≤ 5,
//     else 3), pooled, de-duplicated, top 3 as suggestions
func MatchOption(freeText string, options []string) MatchResult {
	input := strings.TrimSpace(strings.ToLower(freeText))
	if input == "" || len(options) == 0 {
		return MatchResult{}
	}

	// 1. Exact.
	for _, opt := range options {
		if strings.ToLower(opt) == input {
			return MatchResult{Matched: true, Option: opt, Confidence: 1.0}
		}
	}

	// 2. Menu index.
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		return MatchResult{Matched: true, Option: options[n-1], Confidence: 1.0}
	}

	// 3. Containment.
	inputWords := len(strings.Fields(input))
	for _, opt := range options {
		lower := strings.ToLower(opt)
		if len(input) >= 3 && strings.Contains(lower, input) {
			return MatchResult{Matched: true, Option: opt, Confidence: 0.85}
		}
		if inputWords <= containmentMaxWords && strings.Contains(input, lower) {
			return MatchResult{Matched: true, Option: opt, Confidence: 0.85}
		}
	}

	// 4. Edit distance.
	type candidate struct {
		option string
		dist   int
	}
	var pool []candidate
	seen := make(map[string]bool)
	for _, opt := range options {
		lower := strings.ToLower(opt)
		bound := 3
		if len(lower) <= 5 {
			bound = 2
		}
		d := editDistance(input, lower)
		if d > 0 && d <= bound && !seen[opt] {
			seen[opt] = true
			pool = append(pool, candidate{option: opt, dist: d})
		}
	}
	// Insertion sort by increasing distance; the pool is tiny.
	for i := 1; i < len(pool); i++ {
		for j := i; j > 0 && pool[j].dist < pool[j-1].dist; j-- {
			pool[j], pool[j-1] = pool[j-1], pool[j]
		}
	}

	res := MatchResult{}
	for i := 0; i < len(pool) && i < maxSuggestions; i++ {
		res.Suggestions = append(res.Suggestions, pool[i].option)
	}
	return res
}

// editDistance computes the Levenshtein distance between a and b using the
// classic two-row dynamic program.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
