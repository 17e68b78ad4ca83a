package fuzzy

import (
	"unicode"
)

// Scoring constants. The exact values are a pluggable strategy; what
// matters is that score is monotonically non-decreasing in match
// quality and every returned result clears the configured floor.
const (
	// scoreMatch is the base score per matched rune.
	scoreMatch = 16

	// bonusConsecutive rewards a match immediately following the
	// previous matched rune.
	bonusConsecutive = 8

	// bonusWordBoundary rewards a match at the start of the text or
	// after a separator rune.
	bonusWordBoundary = 12

	// bonusCaseExact rewards a case-exact rune match.
	bonusCaseExact = 4

	// penaltyGap is subtracted per skipped rune between matches.
	penaltyGap = 1

	// maxPerRuneScore bounds the best possible contribution of one
	// query rune, used for top-K pruning.
	maxPerRuneScore = scoreMatch + bonusConsecutive + bonusWordBoundary + bonusCaseExact
)

// isWordBoundary reports whether a rune separates words in searchable text.
func isWordBoundary(r rune) bool {
	switch r {
	case ' ', '-', '_', '.', '/', '(', '[':
		return true
	}
	return false
}

// containsSubsequence is the cheap pre-check: does text contain all
// query runes in order, case-insensitively?
func containsSubsequence(text, query []rune) bool {
	if len(query) > len(text) {
		return false
	}
	qi := 0
	for ti := 0; ti < len(text) && qi < len(query); ti++ {
		if unicode.ToLower(text[ti]) == unicode.ToLower(query[qi]) {
			qi++
		}
	}
	return qi == len(query)
}

// scoreSubsequence scores a greedy left-to-right subsequence match of
// query against text. Both are rune slices; query is matched
// case-insensitively. Returns the score and the matched rune positions.
//
// The greedy alignment is deterministic: for a given (text, query) pair
// the same positions and score are always produced.
func scoreSubsequence(text, query []rune) (int, []int, bool) {
	if len(query) == 0 {
		return 0, nil, false
	}

	positions := make([]int, 0, len(query))
	score := 0
	qi := 0
	lastMatch := -2 // sentinel: position -1 would look consecutive to index 0

	for ti := 0; ti < len(text) && qi < len(query); ti++ {
		tr := text[ti]
		qr := query[qi]
		if unicode.ToLower(tr) != unicode.ToLower(qr) {
			continue
		}

		score += scoreMatch
		if ti == lastMatch+1 {
			score += bonusConsecutive
		}
		if ti == 0 || isWordBoundary(text[ti-1]) {
			score += bonusWordBoundary
		}
		if tr == qr {
			score += bonusCaseExact
		}
		if lastMatch >= 0 && ti > lastMatch+1 {
			gap := ti - lastMatch - 1
			score -= gap * penaltyGap
		}

		positions = append(positions, ti)
		lastMatch = ti
		qi++
	}

	if qi != len(query) {
		return 0, nil, false
	}
	return score, positions, true
}
