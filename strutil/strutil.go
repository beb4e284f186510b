// Package strutil provides the string distance and tokenizing helpers
// used when diagnosing near-miss comparisons.
package strutil

import (
	"strings"

	"github.com/probelab/vigil/arena"
)

// EditDistance returns the Levenshtein distance between s1 and s2,
// counted in runes.
func EditDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	return editDistance(a, b, prev, cur)
}

// EditDistanceIn is EditDistance with its scratch rows allocated from an
// arena instead of the heap. The scratch is freed before returning, so a
// clean arena stays clean.
func EditDistanceIn(ar *arena.Arena, s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	prev := arena.AllocSlice[int](ar, len(b)+1)
	cur := arena.AllocSlice[int](ar, len(b)+1)
	d := editDistance(a, b, prev, cur)
	arena.FreeSlice(ar, cur)
	arena.FreeSlice(ar, prev)
	return d
}

// editDistance runs the two-row dynamic program. prev and cur must both
// hold len(b)+1 entries.
func editDistance(a, b []rune, prev, cur []int) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			// Cheapest of deletion, insertion, substitution.
			m := prev[j]
			if v := cur[j-1]; v < m {
				m = v
			}
			if v := prev[j-1]; v < m {
				m = v
			}
			cur[j] = 1 + m
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// HammingDistance returns the number of positions at which s1 and s2
// differ, counted in runes. ok is false when the strings differ in
// length, in which case the distance is meaningless and returned as 0.
func HammingDistance(s1, s2 string) (dist int, ok bool) {
	a, b := []rune(s1), []rune(s2)
	if len(a) != len(b) {
		return 0, false
	}
	for i := range a {
		if a[i] != b[i] {
			dist++
		}
	}
	return dist, true
}

// FuzzyRatio returns a similarity score in [0, 1]: 1 minus the edit
// distance relative to the longer string. Two empty strings score 1;
// one empty string scores 0.
func FuzzyRatio(s1, s2 string) float64 {
	if s1 == "" && s2 == "" {
		return 1
	}
	if s1 == "" || s2 == "" {
		return 0
	}
	maxLen := len([]rune(s1))
	if l := len([]rune(s2)); l > maxLen {
		maxLen = l
	}
	return 1 - float64(EditDistance(s1, s2))/float64(maxLen)
}

// Tokenize splits s on any rune in delims and drops empty tokens.
func Tokenize(s, delims string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(delims, r)
	})
}
