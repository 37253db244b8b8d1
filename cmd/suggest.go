package cmd

import (
	"sort"
	"strings"
)

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// suggestSimilar returns up to max candidates ranked by closeness to target.
// Candidates containing the target as a substring rank before pure edit
// distance matches.
func suggestSimilar(target string, candidates []string, max int) []string {
	type scored struct {
		value    string
		distance int
		contains bool
	}

	var ranked []scored
	lowerTarget := strings.ToLower(target)

	for _, c := range candidates {
		if c == target {
			continue
		}
		lowerC := strings.ToLower(c)
		ranked = append(ranked, scored{
			value:    c,
			distance: levenshtein(lowerTarget, lowerC),
			contains: strings.Contains(lowerC, lowerTarget) || strings.Contains(lowerTarget, lowerC),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].contains != ranked[j].contains {
			return ranked[i].contains
		}
		return ranked[i].distance < ranked[j].distance
	})

	out := make([]string, 0, max)
	for _, r := range ranked {
		if len(out) >= max {
			break
		}
		out = append(out, r.value)
	}
	return out
}
