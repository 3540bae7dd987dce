// Package enrich links EPAR marketing-authorisation-holder names to SPOR
// organisation ids via approximate string matching.
package enrich

// JaroWinkler computes the Jaro-Winkler similarity between two strings.
// Identical strings score 1.0, an empty operand scores 0.0. The comparison is
// case-sensitive and operates on code points, so accented organisation names
// score the same regardless of UTF-8 byte width.
func JaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)
	if len1 == 0 || len2 == 0 {
		return 0.0
	}

	matchDistance := max(len1, len2)/2 - 1

	matches := 0
	s1Matches := make([]bool, len1)
	s2Matches := make([]bool, len2)

	// Greedy left-to-right matching: each r1 character claims the first
	// unused r2 character within the window.
	for i := 0; i < len1; i++ {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, len2)
		for j := start; j < end; j++ {
			if s2Matches[j] || r1[i] != r2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions between the matched sequences in original order.
	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !s1Matches[i] {
			continue
		}
		for !s2Matches[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	m := float64(matches)
	jaro := (m/float64(len1) + m/float64(len2) + (m-float64(transpositions))/m) / 3.0

	// Winkler boost for a shared prefix of up to four characters.
	prefix := 0
	for i := 0; i < min(min(len1, len2), 4); i++ {
		if r1[i] != r2[i] {
			break
		}
		prefix++
	}

	return jaro + float64(prefix)*0.1*(1.0-jaro)
}
