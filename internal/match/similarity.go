package match

import "unicode"

// Normalize drops every rune that is not a letter or a digit and lower-cases
// the rest. A zero directly followed by a Latin letter other than "o" is read
// as the letter "o", so "Special0ffer50%0ff" becomes "specialoffer50off".
// The result is a fixed point: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	runes := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runes = append(runes, unicode.ToLower(r))
		}
	}
	for i := 0; i+1 < len(runes); i++ {
		if runes[i] == '0' && isLatinLetter(runes[i+1]) && runes[i+1] != 'o' {
			runes[i] = 'o'
		}
	}
	return string(runes)
}

func isLatinLetter(r rune) bool {
	return r >= 'a' && r <= 'z'
}

// LongestCommonRatio is the length of the longest contiguous run shared by
// the normalized text and keyword, divided by the normalized keyword length.
func LongestCommonRatio(text, keyword string) float64 {
	t := []rune(Normalize(text))
	k := []rune(Normalize(keyword))
	if len(k) == 0 {
		return 0
	}
	_, _, size := longestMatch(t, k, 0, len(t), 0, len(k))
	return float64(size) / float64(len(k))
}

// SequenceRatio is the Ratcliff/Obershelp similarity 2*M/T of the two
// normalized strings, where M counts the characters in matching blocks.
func SequenceRatio(a, b string) float64 {
	ar := []rune(Normalize(a))
	br := []rune(Normalize(b))
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchedChars(ar, br, 0, len(ar), 0, len(br))) / float64(total)
}

func matchedChars(a, b []rune, alo, ahi, blo, bhi int) int {
	i, j, k := longestMatch(a, b, alo, ahi, blo, bhi)
	if k == 0 {
		return 0
	}
	return k + matchedChars(a, b, alo, i, blo, j) + matchedChars(a, b, i+k, ahi, j+k, bhi)
}

// longestMatch finds the longest common run of a[alo:ahi] and b[blo:bhi].
// Ties resolve to the earliest start in a, then in b.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	if alo >= ahi || blo >= bhi {
		return besti, bestj, 0
	}
	width := bhi - blo
	prev := make([]int, width+1)
	curr := make([]int, width+1)
	for i := alo; i < ahi; i++ {
		for j := blo; j < bhi; j++ {
			col := j - blo + 1
			if a[i] != b[j] {
				curr[col] = 0
				continue
			}
			curr[col] = prev[col-1] + 1
			if k := curr[col]; k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		prev, curr = curr, prev
	}
	return besti, bestj, bestsize
}
