package matching

import "strings"

// Soundex returns the American Soundex code of every word in s, space separated
func Soundex(s string) string {
	words := strings.Fields(strings.ToUpper(s))
	codes := make([]string, 0, len(words))
	for _, w := range words {
		if code := soundexWord(w); code != "" {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, " ")
}

// SoundexScore is 100 when both strings encode identically, 0 otherwise
func SoundexScore(a, b string) float64 {
	ca, cb := Soundex(a), Soundex(b)
	if ca == "" && cb == "" {
		if a == b {
			return 100
		}
		return 0
	}
	if ca == cb {
		return 100
	}
	return 0
}

func soundexWord(w string) string {
	var letters []rune
	for _, r := range w {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := []byte{byte(letters[0])}
	prev := soundexDigit(letters[0])
	for _, r := range letters[1:] {
		if len(code) == 4 {
			break
		}
		d := soundexDigit(r)
		switch {
		case r == 'H' || r == 'W':
			// transparent: letters on either side with the same digit collapse
			continue
		case d == '0':
			prev = '0'
		case d != prev:
			code = append(code, d)
			prev = d
		}
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

func soundexDigit(r rune) byte {
	switch r {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	default:
		return '0'
	}
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0, 1]
func JaroWinkler(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	jaro := jaroRunes(ra, rb)

	prefix := 0
	for i := 0; i < len(ra) && i < len(rb) && i < 4; i++ {
		if ra[i] != rb[i] {
			break
		}
		prefix++
	}
	return jaro + float64(prefix)*0.1*(1-jaro)
}

func jaroRunes(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := max(0, i-window)
		hi := min(len(b), i+window+1)
		for j := lo; j < hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i], bMatched[j] = true, true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}
