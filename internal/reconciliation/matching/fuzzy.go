package matching

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/invoice-reconciliation/internal/domain/rule"
)

// unit-cost edits; the library default charges 2 for a substitution
var editOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// FuzzyResult carries the combined score and the score of every scorer that ran
type FuzzyResult struct {
	Score  float64
	Scores map[rule.FuzzyAlgorithm]float64
	Left   string
	Right  string
}

// Passed reports whether the combined score reaches threshold
func (r FuzzyResult) Passed(threshold float64) bool {
	return r.Score >= threshold
}

// Similarity scores a against b on a 0-100 scale using the algorithms enabled in cfg.
// The combined score is the best of the enabled scorers.
func Similarity(cfg rule.FuzzyMatchConfig, a, b string) FuzzyResult {
	left := Normalize(a)
	right := Normalize(b)

	if cfg.Enabled(rule.AlgorithmAbbreviations) {
		table := abbreviationTable(cfg.AbbreviationMappings)
		left = expandAbbreviations(left, table)
		right = expandAbbreviations(right, table)
	}

	result := FuzzyResult{Scores: map[rule.FuzzyAlgorithm]float64{}, Left: left, Right: right}

	useLevenshtein := cfg.Enabled(rule.AlgorithmLevenshtein)
	if !useLevenshtein && !cfg.Enabled(rule.AlgorithmSoundex) && !cfg.Enabled(rule.AlgorithmOthers) {
		useLevenshtein = true
	}

	if useLevenshtein {
		result.Scores[rule.AlgorithmLevenshtein] = LevenshteinScore(left, right)
	}
	if cfg.Enabled(rule.AlgorithmSoundex) {
		result.Scores[rule.AlgorithmSoundex] = SoundexScore(left, right)
	}
	if cfg.Enabled(rule.AlgorithmOthers) {
		result.Scores[rule.AlgorithmOthers] = JaroWinkler(left, right) * 100
	}

	for _, score := range result.Scores {
		if score > result.Score {
			result.Score = score
		}
	}
	return result
}

// Normalize trims, lower-cases and collapses internal whitespace
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// LevenshteinScore is 100 * (1 - distance / longer length), measured in runes
func LevenshteinScore(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein.DistanceForStrings(ra, rb, editOptions)
	return 100 * float64(longest-d) / float64(longest)
}

// abbreviationTable maps every normalized abbreviation to its normalized full form
func abbreviationTable(mappings []rule.AbbreviationMapping) map[string]string {
	table := make(map[string]string)
	for _, m := range mappings {
		full := Normalize(m.FullName)
		for _, abbr := range m.Abbreviations {
			key := strings.TrimSuffix(Normalize(abbr), ".")
			if key != "" && key != full {
				table[key] = full
			}
		}
	}
	return table
}

// expandAbbreviations rewrites abbreviated tokens to their full form.
// Multi-word abbreviations are tried before single tokens.
func expandAbbreviations(s string, table map[string]string) string {
	if len(table) == 0 || s == "" {
		return s
	}
	tokens := strings.Split(s, " ")

	maxWords := 1
	for abbr := range table {
		if n := strings.Count(abbr, " ") + 1; n > maxWords {
			maxWords = n
		}
	}

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		replaced := false
		for n := maxWords; n >= 1; n-- {
			if i+n > len(tokens) {
				continue
			}
			candidate := strings.TrimSuffix(strings.Join(tokens[i:i+n], " "), ".")
			if full, ok := table[candidate]; ok {
				out = append(out, full)
				i += n
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, tokens[i])
			i++
		}
	}
	return strings.Join(out, " ")
}
