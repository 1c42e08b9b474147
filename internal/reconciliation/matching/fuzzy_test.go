package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/invoice-reconciliation/internal/domain/rule"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "john smith", Normalize("  JOHN \t  Smith "))
	assert.Equal(t, "", Normalize("   "))
}

func TestLevenshteinScore(t *testing.T) {
	assert.Equal(t, 90.0, LevenshteinScore("john smith", "jon smith"))
	assert.Equal(t, 100.0, LevenshteinScore("", ""))
	assert.Equal(t, 0.0, LevenshteinScore("abc", ""))
	assert.Equal(t, 75.0, LevenshteinScore("müll", "mull"), "distance is measured in runes")
}

func TestSimilarity_LevenshteinBoundary(t *testing.T) {
	cfg := rule.FuzzyMatchConfig{Algorithms: []rule.FuzzyAlgorithm{rule.AlgorithmLevenshtein}, Threshold: 90}

	result := Similarity(cfg, "JOHN SMITH", "JON SMITH")

	assert.Equal(t, 90.0, result.Score)
	assert.True(t, result.Passed(90))
	assert.False(t, result.Passed(90.5))
	assert.Contains(t, result.Scores, rule.AlgorithmLevenshtein)
	assert.NotContains(t, result.Scores, rule.AlgorithmSoundex)
}

func TestSimilarity_CombinedIsBestScore(t *testing.T) {
	cfg := rule.FuzzyMatchConfig{
		Algorithms: []rule.FuzzyAlgorithm{rule.AlgorithmLevenshtein, rule.AlgorithmSoundex},
		Threshold:  95,
	}

	result := Similarity(cfg, "Robert", "Rupert")

	assert.Less(t, result.Scores[rule.AlgorithmLevenshtein], 95.0)
	assert.Equal(t, 100.0, result.Scores[rule.AlgorithmSoundex])
	assert.Equal(t, 100.0, result.Score)
	assert.True(t, result.Passed(cfg.Threshold))
}

func TestSimilarity_Abbreviations(t *testing.T) {
	mappings := []rule.AbbreviationMapping{
		{FullName: "Grand Hotel International", Abbreviations: []string{"GHI"}},
		{FullName: "Street", Abbreviations: []string{"St", "Str."}},
	}

	t.Run("ImpliesLevenshtein", func(t *testing.T) {
		cfg := rule.FuzzyMatchConfig{
			Algorithms:           []rule.FuzzyAlgorithm{rule.AlgorithmAbbreviations},
			Threshold:            100,
			AbbreviationMappings: mappings,
		}

		result := Similarity(cfg, "GHI", "grand hotel  international")

		assert.Equal(t, "grand hotel international", result.Left)
		assert.Equal(t, 100.0, result.Scores[rule.AlgorithmLevenshtein])
		assert.True(t, result.Passed(cfg.Threshold))
	})

	t.Run("ExpandsTokensWithTrailingDot", func(t *testing.T) {
		cfg := rule.FuzzyMatchConfig{
			Algorithms:           []rule.FuzzyAlgorithm{rule.AlgorithmLevenshtein, rule.AlgorithmAbbreviations},
			Threshold:            100,
			AbbreviationMappings: mappings,
		}

		result := Similarity(cfg, "Main St.", "Main Street")

		assert.Equal(t, "main street", result.Left)
		assert.Equal(t, 100.0, result.Score)
	})

	t.Run("DisabledLeavesTokens", func(t *testing.T) {
		cfg := rule.FuzzyMatchConfig{
			Algorithms:           []rule.FuzzyAlgorithm{rule.AlgorithmLevenshtein},
			AbbreviationMappings: mappings,
		}

		result := Similarity(cfg, "GHI", "Grand Hotel International")

		assert.Equal(t, "ghi", result.Left)
		assert.Less(t, result.Score, 50.0)
	})
}

func TestSoundex(t *testing.T) {
	tests := map[string]string{
		"Robert":   "R163",
		"Rupert":   "R163",
		"Ashcraft": "A261",
		"Tymczak":  "T522",
		"Pfister":  "P236",
		"Lee":      "L000",
	}
	for word, code := range tests {
		t.Run(word, func(t *testing.T) {
			assert.Equal(t, code, Soundex(word))
		})
	}

	assert.Equal(t, "J500 S530", Soundex("john smith"))
	assert.Equal(t, 100.0, SoundexScore("john smith", "jon smyth"))
	assert.Equal(t, 0.0, SoundexScore("john smith", "jane doe"))
}

func TestJaroWinkler(t *testing.T) {
	assert.InDelta(t, 0.9611, JaroWinkler("MARTHA", "MARHTA"), 0.0001)
	assert.InDelta(t, 0.8133, JaroWinkler("DIXON", "DICKSONX"), 0.0001)
	assert.Equal(t, 1.0, JaroWinkler("same", "same"))
	assert.Equal(t, 0.0, JaroWinkler("abc", ""))
}
