package tagging

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// The tagging model is instructed to only ever emit values from this
// controlled vocabulary. The instruction is not enforced provider-side,
// so every emitted value is normalized back against these sets and
// anything unrecognizable is dropped.
type Category string

const (
	Genre           Category = "genre"
	Mood            Category = "mood"
	Occasion        Category = "occasion"
	Era             Category = "era"
	Language        Category = "language"
	VocalInstrument Category = "vocal_instrument"
)

// CategoryOrder is the order in which per-category values are flattened
// in to a song's tag sequence. Language is deliberately absent: it is
// carried as a top-level field on the tag result instead.
var CategoryOrder = []Category{Genre, Mood, Occasion, Era, VocalInstrument}

var vocabulary = map[Category][]string{
	Genre: {
		"pop", "rock", "hip-hop", "rap", "r&b", "electronic", "dance",
		"classical", "jazz", "folk", "country", "indie", "metal",
		"devotional", "ghazal", "sufi", "lo-fi",
	},
	Mood: {
		"happy", "sad", "romantic", "energetic", "calm", "nostalgic",
		"uplifting", "melancholic", "angry", "dreamy",
	},
	Occasion: {
		"party", "wedding", "workout", "travel", "festival", "study",
		"sleep", "driving", "breakup",
	},
	Era: {
		"1960s", "1970s", "1980s", "1990s", "2000s", "2010s", "2020s",
	},
	Language: {
		"english", "hindi", "punjabi", "tamil", "telugu", "spanish",
		"korean", "japanese", "french",
	},
	VocalInstrument: {
		"male vocals", "female vocals", "duet", "instrumental",
		"acoustic", "guitar", "piano", "violin", "flute", "drums",
	},
}

// similarityThreshold is the minimum string similarity for a non-exact
// model-emitted value to be accepted as one of the vocabulary values.
// Catches casing/pluralization slips without admitting novel tags.
const similarityThreshold = 0.9

// Values returns the closed set of allowed values for the category provided.
func Values(category Category) []string {
	return vocabulary[category]
}

// normalizeValue maps a model-emitted value on to the vocabulary for the
// category provided. An exact (case-insensitive) match wins; failing that,
// the most similar vocabulary value above the similarity threshold is
// used. The second return is false if the value matches nothing.
func normalizeValue(category Category, value string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	if cleaned == "" {
		return "", false
	}

	for _, allowed := range vocabulary[category] {
		if cleaned == allowed {
			return allowed, true
		}
	}

	metric := &metrics.Levenshtein{CaseSensitive: false, InsertCost: 1, ReplaceCost: 1, DeleteCost: 1}
	bestValue, bestScore := "", 0.0
	for _, allowed := range vocabulary[category] {
		if score := strutil.Similarity(cleaned, allowed, metric); score > bestScore {
			bestValue, bestScore = allowed, score
		}
	}

	if bestScore >= similarityThreshold {
		return bestValue, true
	}

	return "", false
}

// normalizeValues applies normalizeValue over a slice, dropping values
// that match nothing and de-duplicating the survivors in order.
func normalizeValues(category Category, values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		normalized, ok := normalizeValue(category, value)
		if !ok || seen[normalized] {
			continue
		}

		seen[normalized] = true
		out = append(out, normalized)
	}

	return out
}
