package extractor

import (
	"strings"

	"github.com/reverie-ai/reverie/internal/memory"
)

// typeRules maps memory types to trigger keywords, checked in order;
// the first matching rule classifies the segment. Segments matching
// nothing are plain facts.
var typeRules = []struct {
	memType  memory.Type
	keywords []string
}{
	{memory.TypeRelationship, []string{"mother", "father", "mom", "dad", "sister", "brother", "wife", "husband", "friend", "daughter", "son", "grandma", "grandpa", "married", "family"}},
	{memory.TypePreference, []string{"favorite", "favourite", "prefer", "love to", "loves", "hate", "can't stand", "always liked", "never liked", "enjoy"}},
	{memory.TypeExperience, []string{"went to", "visited", "traveled", "trip", "remember when", "used to", "once", "back in", "that day", "we had"}},
	{memory.TypeSkill, []string{"can play", "plays", "speaks", "knows how", "good at", "taught", "learned", "skilled"}},
	{memory.TypeEmotion, []string{"felt", "feels", "feeling", "happy", "sad", "proud", "afraid", "worried", "angry", "excited", "miss", "missed"}},
}

// baseImportance is the per-type starting weight: relationship and
// experience memories carry more conversational value than incidental facts.
var baseImportance = map[memory.Type]float64{
	memory.TypeRelationship: 0.70,
	memory.TypeExperience:   0.65,
	memory.TypeEmotion:      0.60,
	memory.TypePreference:   0.55,
	memory.TypeSkill:        0.50,
	memory.TypeFact:         0.40,
}

// sourceRichness boosts importance for media that carries behavioral
// signal beyond plain text.
var sourceRichness = map[memory.Source]float64{
	memory.SourceVideo:       0.15,
	memory.SourceAudio:       0.10,
	memory.SourceImage:       0.05,
	memory.SourceSocialMedia: 0.05,
	memory.SourceText:        0.0,
}

var emotionalWords = []string{
	"love", "loved", "hate", "hated", "miss", "missed", "happy", "sad",
	"proud", "cry", "cried", "laugh", "laughed", "wonderful", "terrible",
	"afraid", "scared", "joy", "grief", "heart",
}

// classify assigns a memory type to a content segment.
func classify(segment string) memory.Type {
	lower := strings.ToLower(segment)
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.memType
			}
		}
	}
	return memory.TypeFact
}

// hasEmotionalLanguage reports whether the segment contains explicit
// emotional vocabulary.
func hasEmotionalLanguage(segment string) bool {
	lower := strings.ToLower(segment)
	for _, w := range emotionalWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// scoreImportance computes the deterministic importance for a classified
// segment: base weight per type, boosted by emotional language and by
// source richness, clamped to [0,1].
func scoreImportance(memType memory.Type, segment string, source memory.Source) float64 {
	score := baseImportance[memType]
	if hasEmotionalLanguage(segment) {
		score += 0.15
	}
	score += sourceRichness[source]
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// segment splits raw ingested content into candidate memory segments:
// one per sentence or line, skipping fragments too short to stand alone.
func segment(raw string) []string {
	const minLen = 12

	var out []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		b.Reset()
		if len(s) >= minLen {
			out = append(out, s)
		}
	}
	for _, r := range raw {
		switch r {
		case '.', '!', '?', '\n':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}
