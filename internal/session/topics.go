package session

import "strings"

// topicCategories maps topic labels to trigger keywords. Matching is a
// keyword/category scan over the recent turn window, weighted toward the
// newest turns. Order matters: earlier categories win score ties.
var topicCategories = []struct {
	label    string
	keywords []string
}{
	{"family", []string{"mom", "mother", "dad", "father", "sister", "brother", "son", "daughter", "grandma", "grandpa", "family", "cousin", "aunt", "uncle"}},
	{"relationships", []string{"friend", "love", "wedding", "married", "marriage", "date", "partner", "relationship"}},
	{"reminiscence", []string{"remember", "memory", "memories", "back then", "used to", "childhood", "years ago", "old days"}},
	{"travel", []string{"trip", "travel", "vacation", "visit", "flight", "beach", "lake", "mountain", "hotel", "abroad"}},
	{"work", []string{"work", "job", "office", "boss", "project", "meeting", "career", "colleague", "business"}},
	{"food", []string{"dinner", "lunch", "breakfast", "cook", "cooking", "recipe", "restaurant", "food", "meal", "bake"}},
	{"health", []string{"doctor", "hospital", "sick", "health", "medicine", "pain", "tired", "sleep"}},
	{"hobbies", []string{"music", "guitar", "piano", "paint", "garden", "fishing", "read", "reading", "movie", "game", "sport"}},
}

// toneLexicon maps tones to emotional trigger words, in tie-break order.
var toneLexicon = []struct {
	tone  Tone
	words []string
}{
	{ToneSad, []string{"sad", "miss", "lonely", "cry", "lost", "grief", "hurt", "sorry", "gone"}},
	{ToneHappy, []string{"happy", "glad", "great", "wonderful", "love", "laugh", "smile", "joy", "fun"}},
	{ToneExcited, []string{"excited", "amazing", "awesome", "incredible", "wow", "can't wait", "fantastic"}},
	{ToneAngry, []string{"angry", "mad", "furious", "hate", "annoyed", "unfair"}},
	{ToneCalm, []string{"calm", "peaceful", "relaxed", "quiet", "fine", "okay"}},
}

// inferTopic scores each category against the recent turns, weighting the
// most recent turns highest, and returns the best label or DefaultTopic.
func inferTopic(turns []Turn) string {
	if len(turns) == 0 {
		return DefaultTopic
	}

	best, bestScore := DefaultTopic, 0.0
	for _, cat := range topicCategories {
		var score float64
		for i, turn := range turns {
			// Recency weight: newest turn counts full, older turns decay.
			weight := float64(i+1) / float64(len(turns))
			text := strings.ToLower(turn.Text)
			for _, kw := range cat.keywords {
				if strings.Contains(text, kw) {
					score += weight
				}
			}
		}
		if score > bestScore {
			best, bestScore = cat.label, score
		}
	}
	return best
}

// ClassifyTone picks the tone whose lexicon matches the text most often.
// Returns ok=false when no emotional language is present.
func ClassifyTone(text string) (Tone, bool) {
	lower := strings.ToLower(text)
	best, bestHits := ToneNeutral, 0
	for _, entry := range toneLexicon {
		hits := 0
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = entry.tone, hits
		}
	}
	return best, bestHits > 0
}
