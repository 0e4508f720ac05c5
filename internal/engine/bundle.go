package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reverie-ai/reverie/internal/memory"
	"github.com/reverie-ai/reverie/internal/persona"
	"github.com/reverie-ai/reverie/internal/session"
)

// defaultBundleBudget caps the assembled prompt size in characters.
// Memories are dropped lowest-ranked-first, then oldest turns, until the
// bundle fits.
const defaultBundleBudget = 6000

// buildSystemPrompt renders the persona identity, the retrieved memories
// and the current conversational state into the system prompt.
func buildSystemPrompt(profile *persona.Profile, memories []*memory.Memory, topic string, tone session.Tone, budget int) string {
	if budget <= 0 {
		budget = defaultBundleBudget
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, speaking with someone who was your %s.\n", profile.Name, profile.Relationship)
	if profile.SpeakingStyle != "" {
		fmt.Fprintf(&b, "Speaking style: %s\n", profile.SpeakingStyle)
	}
	if len(profile.Traits) > 0 {
		names := make([]string, 0, len(profile.Traits))
		for name := range profile.Traits {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s (%.1f)", name, profile.Traits[name]))
		}
		fmt.Fprintf(&b, "Personality traits: %s\n", strings.Join(parts, ", "))
	}
	if profile.Backstory != "" {
		fmt.Fprintf(&b, "Background: %s\n", profile.Backstory)
	}

	fmt.Fprintf(&b, "\nThe conversation topic is %s and the emotional tone is %s. Match that tone.\n", topic, string(tone))
	b.WriteString("Stay in character. Speak naturally and briefly, as in a spoken conversation. Never mention being an AI or a simulation.\n")

	if len(memories) > 0 {
		b.WriteString("\nThings you remember:\n")
		for _, m := range memories {
			line := fmt.Sprintf("- [%s] %s\n", m.Type, m.Content)
			if b.Len()+len(line) > budget {
				break
			}
			b.WriteString(line)
		}
	}
	return b.String()
}

// trimTurns drops the oldest turns until the transcript fits the
// remaining budget. Turns are never reordered.
func trimTurns(turns []session.Turn, budget int) []session.Turn {
	if budget <= 0 {
		return nil
	}
	total := 0
	for _, t := range turns {
		total += len(t.Text)
	}
	for len(turns) > 0 && total > budget {
		total -= len(turns[0].Text)
		turns = turns[1:]
	}
	return turns
}
