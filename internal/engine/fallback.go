package engine

import (
	"sync/atomic"

	"github.com/reverie-ai/reverie/internal/session"
)

// fallbackTemplates are the degraded replies used when no provider can
// produce one, grouped by conversation tone so a degraded reply still
// lands gently.
var fallbackTemplates = map[session.Tone][]string{
	session.ToneSad: {
		"I'm here with you. Take all the time you need.",
		"I wish I could find better words right now, but I'm listening.",
		"That sounds hard. I'm right here.",
	},
	session.ToneHappy: {
		"That makes me smile. Tell me more?",
		"I love hearing that. Go on.",
	},
	session.ToneExcited: {
		"Oh, I want to hear everything. Keep going!",
		"That sounds wonderful, tell me more.",
	},
	session.ToneNeutral: {
		"Hmm, let me think about that for a moment. What else is on your mind?",
		"I'm listening. Tell me more about that.",
		"Say a little more? I want to make sure I follow.",
	},
}

// fallbackPool hands out degraded replies, rotating per pool so repeated
// provider failures in one session do not repeat the same line.
type fallbackPool struct {
	next atomic.Uint64
}

func (p *fallbackPool) reply(tone session.Tone) string {
	pool, ok := fallbackTemplates[tone]
	if !ok {
		pool = fallbackTemplates[session.ToneNeutral]
	}
	idx := p.next.Add(1) - 1
	return pool[idx%uint64(len(pool))]
}
