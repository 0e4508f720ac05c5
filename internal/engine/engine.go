// Package engine produces persona replies for finalized user turns. It
// bundles the persona profile, retrieved memories and the rolling
// conversation state into a provider request, degrades to canned replies
// when no provider can answer, and honors barge-in: a reply superseded
// by a newer turn is discarded and never enters the conversation.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reverie-ai/reverie/internal/memory"
	"github.com/reverie-ai/reverie/internal/persona"
	"github.com/reverie-ai/reverie/internal/provider"
	"github.com/reverie-ai/reverie/internal/session"
	"github.com/reverie-ai/reverie/internal/speech"
)

// Config tunes retrieval and generation.
type Config struct {
	RetrievalThreshold float64       `json:"retrieval_threshold"`
	RetrievalLimit     int           `json:"retrieval_limit"`
	GenerationTimeout  time.Duration `json:"-"`
	Model              string        `json:"model"`
	Temperature        float64       `json:"temperature"`
	MaxTokens          int           `json:"max_tokens"`
	BundleBudget       int           `json:"bundle_budget"`
}

func (c Config) withDefaults() Config {
	if c.RetrievalThreshold == 0 {
		c.RetrievalThreshold = 0.7
	}
	if c.RetrievalLimit <= 0 {
		c.RetrievalLimit = 10
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 10 * time.Second
	}
	if c.Temperature == 0 {
		c.Temperature = 0.8
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 300
	}
	if c.BundleBudget <= 0 {
		c.BundleBudget = defaultBundleBudget
	}
	return c
}

// Engine is the contextual response generator. It implements
// session.ReplyGenerator.
type Engine struct {
	store    *memory.Store
	router   *provider.Router
	synth    speech.Synthesizer
	cfg      Config
	fallback fallbackPool
	logger   *zap.Logger
}

// NewEngine creates a response engine. synth may be nil to disable
// speech synthesis.
func NewEngine(store *memory.Store, router *provider.Router, synth speech.Synthesizer, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		router: router,
		synth:  synth,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// GenerateReply produces the persona's reply to a finalized utterance.
// Beginning a reply cancels any generation still pending on the session;
// a reply that is itself superseded before completion returns
// session.ErrSuperseded and leaves the conversation window untouched.
func (e *Engine) GenerateReply(ctx context.Context, sess *session.Session, profile *persona.Profile, utterance string) (*session.Response, error) {
	h := sess.BeginGeneration(ctx)
	sess.Tracker.SetResponding(true)

	convCtx := sess.Context()
	topic, tone := convCtx.Topic(), convCtx.Tone()

	memories := e.retrieve(h.Ctx, profile.ID, utterance)
	system := buildSystemPrompt(profile, memories, topic, tone, e.cfg.BundleBudget)
	turns := trimTurns(convCtx.RecentTurns(), e.cfg.BundleBudget)

	resp := e.generate(h, profile, system, turns, tone)
	if resp == nil {
		return nil, session.ErrSuperseded
	}

	if e.synth != nil && sess.StillCurrent(h) {
		audio, err := e.synth.Synthesize(h.Ctx, resp.Text, profile.VoiceID, convCtx.SpeakingPace())
		if err != nil {
			e.logger.Warn("speech synthesis failed",
				zap.String("session", sess.ID), zap.Error(err))
		} else {
			resp.AudioRef = audio
		}
	}

	if !sess.FinishGeneration(h) {
		return nil, session.ErrSuperseded
	}
	sess.Tracker.AppendPersonaTurn(resp.Text, resp.Emotion)

	e.logger.Info("reply generated",
		zap.String("session", sess.ID),
		zap.String("persona", profile.ID),
		zap.String("topic", topic),
		zap.Bool("degraded", resp.Degraded),
		zap.Int("memories", len(memories)))
	return resp, nil
}

// retrieve returns the memories most relevant to the utterance. Every
// failure narrows the result rather than failing the reply: no embedding
// or no similar memories falls back to the persona's most important
// memories, and an unavailable store yields an empty context.
func (e *Engine) retrieve(ctx context.Context, personaID, utterance string) []*memory.Memory {
	vec, err := e.store.Embed(ctx, utterance)
	if err != nil {
		e.logger.Warn("query embedding failed, using top importance",
			zap.String("persona", personaID), zap.Error(err))
		return e.topImportant(ctx, personaID)
	}

	scored, err := e.store.Query(ctx, personaID, vec, memory.QueryOptions{
		Threshold: e.cfg.RetrievalThreshold,
		Limit:     e.cfg.RetrievalLimit,
	})
	if err != nil {
		e.logger.Warn("memory query failed, using top importance",
			zap.String("persona", personaID), zap.Error(err))
		return e.topImportant(ctx, personaID)
	}
	if len(scored) == 0 {
		return e.topImportant(ctx, personaID)
	}

	out := make([]*memory.Memory, len(scored))
	for i, s := range scored {
		out[i] = s.Memory
	}
	return out
}

func (e *Engine) topImportant(ctx context.Context, personaID string) []*memory.Memory {
	mems, err := e.store.TopImportant(ctx, personaID, e.cfg.RetrievalLimit)
	if err != nil {
		e.logger.Warn("top importance retrieval failed, replying without memories",
			zap.String("persona", personaID), zap.Error(err))
		return nil
	}
	return mems
}

// generate runs the provider call under the generation timeout. A nil
// return means the generation was superseded; any other failure yields a
// degraded reply.
func (e *Engine) generate(h *session.GenerationHandle, profile *persona.Profile, system string, turns []session.Turn, tone session.Tone) *session.Response {
	messages := make([]provider.Message, 0, len(turns)+1)
	messages = append(messages, provider.Message{Role: "system", Content: system})
	for _, t := range turns {
		role := "user"
		if t.Speaker == session.SpeakerPersona {
			role = "assistant"
		}
		messages = append(messages, provider.Message{Role: role, Content: t.Text})
	}

	genCtx, cancel := context.WithTimeout(h.Ctx, e.cfg.GenerationTimeout)
	defer cancel()

	chat, err := e.router.Route(genCtx, profile.ID, &provider.ChatRequest{
		Model:       e.cfg.Model,
		Messages:    messages,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		if h.Ctx.Err() != nil {
			// Cancelled by a newer turn, not by the timeout.
			return nil
		}
		e.logger.Warn("provider generation failed, degrading",
			zap.String("persona", profile.ID), zap.Error(err))
		return &session.Response{
			Text:       e.fallback.reply(tone),
			Emotion:    tone,
			Confidence: 0.3,
			Degraded:   true,
			CreatedAt:  time.Now(),
		}
	}

	emotion := tone
	if t, ok := session.ClassifyTone(chat.Content); ok {
		emotion = t
	}
	return &session.Response{
		Text:       chat.Content,
		Emotion:    emotion,
		Confidence: 0.9,
		CreatedAt:  time.Now(),
	}
}
