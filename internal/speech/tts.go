// Package speech turns generated reply text into audio via an external
// text-to-speech service. Synthesis is best-effort: a failure never
// blocks or degrades the text reply.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Synthesizer produces an audio reference for reply text spoken in the
// persona's voice at the given pace multiplier.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, pace float64) (string, error)
}

// Config holds TTS service settings.
type Config struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Timeout  int    `json:"timeout_seconds"`
}

// HTTPSynthesizer speaks to an HTTP TTS service that accepts a JSON
// synthesis request and returns a URL for the rendered audio.
type HTTPSynthesizer struct {
	cfg    Config
	client *http.Client
}

// NewHTTPSynthesizer creates a synthesizer for the configured endpoint.
func NewHTTPSynthesizer(cfg Config) *HTTPSynthesizer {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
}

type synthesizeResponse struct {
	AudioURL string `json:"audio_url"`
}

// Synthesize renders text to speech and returns the audio URL.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, voiceID string, pace float64) (string, error) {
	if pace <= 0 {
		pace = 1.0
	}
	body, err := json.Marshal(synthesizeRequest{Text: text, VoiceID: voiceID, Speed: pace})
	if err != nil {
		return "", fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("synthesis service returned %d: %s", resp.StatusCode, string(data))
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode synthesis response: %w", err)
	}
	if out.AudioURL == "" {
		return "", fmt.Errorf("synthesis response missing audio url")
	}
	return out.AudioURL, nil
}
