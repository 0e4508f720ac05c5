// Package embedding turns text into fixed-length vectors via an external
// embedding service. The engine, extractor and memory store all consume
// the Provider interface; two implementations are provided, one for
// OpenAI-compatible APIs and one for local Ollama endpoints.
package embedding

import "context"

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "api" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}
