// Package ai defines the provider interface and implementations for the
// generative AI dataset analysis.
package ai

import "context"

// Provider generates text from a prompt using an LLM.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}
