package domain

// KeyPrefix namespaces every key the service writes to the store.
const KeyPrefix = "llmrank:"

// GenerationConfig holds the fixed generation parameters sent with every prompt.
type GenerationConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// DefaultGenerationConfig returns parameters tuned for short numeric answers.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Model:       "llama3.1:8b",
		Temperature: 0,
		MaxTokens:   16,
	}
}

// Request builds a CompletionRequest for prompt using these parameters.
func (g GenerationConfig) Request(prompt string) CompletionRequest {
	return CompletionRequest{
		Prompt:      prompt,
		Model:       g.Model,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
	}
}
