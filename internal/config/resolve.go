package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kailas-cloud/llmrank/internal/domain"
)

// LocalBaseURL is the Ollama OpenAI-compatible endpoint tried last.
const LocalBaseURL = "http://localhost:11434/v1"

// Default models per provider family when none is configured.
const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultLocalModel  = "llama3.1:8b"
)

// Backend is a resolved backend: where to send prompts and which model to ask.
type Backend struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	// Source names the provider in the chain that produced this backend.
	Source string
}

// Getenv looks up an environment variable. os.Getenv in production.
type Getenv func(key string) string

// BackendProvider yields a backend from one configuration source, or false
// when that source has nothing to offer.
type BackendProvider struct {
	Name    string
	Resolve func(cfg BackendConfig, getenv Getenv) (Backend, bool)
}

// BackendChain is the resolution order: explicit config, LLMRANK_*,
// OPENAI_*, OLLAMA_HOST, then the local fallback.
var BackendChain = []BackendProvider{
	{Name: "config", Resolve: fromConfig},
	{Name: "env:LLMRANK", Resolve: fromLLMRankEnv},
	{Name: "env:OPENAI", Resolve: fromOpenAIEnv},
	{Name: "env:OLLAMA_HOST", Resolve: fromOllamaEnv},
	{Name: "local", Resolve: fromLocal},
}

// ResolveBackend walks BackendChain with the process environment.
func ResolveBackend(cfg BackendConfig) (Backend, error) {
	return ResolveBackendWith(cfg, os.Getenv, BackendChain)
}

// ResolveBackendWith returns the first backend any provider in chain yields.
// A model set in cfg overrides the provider's default.
func ResolveBackendWith(cfg BackendConfig, getenv Getenv, chain []BackendProvider) (Backend, error) {
	for _, p := range chain {
		b, ok := p.Resolve(cfg, getenv)
		if !ok {
			continue
		}
		if cfg.Model != "" {
			b.Model = cfg.Model
		}
		b.Source = p.Name
		return b, nil
	}
	return Backend{}, domain.ErrNoBackend
}

func fromConfig(cfg BackendConfig, _ Getenv) (Backend, bool) {
	if cfg.BaseURL == "" && cfg.APIKey == "" {
		return Backend{}, false
	}
	b := Backend{Provider: cfg.Provider, BaseURL: cfg.BaseURL, APIKey: cfg.APIKey}
	if b.Provider == "" {
		b.Provider = "openai"
	}
	if b.BaseURL == "" {
		b.Model = DefaultOpenAIModel
	} else {
		b.Model = DefaultLocalModel
	}
	return b, true
}

func fromLLMRankEnv(_ BackendConfig, getenv Getenv) (Backend, bool) {
	base, key := getenv("LLMRANK_BASE_URL"), getenv("LLMRANK_API_KEY")
	if base == "" && key == "" {
		return Backend{}, false
	}
	model := getenv("LLMRANK_MODEL")
	if model == "" {
		model = DefaultLocalModel
		if base == "" {
			model = DefaultOpenAIModel
		}
	}
	return Backend{Provider: "llmrank", BaseURL: base, APIKey: key, Model: model}, true
}

func fromOpenAIEnv(_ BackendConfig, getenv Getenv) (Backend, bool) {
	key := getenv("OPENAI_API_KEY")
	if key == "" {
		return Backend{}, false
	}
	return Backend{
		Provider: "openai",
		BaseURL:  getenv("OPENAI_BASE_URL"),
		APIKey:   key,
		Model:    DefaultOpenAIModel,
	}, true
}

func fromOllamaEnv(_ BackendConfig, getenv Getenv) (Backend, bool) {
	host := getenv("OLLAMA_HOST")
	if host == "" {
		return Backend{}, false
	}
	base, err := ollamaBaseURL(host)
	if err != nil {
		return Backend{}, false
	}
	return Backend{Provider: "ollama", BaseURL: base, Model: DefaultLocalModel}, true
}

func fromLocal(cfg BackendConfig, _ Getenv) (Backend, bool) {
	if cfg.DisableLocalFallback {
		return Backend{}, false
	}
	return Backend{Provider: "ollama", BaseURL: LocalBaseURL, Model: DefaultLocalModel}, true
}

// ollamaBaseURL turns an OLLAMA_HOST value ("host:port", "http://host" ...)
// into its OpenAI-compatible base URL.
func ollamaBaseURL(host string) (string, error) {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid OLLAMA_HOST %q", host)
	}
	if u.Port() == "" && u.Scheme == "http" {
		u.Host += ":11434"
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/v1") {
		u.Path += "/v1"
	}
	return u.String(), nil
}
