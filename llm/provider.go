package llm

import (
	"net/http"
	"sync"
)

// Provider defines the interface for LLM provider implementations.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string

	// Available reports whether the provider holds the credentials it
	// needs. Providers without credentials are skipped, not errors.
	Available() bool

	// BuildURL constructs the full completion endpoint URL.
	BuildURL(baseURL, model string) string

	// SetHeaders adds provider-specific headers to the request.
	SetHeaders(req *http.Request)

	// BuildRequestBody creates the JSON request body for the provider.
	// temperature is nil to use the provider default.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the response from provider-specific JSON.
	ParseResponse(body []byte, model string) (*Response, error)
}

// EmbeddingProvider is implemented by providers that expose an embedding API.
type EmbeddingProvider interface {
	// BuildEmbedURL constructs the embedding endpoint URL.
	BuildEmbedURL(baseURL, model string) string

	// BuildEmbedRequestBody creates the JSON embedding request body.
	// dimension is 0 to use the provider default.
	BuildEmbedRequestBody(model, text string, dimension int) ([]byte, error)

	// ParseEmbedResponse extracts the embedding vector.
	ParseEmbedResponse(body []byte) ([]float32, error)
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}
