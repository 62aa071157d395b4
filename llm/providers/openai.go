package providers

import (
	"net/http"
	"os"

	"github.com/magicfolder/brain/llm"
)

// OpenAIProvider implements the OpenAI API for direct OpenAI or OpenRouter
// usage. Separate from OllamaProvider to allow different default URLs and
// to make credentials mandatory.
type OpenAIProvider struct {
	OllamaProvider // Embed for shared request/response format
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// Available reports whether an API key is configured.
func (o *OpenAIProvider) Available() bool {
	return os.Getenv("OPENAI_API_KEY") != ""
}

// BuildURL constructs the OpenAI API endpoint.
func (o *OpenAIProvider) BuildURL(baseURL, model string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return o.OllamaProvider.BuildURL(baseURL, model)
}

// BuildEmbedURL constructs the OpenAI embeddings endpoint.
func (o *OpenAIProvider) BuildEmbedURL(baseURL, model string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return o.OllamaProvider.BuildEmbedURL(baseURL, model)
}

// SetHeaders adds OpenAI authentication headers.
func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	// Support OpenRouter
	if siteURL := os.Getenv("OPENROUTER_SITE_URL"); siteURL != "" {
		req.Header.Set("HTTP-Referer", siteURL)
	}
	if siteName := os.Getenv("OPENROUTER_SITE_NAME"); siteName != "" {
		req.Header.Set("X-Title", siteName)
	}
}
