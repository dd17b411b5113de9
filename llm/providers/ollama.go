package providers

import (
	"net/http"
	"os"
	"strings"

	"github.com/intakekit/intakekit/llm"
)

// OllamaProvider implements the OpenAI-compatible API served by Ollama,
// vLLM, and similar local runtimes. Kept separate from OpenAIProvider for
// its different default URL and auth.
type OllamaProvider struct {
	OpenAIProvider // shared request/response format
}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// SetHeaders adds an Authorization header when a key is configured, for
// OpenAI-compatible gateways that require one.
func (o *OllamaProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OLLAMA_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
