package backend

// APIConfig identifies the model-serving endpoint an agent talks to.
type APIConfig struct {
	// Endpoint is the URL of the model backend for this agent.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Model is the backend-specific model identifier.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// AuthToken is sent as a bearer token when non-empty.
	AuthToken string `json:"authToken,omitempty" yaml:"authToken,omitempty"`
}

// GenerationConfig carries per-call sampling parameters.
type GenerationConfig struct {
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        float64 `json:"topP,omitempty" yaml:"topP,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
}

// Request is a single model-call request.
type Request struct {
	SystemPrompt string           `json:"systemPrompt,omitempty"`
	UserPrompt   string           `json:"userPrompt"`
	API          APIConfig        `json:"api"`
	Generation   GenerationConfig `json:"generation,omitempty"`
}

// Response is the result of a successful model call.
type Response struct {
	Content string `json:"content"`
	ModelID string `json:"modelId,omitempty"`

	// PromptTokens and ResponseTokens are zero when the backend does not
	// report exact counts; callers fall back to a length heuristic.
	PromptTokens   int `json:"promptTokens,omitempty"`
	ResponseTokens int `json:"responseTokens,omitempty"`
}
