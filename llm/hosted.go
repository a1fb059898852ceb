package llm

// Every provider below speaks the OpenAI-compatible API; they differ only in
// default endpoint, default model and path prefix.

// lmStudioProvider serves models from a local LM Studio instance.
type lmStudioProvider struct{ openAICompatProvider }

// NewLMStudio creates a provider for LM Studio.
func NewLMStudio(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:1234"
	}
	return &lmStudioProvider{openAICompatProvider{base: newOpenAICompatClient(cfg)}}
}

// openRouterProvider routes requests through OpenRouter.
type openRouterProvider struct{ openAICompatProvider }

// NewOpenRouter creates a provider for OpenRouter.
func NewOpenRouter(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api"
	}
	return &openRouterProvider{openAICompatProvider{base: newOpenAICompatClient(cfg)}}
}

// openAIProvider implements Provider for the OpenAI API.
//
// API key: set via config, OPENAI_API_KEY env var, or LAWQA_CHAT_API_KEY.
type openAIProvider struct{ openAICompatProvider }

// NewOpenAI creates a provider for OpenAI.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &openAIProvider{openAICompatProvider{base: newOpenAICompatClient(cfg)}}
}

// groqProvider implements Provider for Groq's inference API.
//
// API key: set via config, GROQ_API_KEY env var, or LAWQA_CHAT_API_KEY.
type groqProvider struct{ openAICompatProvider }

// NewGroq creates a provider for Groq.
func NewGroq(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	return &groqProvider{openAICompatProvider{base: newOpenAICompatClient(cfg)}}
}

// geminiProvider uses Gemini's OpenAI-compatible endpoint, which has no /v1
// path prefix.
type geminiProvider struct{ openAICompatProvider }

// NewGemini creates a provider for Google Gemini.
func NewGemini(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	return &geminiProvider{openAICompatProvider{base: newOpenAICompatClientPrefix(cfg, "")}}
}
