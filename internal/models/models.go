package models

const (
	// DefaultMaxTokens caps every completion request.
	DefaultMaxTokens = 256

	// DefaultOpenAITemperature is the fixed sampling temperature sent to OpenAI.
	DefaultOpenAITemperature = 0.0

	// DefaultTextSynthTopK is the fixed top_k sent to TextSynth.
	DefaultTextSynthTopK = 1
)

// Provider tags as they appear in the first token segment.
const (
	TagOpenAI    = "openai"
	TagTextSynth = "textsynth"
)

// Question is the caller's free-text question paired with its credential token.
type Question struct {
	Text  string
	Token string
}

// NewQuestion constructs a Question value.
func NewQuestion(text, token string) Question {
	return Question{Text: text, Token: token}
}

// Provider is a sealed tagged variant over the supported completion backends.
// The only implementations are OpenAI and TextSynth.
type Provider interface {
	Tag() string
	sealed()
}

// OpenAI selects an OpenAI-compatible backend.
type OpenAI struct {
	Temperature float64
}

// NewOpenAI returns the OpenAI variant with its fixed tuning defaults.
func NewOpenAI() OpenAI {
	return OpenAI{Temperature: DefaultOpenAITemperature}
}

func (OpenAI) Tag() string { return TagOpenAI }
func (OpenAI) sealed()     {}

// TextSynth selects a TextSynth-compatible backend.
type TextSynth struct {
	TopK int
}

// NewTextSynth returns the TextSynth variant with its fixed tuning defaults.
func NewTextSynth() TextSynth {
	return TextSynth{TopK: DefaultTextSynthTopK}
}

func (TextSynth) Tag() string { return TagTextSynth }
func (TextSynth) sealed()     {}

// Completion fully describes one outbound provider call.
type Completion struct {
	Provider  Provider
	Engine    string
	MaxTokens int
	Stop      string
	Prompt    string
	Secret    string
}
