package textsynth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"neural-how/internal/models"
	"neural-how/internal/provider"
)

// DefaultBaseURL is the public TextSynth API host.
const DefaultBaseURL = "https://api.textsynth.com"

const answerPath = "text"

// Provider adapts completions to the TextSynth engines API.
type Provider struct {
	baseURL string
}

// New creates a TextSynth adapter. An empty baseURL selects DefaultBaseURL.
func New(baseURL string) (*Provider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("textsynth base url %q: %w", baseURL, err)
	}
	return &Provider{baseURL: baseURL}, nil
}

func (p *Provider) Name() string {
	return models.TagTextSynth
}

type completionPayload struct {
	MaxTokens int    `json:"max_tokens"`
	TopK      int    `json:"top_k"`
	Stop      string `json:"stop"`
	Prompt    string `json:"prompt"`
}

func (p *Provider) BuildRequest(c models.Completion) (string, []byte, error) {
	tuning, ok := c.Provider.(models.TextSynth)
	if !ok {
		return "", nil, fmt.Errorf("textsynth adapter received %T completion", c.Provider)
	}
	if c.Engine == "" {
		return "", nil, errors.New("engine must not be empty")
	}

	body, err := json.Marshal(completionPayload{
		MaxTokens: c.MaxTokens,
		TopK:      tuning.TopK,
		Stop:      c.Stop,
		Prompt:    c.Prompt,
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/engines/%s/completions", p.baseURL, url.PathEscape(c.Engine))
	return endpoint, body, nil
}

func (p *Provider) ExtractAnswer(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", provider.NewParseError(p.Name(), body)
	}
	answer := gjson.GetBytes(body, answerPath)
	if answer.Type != gjson.String {
		return "", provider.NewParseError(p.Name(), body)
	}
	return answer.Str, nil
}
