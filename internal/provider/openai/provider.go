package openai

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

// DefaultBaseURL is the public OpenAI API host.
const DefaultBaseURL = "https://api.openai.com"

const (
	choicesPath = "choices"
	answerPath  = "0.text"
)

// Provider adapts completions to the OpenAI engines API.
type Provider struct {
	baseURL string
}

// New creates an OpenAI adapter. An empty baseURL selects DefaultBaseURL.
func New(baseURL string) (*Provider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("openai base url %q: %w", baseURL, err)
	}
	return &Provider{baseURL: baseURL}, nil
}

func (p *Provider) Name() string {
	return models.TagOpenAI
}

type completionPayload struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Stop        string  `json:"stop"`
	Prompt      string  `json:"prompt"`
}

// BuildRequest returns the engine endpoint and JSON body for c.
func (p *Provider) BuildRequest(c models.Completion) (string, []byte, error) {
	tuning, ok := c.Provider.(models.OpenAI)
	if !ok {
		return "", nil, fmt.Errorf("openai adapter received %T completion", c.Provider)
	}
	if c.Engine == "" {
		return "", nil, errors.New("engine must not be empty")
	}

	body, err := json.Marshal(completionPayload{
		MaxTokens:   c.MaxTokens,
		Temperature: tuning.Temperature,
		Stop:        c.Stop,
		Prompt:      c.Prompt,
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/engines/%s/completion", p.baseURL, url.PathEscape(c.Engine))
	return endpoint, body, nil
}

// ExtractAnswer reads choices[0].text. choices must be an array.
func (p *Provider) ExtractAnswer(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", provider.NewParseError(p.Name(), body)
	}
	choices := gjson.GetBytes(body, choicesPath)
	if !choices.IsArray() {
		return "", provider.NewParseError(p.Name(), body)
	}
	answer := choices.Get(answerPath)
	if answer.Type != gjson.String {
		return "", provider.NewParseError(p.Name(), body)
	}
	return answer.Str, nil
}
