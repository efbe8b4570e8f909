package openai

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neural-how/internal/models"
	"neural-how/internal/provider"
)

func TestProvider_ImplementsAdapter(t *testing.T) {
	var _ provider.Adapter = (*Provider)(nil)
}

func TestNew_DefaultBaseURL(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, p.baseURL)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}

func TestBuildRequest(t *testing.T) {
	p, err := New("https://api.openai.com/")
	require.NoError(t, err)

	endpoint, body, err := p.BuildRequest(models.Completion{
		Provider:  models.NewOpenAI(),
		Engine:    "text-davinci-003",
		MaxTokens: 256,
		Stop:      "\n```",
		Prompt:    "how list files\nA:\n```bash\n",
		Secret:    "sk-XYZ",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1/engines/text-davinci-003/completion", endpoint)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, map[string]any{
		"max_tokens":  float64(256),
		"temperature": float64(0),
		"stop":        "\n```",
		"prompt":      "how list files\nA:\n```bash\n",
	}, got)
	assert.NotContains(t, string(body), "sk-XYZ")
}

func TestBuildRequest_WrongVariant(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)

	_, _, err = p.BuildRequest(models.Completion{Provider: models.NewTextSynth(), Engine: "gptj"})
	assert.Error(t, err)
}

func TestExtractAnswer(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)

	answer, err := p.ExtractAnswer([]byte(`{"choices":[{"text":"ls -la"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "ls -la", answer)
}

func TestExtractAnswer_Failures(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)

	bodies := []string{
		`{"choices":[]}`,
		`{}`,
		`{"choices":[{"text":42}]}`,
		`{"choices":{"0":{"text":"rm -rf ~"}}}`,
		`{"choices":"ls"}`,
		`{"text":"ls -la"}`,
		`not json`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			_, err := p.ExtractAnswer([]byte(body))
			require.Error(t, err)
			assert.ErrorIs(t, err, provider.ErrParse)

			var parseErr *provider.ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, body, string(parseErr.Body))
		})
	}
}
