// Package token decodes caller tokens of the form
// <provider-tag>-<engine>[-<secret-segment>...] into completion requests.
package token

import (
	"errors"
	"strings"

	"neural-how/internal/models"
	"neural-how/internal/prompt"
)

const (
	separator = "-"
	opaqueTag = "<opaque>"
)

// ErrUndecodable reports a token that names no known provider or engine.
var ErrUndecodable = errors.New("token could not be decoded")

// Result is the outcome of Decode. Exactly one of Completion or Question
// reports ok.
type Result struct {
	completion *models.Completion
	question   models.Question
}

// Completion returns the decoded request when decoding succeeded.
func (r Result) Completion() (models.Completion, bool) {
	if r.completion == nil {
		return models.Completion{}, false
	}
	return *r.completion, true
}

// Question returns the original question when decoding failed.
func (r Result) Question() (models.Question, bool) {
	if r.completion != nil {
		return models.Question{}, false
	}
	return r.question, true
}

// Decoded reports whether the token was understood.
func (r Result) Decoded() bool {
	return r.completion != nil
}

// Decode splits the question's token into provider, engine and secret and
// builds the completion request for it. Underscores in OpenAI engine names
// stand in for hyphens.
func Decode(q models.Question) Result {
	parts := strings.Split(q.Token, separator)
	if len(parts) < 2 {
		return Result{question: q}
	}

	var p models.Provider
	switch parts[0] {
	case models.TagOpenAI:
		p = models.NewOpenAI()
	case models.TagTextSynth:
		p = models.NewTextSynth()
	default:
		return Result{question: q}
	}

	engine := parts[1]
	if engine == "" {
		return Result{question: q}
	}
	if _, ok := p.(models.OpenAI); ok {
		engine = strings.ReplaceAll(engine, "_", "-")
	}

	return Result{completion: &models.Completion{
		Provider:  p,
		Engine:    engine,
		MaxTokens: models.DefaultMaxTokens,
		Stop:      prompt.StopSequence,
		Prompt:    prompt.Build(q.Text),
		Secret:    strings.Join(parts[2:], separator),
	}}
}

// Tag returns the provider segment of a token for log lines, dropping the
// engine and secret. Anything but a known provider tag is reported as opaque.
func Tag(raw string) string {
	tag, _, _ := strings.Cut(raw, separator)
	switch tag {
	case models.TagOpenAI, models.TagTextSynth:
		return tag
	default:
		return opaqueTag
	}
}
