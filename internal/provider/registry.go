package provider

import (
	"errors"
	"fmt"
	"sync"

	"neural-how/internal/models"
)

// ErrUnknownProvider indicates no adapter is registered for a provider tag.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrDuplicateProvider indicates an attempt to register the same tag twice.
var ErrDuplicateProvider = errors.New("provider already registered")

// ErrParse marks a provider response that did not have the expected shape.
var ErrParse = errors.New("could not parse provider response")

// Adapter builds provider-specific requests and reads provider-specific responses.
type Adapter interface {
	Name() string
	BuildRequest(c models.Completion) (endpoint string, body []byte, err error)
	ExtractAnswer(body []byte) (string, error)
}

// ParseError carries the raw provider response that failed extraction.
type ParseError struct {
	Provider string
	Body     []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrParse.Error(), e.Provider, string(e.Body))
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewParseError copies body so the diagnostic survives buffer reuse.
func NewParseError(provider string, body []byte) *ParseError {
	raw := make([]byte, len(body))
	copy(raw, body)
	return &ParseError{Provider: provider, Body: raw}
}

// Registry maps provider tags to adapters. It is filled once at startup and
// only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry constructs an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds the adapter under its name.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return errors.New("adapter must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[a.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Lookup returns the adapter serving the given provider variant.
func (r *Registry) Lookup(p models.Provider) (Adapter, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrUnknownProvider)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[p.Tag()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p.Tag())
	}
	return a, nil
}
