// Package tokenmap holds the server-side mapping from delegation tokens to
// real provider tokens. The mapping is loaded once at startup and never
// mutated, so a *Map is safe for concurrent use.
package tokenmap

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrUnauthorized reports a missing or unknown delegation token.
var ErrUnauthorized = errors.New("invalid delegation token")

// Source yields the raw mapping document.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// Map resolves delegation tokens to provider tokens.
type Map struct {
	entries map[string]string
}

// New copies entries into a read-only Map.
func New(entries map[string]string) *Map {
	m := &Map{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		m.entries[k] = v
	}
	return m
}

// Load reads and parses the mapping from src.
func Load(ctx context.Context, src Source) (*Map, error) {
	data, err := src.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token mapping %s: %w", src, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse token mapping %s: %w", src, err)
	}
	return m, nil
}

// Parse decodes a JSON or YAML object of string keys to string values.
func Parse(data []byte) (*Map, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("token mapping is empty")
	}

	entries := make(map[string]string, len(raw))
	for key, value := range raw {
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("token mapping value for %q must be a string, got %T", redact(key), value)
		}
		if key == "" {
			return nil, errors.New("token mapping contains an empty delegation token")
		}
		entries[key] = str
	}
	return &Map{entries: entries}, nil
}

// Resolve returns the provider token registered for the delegation token.
func (m *Map) Resolve(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	resolved, ok := m.entries[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return resolved, nil
}

// Len reports the number of delegation tokens.
func (m *Map) Len() int {
	return len(m.entries)
}

func redact(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
