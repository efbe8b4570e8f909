// Package client performs the single outbound provider call for a decoded
// completion.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"neural-how/internal/metrics"
	"neural-how/internal/models"
	"neural-how/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "neural-how/0.1"
	maxResponseSize = 4 << 20
)

// ErrTransport marks network failures and non-2xx responses.
var ErrTransport = errors.New("transport failure")

// TransportError describes a failed outbound call. StatusCode is zero when
// no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s returned status %d: %s", e.URL, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AdapterSource finds the adapter for a provider variant.
type AdapterSource interface {
	Lookup(p models.Provider) (provider.Adapter, error)
}

// Recorder observes completed provider calls.
type Recorder interface {
	RecordCompletion(provider, outcome string, duration float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordCompletion(string, string, float64) {}

// Client issues exactly one provider request per completion.
type Client struct {
	doer     Doer
	adapters AdapterSource
	log      *zap.Logger
	recorder Recorder
}

// New constructs a completion client. log and rec may be nil.
func New(doer Doer, adapters AdapterSource, log *zap.Logger, rec Recorder) (*Client, error) {
	if doer == nil {
		return nil, errors.New("http client must not be nil")
	}
	if adapters == nil {
		return nil, errors.New("adapter source must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Client{
		doer:     doer,
		adapters: adapters,
		log:      log,
		recorder: rec,
	}, nil
}

// Complete posts the completion to its provider and returns the extracted answer.
func (c *Client) Complete(ctx context.Context, comp models.Completion) (string, error) {
	adapter, err := c.adapters.Lookup(comp.Provider)
	if err != nil {
		return "", err
	}

	endpoint, payload, err := adapter.BuildRequest(comp)
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", adapter.Name(), err)
	}

	start := time.Now()
	answer, err := c.do(ctx, adapter, endpoint, comp.Secret, payload)
	duration := time.Since(start)
	c.recorder.RecordCompletion(adapter.Name(), outcome(err), duration.Seconds())

	if err != nil {
		c.log.Warn("provider completion failed",
			zap.String("provider", adapter.Name()),
			zap.String("engine", comp.Engine),
			zap.Duration("latency", duration),
			zap.Error(err),
		)
		return "", err
	}

	c.log.Debug("provider completion",
		zap.String("provider", adapter.Name()),
		zap.String("engine", comp.Engine),
		zap.Duration("latency", duration),
	)
	return answer, nil
}

func (c *Client) do(ctx context.Context, adapter provider.Adapter, endpoint, secret string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := c.doer.Do(req)
	if err != nil {
		return "", &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &TransportError{URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{URL: endpoint, StatusCode: resp.StatusCode, Body: body}
	}

	return adapter.ExtractAnswer(body)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrTransport):
		return metrics.OutcomeTransport
	case errors.Is(err, provider.ErrParse):
		return metrics.OutcomeParse
	default:
		return metrics.OutcomeError
	}
}
