package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"neural-how/internal/client"
	"neural-how/internal/models"
)

const maxDelegatedAnswerSize = 1 << 20

// RemoteDelegator posts questions to another instance's /how endpoint,
// presenting the original token as its bearer credential.
type RemoteDelegator struct {
	doer     client.Doer
	endpoint *url.URL
}

// NewRemoteDelegator creates a delegator targeting endpoint.
func NewRemoteDelegator(doer client.Doer, endpoint string) (*RemoteDelegator, error) {
	if doer == nil {
		return nil, errors.New("http client must not be nil")
	}
	u, err := url.ParseRequestURI(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse delegation endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("delegation endpoint %q must use http or https", endpoint)
	}
	return &RemoteDelegator{doer: doer, endpoint: u}, nil
}

// Delegate sends POST {endpoint}?question=<text> and returns the response body.
func (r *RemoteDelegator) Delegate(ctx context.Context, q models.Question) (string, error) {
	target := *r.endpoint
	query := target.Query()
	query.Set("question", q.Text)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+q.Token)
	req.Header.Set("Accept", "text/plain")

	resp, err := r.doer.Do(req)
	if err != nil {
		return "", &client.TransportError{URL: r.endpoint.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDelegatedAnswerSize))
	if err != nil {
		return "", &client.TransportError{URL: r.endpoint.String(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &client.TransportError{URL: r.endpoint.String(), StatusCode: resp.StatusCode, Body: body}
	}
	return string(body), nil
}
