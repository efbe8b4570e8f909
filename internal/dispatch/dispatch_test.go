package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neural-how/internal/client"
	"neural-how/internal/config"
	"neural-how/internal/models"
	"neural-how/internal/provider/factory"
)

const delegationURL = "http://how.internal:3030/how"

// mockTransport records every request and answers from a fixed table keyed by host.
type mockTransport struct {
	requests  []*http.Request
	responses map[string]string
	status    int
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	body, ok := m.responses[req.URL.Host]
	if !ok {
		return nil, errors.New("dial tcp: no route to host")
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func (m *mockTransport) callsTo(host string) int {
	n := 0
	for _, r := range m.requests {
		if r.URL.Host == host {
			n++
		}
	}
	return n
}

func newDispatcher(t *testing.T, transport *mockTransport) *Dispatcher {
	t.Helper()
	reg, err := factory.NewRegistry(config.ProvidersConfig{})
	require.NoError(t, err)
	completer, err := client.New(transport, reg, nil, nil)
	require.NoError(t, err)
	delegator, err := NewRemoteDelegator(transport, delegationURL)
	require.NoError(t, err)
	d, err := New(completer, delegator, nil)
	require.NoError(t, err)
	return d
}

func TestAsk_LocalDecodeSkipsDelegation(t *testing.T) {
	transport := &mockTransport{responses: map[string]string{
		"api.openai.com":    `{"choices":[{"text":"ls -la"}]}`,
		"how.internal:3030": "should not be used",
	}}
	d := newDispatcher(t, transport)

	answer, err := d.Ask(context.Background(), models.NewQuestion("list files", "openai-text_davinci_003-sk-XYZ"))
	require.NoError(t, err)

	assert.Equal(t, Answer{Text: "ls -la", Route: RouteLocal}, answer)
	require.Len(t, transport.requests, 1)
	assert.Equal(t, 1, transport.callsTo("api.openai.com"))
	assert.Equal(t, 0, transport.callsTo("how.internal:3030"))

	req := transport.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://api.openai.com/v1/engines/text-davinci-003/completion", req.URL.String())
	assert.Equal(t, "Bearer sk-XYZ", req.Header.Get("Authorization"))
}

func TestAsk_TextSynthLocal(t *testing.T) {
	transport := &mockTransport{responses: map[string]string{
		"api.textsynth.com": `{"text":"ls -la"}`,
	}}
	d := newDispatcher(t, transport)

	answer, err := d.Ask(context.Background(), models.NewQuestion("list files", "textsynth-gptj_6B-abc-def"))
	require.NoError(t, err)

	assert.Equal(t, "ls -la", answer.Text)
	require.Len(t, transport.requests, 1)
	assert.Equal(t, "https://api.textsynth.com/v1/engines/gptj_6B/completions", transport.requests[0].URL.String())
	assert.Equal(t, "Bearer abc-def", transport.requests[0].Header.Get("Authorization"))
}

func TestAsk_UndecodableTokenDelegates(t *testing.T) {
	transport := &mockTransport{responses: map[string]string{
		"how.internal:3030": "find . -type f",
	}}
	d := newDispatcher(t, transport)

	answer, err := d.Ask(context.Background(), models.NewQuestion("list all files & dirs", "team-alpha"))
	require.NoError(t, err)

	assert.Equal(t, Answer{Text: "find . -type f", Route: RouteDelegated}, answer)
	require.Len(t, transport.requests, 1)

	req := transport.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/how", req.URL.Path)
	assert.Equal(t, "list all files & dirs", req.URL.Query().Get("question"))
	assert.Equal(t, "Bearer team-alpha", req.Header.Get("Authorization"))
}

func TestAsk_DelegationFailureStatus(t *testing.T) {
	transport := &mockTransport{
		status:    http.StatusUnauthorized,
		responses: map[string]string{"how.internal:3030": "Invalid token"},
	}
	d := newDispatcher(t, transport)

	_, err := d.Ask(context.Background(), models.NewQuestion("q", "nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrTransport)

	var te *client.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
}

func TestAsk_ProviderErrorIsNotDelegated(t *testing.T) {
	transport := &mockTransport{responses: map[string]string{
		"how.internal:3030": "unused",
	}}
	d := newDispatcher(t, transport)

	_, err := d.Ask(context.Background(), models.NewQuestion("q", "openai-davinci-sk"))
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrTransport)
	assert.Equal(t, 0, transport.callsTo("how.internal:3030"))
}

func TestRemoteDelegator_AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v1", r.URL.Query().Get("api"))
		_, _ = w.Write([]byte(r.URL.Query().Get("question") + "|" + r.Header.Get("Authorization")))
	}))
	defer srv.Close()

	d, err := NewRemoteDelegator(srv.Client(), srv.URL+"/how?api=v1")
	require.NoError(t, err)

	got, err := d.Delegate(context.Background(), models.NewQuestion("list files", "opaque"))
	require.NoError(t, err)
	assert.Equal(t, "list files|Bearer opaque", got)
}

func TestNewRemoteDelegator_Validation(t *testing.T) {
	_, err := NewRemoteDelegator(nil, delegationURL)
	assert.Error(t, err)

	_, err = NewRemoteDelegator(http.DefaultClient, "localhost:3030")
	assert.Error(t, err)

	_, err = NewRemoteDelegator(http.DefaultClient, "ftp://how.internal/how")
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &RemoteDelegator{}, nil)
	assert.Error(t, err)

	_, err = New(stubCompleter{}, nil, nil)
	assert.Error(t, err)
}

type stubCompleter struct{}

func (stubCompleter) Complete(context.Context, models.Completion) (string, error) { return "", nil }

func TestRoute_String(t *testing.T) {
	assert.Equal(t, "local", RouteLocal.String())
	assert.Equal(t, "delegated", RouteDelegated.String())
	assert.Equal(t, "unknown", Route(0).String())
}
