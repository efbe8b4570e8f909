package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neural-how/internal/config"
	"neural-how/internal/tokenmap"
)

func TestRoot_DelegatesOpaqueToken(t *testing.T) {
	received := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r
		_, _ = w.Write([]byte("ls -la"))
	}))
	defer srv.Close()

	t.Setenv("HOW_TOKEN", "team-alpha")
	t.Setenv("HOW_SERVER", srv.URL+"/how")

	var out bytes.Buffer
	err := newRootCommand(&out).executeWith(context.Background(), []string{"list", "files", "-la"})
	require.NoError(t, err)

	assert.Equal(t, "ls -la\n", out.String())
	req := <-received
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "list files -la", req.URL.Query().Get("question"))
	assert.Equal(t, "Bearer team-alpha", req.Header.Get("Authorization"))
}

func TestRoot_DelegationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	t.Setenv("HOW_TOKEN", "team-alpha")
	t.Setenv("HOW_SERVER", srv.URL+"/how")

	var out bytes.Buffer
	err := newRootCommand(&out).executeWith(context.Background(), []string{"list", "files"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Empty(t, out.String())
}

func TestRoot_RequiresQuestion(t *testing.T) {
	err := newRootCommand(&bytes.Buffer{}).executeWith(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a question is required")
}

func TestRoot_RequiresToken(t *testing.T) {
	t.Setenv("HOW_TOKEN", "")

	err := newRootCommand(&bytes.Buffer{}).executeWith(context.Background(), []string{"list", "files"})
	assert.ErrorIs(t, err, config.ErrTokenMissing)
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newRootCommand(&out).executeWith(context.Background(), []string{"version"}))
	assert.Contains(t, out.String(), "how dev")
}

func TestServeOptions_Load(t *testing.T) {
	cfg, err := serveOptions{port: 4040, tokenMapPath: "/srv/tokens.yaml"}.load()
	require.NoError(t, err)
	assert.Equal(t, 4040, cfg.Server.Port)
	assert.Equal(t, "/srv/tokens.yaml", cfg.TokenMap.Path)

	_, err = serveOptions{port: 70000}.load()
	assert.Error(t, err)

	_, err = serveOptions{configPath: filepath.Join(t.TempDir(), "missing.yaml")}.load()
	assert.Error(t, err)
}

func TestServeOptions_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "how.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 5050\ntoken_map:\n  s3:\n    bucket: b\n    key: k\n    region: eu-west-1\n"), 0o644))

	cfg, err := serveOptions{configPath: path}.load()
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Server.Port)

	src := tokenMapSource(cfg.TokenMap)
	assert.Equal(t, "s3://b/k", src.String())

	cfg, err = serveOptions{configPath: path, tokenMapPath: "local.json"}.load()
	require.NoError(t, err)
	assert.Equal(t, tokenmap.FileSource{Path: "local.json"}, tokenMapSource(cfg.TokenMap))
}

func TestServe_MissingTokenMap(t *testing.T) {
	cfg := config.Defaults()
	cfg.TokenMap.Path = filepath.Join(t.TempDir(), "token_mappings.json")

	err := serve(context.Background(), cfg, false)
	assert.Error(t, err)
}
