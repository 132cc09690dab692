package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxarchive/pkg/auth"
	"fxarchive/pkg/config"
)

func fileManager(t *testing.T, sessions ...*auth.Session) func() (*auth.Manager, error) {
	t.Helper()
	dir := t.TempDir()
	store, err := auth.NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "test-passphrase")
	require.NoError(t, err)

	m := auth.NewManagerWithStores(dir, store)
	for _, s := range sessions {
		require.NoError(t, m.Store(s))
	}
	return func() (*auth.Manager, error) { return m, nil }
}

func TestResolveSessionPrefersExplicitCookie(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.Cookie = "SID=flag"

	called := false
	s, err := resolveSession(cfg, func() (*auth.Manager, error) {
		called = true
		return nil, errors.New("unused")
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, configSessionName, s.Name)
	assert.Equal(t, "SID=flag", s.Headers().Get("Cookie"))
	assert.Equal(t, cfg.Session.UserAgent, s.Headers().Get("User-Agent"))
}

func TestResolveSessionByAccount(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.Account = "work"

	s, err := resolveSession(cfg, fileManager(t,
		&auth.Session{Name: "home", Cookie: "SID=home"},
		&auth.Session{Name: "work", Cookie: "SID=work", UserAgent: "custom"},
	))
	require.NoError(t, err)
	assert.Equal(t, "SID=work", s.Cookie)
	assert.Equal(t, "custom", s.UserAgent)
}

func TestResolveSessionDefault(t *testing.T) {
	cfg := config.DefaultConfig()

	s, err := resolveSession(cfg, fileManager(t, &auth.Session{Name: "only", Cookie: "SID=only"}))
	require.NoError(t, err)
	assert.Equal(t, "only", s.Name)
	assert.Equal(t, cfg.Session.UserAgent, s.UserAgent)
}

func TestResolveSessionMissing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.Account = "ghost"

	_, err := resolveSession(cfg, fileManager(t))
	assert.True(t, errors.Is(err, auth.ErrCredentialsNotFound))
}
