package main

import (
	"fmt"

	"fxarchive/pkg/auth"
	"fxarchive/pkg/config"
)

// configSessionName labels a cookie that came from flags, env or the config file.
const configSessionName = "config"

func newSessionManager() (*auth.Manager, error) {
	return auth.NewManager()
}

// resolveSession picks the cookie bundle for this run: an explicit cookie
// wins, then the --account session, then the stored default.
func resolveSession(cfg *config.Config, newManager func() (*auth.Manager, error)) (*auth.Session, error) {
	if cfg.Session.Cookie != "" {
		s := &auth.Session{
			Name:      configSessionName,
			Cookie:    cfg.Session.Cookie,
			UserAgent: cfg.Session.UserAgent,
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return s, nil
	}

	manager, err := newManager()
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	var s *auth.Session
	if cfg.Session.Account != "" {
		s, err = manager.Retrieve(cfg.Session.Account)
	} else {
		s, err = manager.RetrieveDefault()
	}
	if err != nil {
		return nil, err
	}

	if s.UserAgent == "" {
		s.UserAgent = cfg.Session.UserAgent
	}
	return s, nil
}
