package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/uafrontender/newnew-sub010/api"
	"github.com/uafrontender/newnew-sub010/instruments"
	"github.com/uafrontender/newnew-sub010/logging"
	"github.com/uafrontender/newnew-sub010/push"
	"github.com/uafrontender/newnew-sub010/scope"
)

const keyHub scope.Key = "push.hub"

// session is one command invocation: the API client plus a scope owning the
// push hub and the saved-cards cache. Close disposes everything.
type session struct {
	app    *cli
	client *api.Client
	scope  *scope.Scope
}

func (c *cli) openSession() (*session, error) {
	client, err := api.New(api.Config{
		BaseURL:   c.cfg.API.BaseURL,
		Timeout:   c.cfg.API.Timeout(),
		AuthToken: c.cfg.API.AuthToken,
		UserAgent: "checkoutctl",
	})
	if err != nil {
		return nil, err
	}

	s := &session{app: c, client: client, scope: scope.New()}
	hub := push.NewHub()
	if err := scope.Provide(s.scope, keyHub, hub); err != nil {
		return nil, err
	}

	cache := instruments.NewCache(instruments.NewHTTPStore(client),
		instruments.WithLogger(logging.Named(c.log, "cards")),
		instruments.WithAuthenticated(client.Authenticated),
	)
	cache.Attach(hub)
	if err := instruments.Provide(s.scope, cache); err != nil {
		return nil, errors.Join(err, cache.Close(), s.scope.Close())
	}
	return s, nil
}

func (s *session) hub() *push.Hub { return scope.MustGet[push.Hub](s.scope, keyHub) }

func (s *session) cards() (*instruments.Cache, error) { return instruments.FromScope(s.scope) }

// listen runs a push Listener in the background until the returned stop is
// called. Without a push URL it does nothing.
func (s *session) listen(ctx context.Context) (stop func()) {
	url := s.app.cfg.PushURL
	if url == "" {
		return func() {}
	}
	header := http.Header{}
	if tok := s.app.cfg.API.AuthToken; tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	log := logging.Named(s.app.log, "push")
	ln := push.NewListener(url, s.hub(), push.WithLogger(log), push.WithHeader(header))

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ln.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("push listener stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func (s *session) Close() error { return s.scope.Close() }
