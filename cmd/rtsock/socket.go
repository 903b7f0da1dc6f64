package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/luciancaetano/rtsock"
	"github.com/luciancaetano/rtsock/ws"
)

// connect opens a socket to the configured server and keeps it ticking until
// ctx is done.
func (a *app) connect(ctx context.Context) (rtsock.Socket, error) {
	if a.cfg.Session.Token == "" {
		return nil, errors.New("a session token is required (--token or session.token)")
	}

	cfg := a.cfg.Socket()
	cfg.Logger = a.logger
	socket := ws.New(cfg)
	go socket.Run(ctx, 0)

	session := rtsock.NewSession(a.cfg.Session.Token, a.cfg.Session.RefreshToken)
	if err := socket.Connect(ctx, session, a.cfg.Session.AppearOnline); err != nil {
		return nil, errors.Wrapf(err, "connect to %s:%d", cfg.Host, cfg.Port)
	}
	return socket, nil
}
