package middleware

import (
	"context"
	"fmt"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/errs"
)

var ErrActorRequired = fmt.Errorf("middleware: authenticated actor required: %w", errs.ErrForbidden)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorMessage is implemented by commands and queries issued on behalf of a user.
type ActorMessage interface {
	Actor() directory.UserID
}

// RequireActor rejects actor messages that arrive without an authenticated user.
type RequireActor struct{}

func (RequireActor) Authorize(ctx context.Context, message any) error {
	m, ok := message.(ActorMessage)
	if !ok {
		return nil
	}
	if strings.TrimSpace(string(m.Actor())) == "" {
		return ErrActorRequired
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := next.Dispatch
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := next.Ask
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
