package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/appointly/internal/actor"
)

type Service interface {
	Authorize(ctx context.Context, a actor.Actor, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
