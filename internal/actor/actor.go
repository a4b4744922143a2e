// Package actor identifies who is performing an operation.
package actor

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeTech   Type = "tech"
	TypeClient Type = "client"
	TypeGuest  Type = "guest"
	TypeSystem Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeTech, TypeClient, TypeGuest, TypeSystem:
		return true
	}
	return false
}

// Actor is the authenticated caller. Guests and the system carry no user id.
type Actor struct {
	Type   Type
	UserID snowflake.ID
}

func Guest() Actor  { return Actor{Type: TypeGuest} }
func System() Actor { return Actor{Type: TypeSystem} }

func (a Actor) IsUser() bool {
	return (a.Type == TypeTech || a.Type == TypeClient) && a.UserID != 0
}

// Subject is the casbin subject for the actor's role.
func (a Actor) Subject() string {
	return "role:" + string(a.Type)
}

func (a Actor) ID() string {
	if a.UserID == 0 {
		return ""
	}
	return a.UserID.String()
}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the request actor; requests without one are guests.
func FromContext(ctx context.Context) Actor {
	if ctx == nil {
		return Guest()
	}
	if a, ok := ctx.Value(contextKey{}).(Actor); ok && a.Type != "" {
		return a
	}
	return Guest()
}

// ParseType maps a token role claim onto an actor type. Unknown roles are rejected.
func ParseType(raw string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid() && t != TypeGuest
}
