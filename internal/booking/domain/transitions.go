package domain

import (
	"slices"

	"github.com/smallbiznis/appointly/internal/actor"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionConfirm  Action = "confirm"
	ActionDecline  Action = "decline"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

// ObjectBooking is the authorization object for booking actions.
const ObjectBooking = "booking"

type Transition struct {
	Action Action
	Actors []actor.Type
	From   []Status
	To     Status
}

func (t Transition) AllowsActor(a actor.Type) bool {
	return slices.Contains(t.Actors, a)
}

func (t Transition) AllowsFrom(s Status) bool {
	return slices.Contains(t.From, s)
}

var transitions = []Transition{
	{Action: ActionCreate, Actors: []actor.Type{actor.TypeClient, actor.TypeGuest}, To: StatusPending},
	{Action: ActionConfirm, Actors: []actor.Type{actor.TypeTech}, From: []Status{StatusPending}, To: StatusConfirmed},
	{Action: ActionDecline, Actors: []actor.Type{actor.TypeTech}, From: []Status{StatusPending, StatusConfirmed}, To: StatusCancelled},
	{Action: ActionCancel, Actors: []actor.Type{actor.TypeTech, actor.TypeClient}, From: []Status{StatusPending, StatusConfirmed}, To: StatusCancelled},
	{Action: ActionComplete, Actors: []actor.Type{actor.TypeTech}, From: []Status{StatusConfirmed}, To: StatusCompleted},
	{Action: ActionNoShow, Actors: []actor.Type{actor.TypeTech}, From: []Status{StatusConfirmed}, To: StatusNoShow},
}

func LookupTransition(action Action) (Transition, bool) {
	for _, t := range transitions {
		if t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

func Transitions() []Transition {
	return slices.Clone(transitions)
}

// ActorPolicies lists (subject, object, action) triples implied by the transition table.
func ActorPolicies() [][]string {
	var out [][]string
	for _, t := range transitions {
		for _, a := range t.Actors {
			out = append(out, []string{actor.Actor{Type: a}.Subject(), ObjectBooking, string(t.Action)})
		}
	}
	return out
}
