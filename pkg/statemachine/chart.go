package statemachine

import (
	"context"
)

// Chart is a stateless transition table. Unlike a classic FSM instance it does
// not track a current state: callers pass the current state into Fire and
// receive the next one back. A single Chart can therefore drive any number of
// entities that share the same lifecycle.
//
// A Chart is immutable after construction, which makes it safe for concurrent
// use without locking.
type Chart struct {
	// [fromState][event][]Transition for O(1) transition lookups
	transitions map[string]map[string][]Transition
}

func newChart() *Chart {
	return &Chart{
		transitions: make(map[string]map[string][]Transition),
	}
}

func (c *Chart) addTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	fromStateName := from.Name()
	eventName := event.Name()

	if _, ok := c.transitions[fromStateName]; !ok {
		c.transitions[fromStateName] = make(map[string][]Transition)
	}

	// Multiple transitions allowed for same from/event to support guard-based branching
	c.transitions[fromStateName][eventName] = append(c.transitions[fromStateName][eventName], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

// Fire applies event to the given current state and returns the resulting
// state. The chart itself is not mutated; persisting the returned state is the
// caller's responsibility.
func (c *Chart) Fire(ctx context.Context, current State, event Event, data any) (State, error) {
	if current == nil {
		return nil, ErrInvalidState
	}
	if event == nil {
		return nil, ErrInvalidEvent
	}

	currentStateName := current.Name()
	eventName := event.Name()

	transitions, ok := c.transitions[currentStateName][eventName]
	if !ok || len(transitions) == 0 {
		return nil, NewErrNoTransitionAvailable(currentStateName, eventName)
	}

	// First transition with passing guards wins (enables priority ordering)
	var validTransition *Transition
	for i, t := range transitions {
		if guardsPass(ctx, t.Guards, current, event, data) {
			validTransition = &transitions[i]
			break
		}
	}

	if validTransition == nil {
		return nil, NewErrTransitionRejected(currentStateName, eventName)
	}

	// Execute actions before returning the new state; any failure aborts the transition
	for _, action := range validTransition.Actions {
		if action != nil {
			if err := action(ctx, current, validTransition.To, event, data); err != nil {
				return nil, NewErrActionFailed(currentStateName, eventName, err)
			}
		}
	}

	return validTransition.To, nil
}

// CanFire reports whether firing event from the given state would succeed,
// taking guards into account but without running actions.
func (c *Chart) CanFire(ctx context.Context, current State, event Event, data any) bool {
	if current == nil || event == nil {
		return false
	}

	transitions, ok := c.transitions[current.Name()][event.Name()]
	if !ok || len(transitions) == 0 {
		return false
	}

	for _, t := range transitions {
		if guardsPass(ctx, t.Guards, current, event, data) {
			return true
		}
	}
	return false
}

func guardsPass(ctx context.Context, guards []Guard, from State, event Event, data any) bool {
	for _, guard := range guards {
		if guard != nil && !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}
