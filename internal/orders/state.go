package orders

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// Action is a lifecycle command applied to an order.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionShip    Action = "ship"
	ActionDeliver Action = "deliver"
	ActionCancel  Action = "cancel"
)

var validActions = []Action{ActionConfirm, ActionShip, ActionDeliver, ActionCancel}

// Actions returns every known action.
func Actions() []Action {
	out := make([]Action, len(validActions))
	copy(out, validActions)
	return out
}

// ParseAction converts raw input into an Action.
func ParseAction(value string) (Action, error) {
	normalized := Action(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range validActions {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order action %q", value))
}

type effect int

const (
	effectNone effect = iota
	effectMarkDelivered
	effectRestoreStock
)

type transition struct {
	to     enums.OrderStatus
	effect effect
}

type edge struct {
	from   enums.OrderStatus
	action Action
}

var transitions = map[edge]transition{
	{enums.OrderStatusPending, ActionConfirm}:  {to: enums.OrderStatusConfirmed},
	{enums.OrderStatusConfirmed, ActionShip}:   {to: enums.OrderStatusShipped},
	{enums.OrderStatusShipped, ActionDeliver}:  {to: enums.OrderStatusDelivered, effect: effectMarkDelivered},
	{enums.OrderStatusPending, ActionCancel}:   {to: enums.OrderStatusCancelled, effect: effectRestoreStock},
	{enums.OrderStatusConfirmed, ActionCancel}: {to: enums.OrderStatusCancelled, effect: effectRestoreStock},
}

// Next returns the status reached by applying action to current.
func Next(current enums.OrderStatus, action Action) (enums.OrderStatus, error) {
	t, err := lookup(current, action)
	if err != nil {
		return current, err
	}
	return t.to, nil
}

func lookup(current enums.OrderStatus, action Action) (transition, error) {
	if current.IsTerminal() {
		return transition{}, terminalError(current, action)
	}
	t, ok := transitions[edge{from: current, action: action}]
	if !ok {
		return transition{}, invalidTransitionError(current, action)
	}
	return t, nil
}

func terminalError(current enums.OrderStatus, action Action) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot %s", current, action)).
		WithReason(pkgerrors.ReasonOrderTerminal).
		WithDetails(map[string]any{
			"current":   string(current),
			"requested": string(action),
		})
}

func invalidTransitionError(current enums.OrderStatus, action Action) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s an order that is %s", action, current)).
		WithReason(pkgerrors.ReasonInvalidTransition).
		WithDetails(map[string]any{
			"current":   string(current),
			"requested": string(action),
		})
}
