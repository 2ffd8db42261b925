package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

func TestNextAllowedTransitions(t *testing.T) {
	cases := []struct {
		from   enums.OrderStatus
		action Action
		want   enums.OrderStatus
	}{
		{enums.OrderStatusPending, ActionConfirm, enums.OrderStatusConfirmed},
		{enums.OrderStatusConfirmed, ActionShip, enums.OrderStatusShipped},
		{enums.OrderStatusShipped, ActionDeliver, enums.OrderStatusDelivered},
		{enums.OrderStatusPending, ActionCancel, enums.OrderStatusCancelled},
		{enums.OrderStatusConfirmed, ActionCancel, enums.OrderStatusCancelled},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.action)
		require.NoError(t, err, "%s/%s", tc.from, tc.action)
		assert.Equal(t, tc.want, got)
	}
}

func TestNextIsTotal(t *testing.T) {
	allowed := 0
	for _, status := range enums.OrderStatuses() {
		for _, action := range Actions() {
			got, err := Next(status, action)
			if err == nil {
				allowed++
				assert.NotEqual(t, status, got)
				continue
			}

			assert.Equal(t, status, got, "status must be unchanged on rejection")
			assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
			reason := pkgerrors.ReasonOf(err)
			if status.IsTerminal() {
				assert.Equal(t, pkgerrors.ReasonOrderTerminal, reason)
			} else {
				assert.Equal(t, pkgerrors.ReasonInvalidTransition, reason)
			}
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestInvalidTransitionDetails(t *testing.T) {
	_, err := Next(enums.OrderStatusShipped, ActionCancel)
	require.Error(t, err)

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "shipped", details["current"])
	assert.Equal(t, "cancel", details["requested"])
}

func TestParseAction(t *testing.T) {
	action, err := ParseAction(" Ship ")
	require.NoError(t, err)
	assert.Equal(t, ActionShip, action)

	_, err = ParseAction("refund")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
