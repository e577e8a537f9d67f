// Package vehicle defines the Vehicle API surface the control loop and
// simulator consume (spec §6), independent of any particular vehicle's
// wire protocol.
package vehicle

import (
	"context"
	"errors"

	"github.com/evchargectl/evchargectl/pkg/types"
)

// ErrWakeTimeout is returned by Wake when the vehicle does not report
// online within the 60-second budget.
var ErrWakeTimeout = errors.New("vehicle: wake timed out")

// Client is the external vehicle API surface consumed by the control loop.
type Client interface {
	// Wake blocks until the vehicle reports online or ErrWakeTimeout.
	Wake(ctx context.Context) error
	ChargeState(ctx context.Context) (types.ChargeState, error)
	ChargeStart(ctx context.Context) (types.CommandResult, error)
	ChargeStop(ctx context.Context) (types.CommandResult, error)
}
