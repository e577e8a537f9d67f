// Package emissions defines the emissions-signal provider surface the
// decision engine's callers consume (spec §6), independent of any
// particular provider's wire protocol.
package emissions

import (
	"context"
	"time"

	"github.com/evchargectl/evchargectl/pkg/types"
)

// Provider is the external emissions-signal API surface.
type Provider interface {
	// MOER returns the current marginal rate for region.
	MOER(ctx context.Context, region string) (types.MOER, error)
	// Forecast returns the latest generated future-rate series for region.
	Forecast(ctx context.Context, region string) (types.Forecast, error)
	// HistoricMOERs returns recorded rates in [from, to). A nil to means
	// "through now".
	HistoricMOERs(ctx context.Context, region string, from time.Time, to *time.Time) (types.History, error)
	// HistoricForecasts returns every forecast generated in [from, to).
	// Simulator-only.
	HistoricForecasts(ctx context.Context, region string, from, to time.Time) ([]types.Forecast, error)
}
