package emissions

import (
	"context"
	"time"

	"github.com/evchargectl/evchargectl/pkg/types"
)

// Mock is an in-memory Provider for tests and the simulator.
type Mock struct {
	MOERValue types.MOER
	MOERErr   error

	ForecastValue types.Forecast
	ForecastErr   error

	HistoryValue types.History
	HistoryErr   error

	HistoricForecastsValue []types.Forecast
	HistoricForecastsErr   error
}

var _ Provider = (*Mock)(nil)

func (m *Mock) MOER(ctx context.Context, region string) (types.MOER, error) {
	return m.MOERValue, m.MOERErr
}

func (m *Mock) Forecast(ctx context.Context, region string) (types.Forecast, error) {
	return m.ForecastValue, m.ForecastErr
}

func (m *Mock) HistoricMOERs(ctx context.Context, region string, from time.Time, to *time.Time) (types.History, error) {
	return m.HistoryValue, m.HistoryErr
}

func (m *Mock) HistoricForecasts(ctx context.Context, region string, from, to time.Time) ([]types.Forecast, error) {
	return m.HistoricForecastsValue, m.HistoricForecastsErr
}
