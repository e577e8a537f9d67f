// Package metrics exposes the optional Prometheus gauges named in
// SPEC_FULL.md §6. Gauge names are part of the observable contract and
// must not drift.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gauges holds every metric this process exposes.
type Gauges struct {
	registry *prometheus.Registry

	VehicleSoC               prometheus.Gauge
	ChargeAvailableHours     prometheus.Gauge
	ChargeRequiredProportion prometheus.Gauge
	ChargeGoal               prometheus.Gauge

	EmissionsMin prometheus.Gauge
	EmissionsQ10 prometheus.Gauge
	EmissionsQ25 prometheus.Gauge
	EmissionsQ50 prometheus.Gauge
	EmissionsQ75 prometheus.Gauge
	EmissionsQ90 prometheus.Gauge
	EmissionsMax prometheus.Gauge

	EmissionsCurrent prometheus.Gauge
	EmissionsLimit   prometheus.Gauge
	ChargeState      prometheus.Gauge
}

// New builds and registers every gauge spec.md §6 names.
func New() *Gauges {
	reg := prometheus.NewRegistry()
	g := &Gauges{registry: reg}

	g.VehicleSoC = register(reg, "vehicle_soc", "Vehicle state of charge, fraction 0-1.")
	g.ChargeAvailableHours = register(reg, "charge_available_hours", "Allowed charging hours remaining before the governing goal's deadline.")
	g.ChargeRequiredProportion = register(reg, "charge_required_proportion", "Required charging fraction for the governing goal.")
	g.ChargeGoal = register(reg, "charge_goal", "Target SoC fraction of the governing goal.")

	g.EmissionsMin = register(reg, "emissions_min", "Minimum emissions rate in the decision horizon, kg/kWh.")
	g.EmissionsQ10 = register(reg, "emissions_q10", "10th percentile emissions rate in the decision horizon, kg/kWh.")
	g.EmissionsQ25 = register(reg, "emissions_q25", "25th percentile emissions rate in the decision horizon, kg/kWh.")
	g.EmissionsQ50 = register(reg, "emissions_q50", "Median emissions rate in the decision horizon, kg/kWh.")
	g.EmissionsQ75 = register(reg, "emissions_q75", "75th percentile emissions rate in the decision horizon, kg/kWh.")
	g.EmissionsQ90 = register(reg, "emissions_q90", "90th percentile emissions rate in the decision horizon, kg/kWh.")
	g.EmissionsMax = register(reg, "emissions_max", "Maximum emissions rate in the decision horizon, kg/kWh.")

	g.EmissionsCurrent = register(reg, "emissions_current", "Current emissions rate, kg/kWh.")
	g.EmissionsLimit = register(reg, "emissions_limit", "Emissions rate limit used by the last decision, kg/kWh.")
	g.ChargeState = register(reg, "charge_state", "1 if the last decision was to charge, else 0.")

	return g
}

func register(reg *prometheus.Registry, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	reg.MustRegister(g)
	return g
}

// RecordQuantiles sets every emissions_* quantile gauge from grams-per-kWh
// values, converting back to the kg/kWh unit the metric contract uses.
func (g *Gauges) RecordQuantiles(min, q10, q25, q50, q75, q90, max int64) {
	g.EmissionsMin.Set(gramsToKWh(min))
	g.EmissionsQ10.Set(gramsToKWh(q10))
	g.EmissionsQ25.Set(gramsToKWh(q25))
	g.EmissionsQ50.Set(gramsToKWh(q50))
	g.EmissionsQ75.Set(gramsToKWh(q75))
	g.EmissionsQ90.Set(gramsToKWh(q90))
	g.EmissionsMax.Set(gramsToKWh(max))
}

func gramsToKWh(grams int64) float64 {
	return float64(grams) / 1000.0
}

// Server binds Gauges on a caller-supplied address via a /metrics handler.
type Server struct {
	addr   string
	gauges *Gauges
	srv    *http.Server
}

// NewServer returns a metrics HTTP server. addr is typically "host:port".
func NewServer(addr string, g *Gauges) *Server {
	return &Server{addr: addr, gauges: g}
}

// Run serves /metrics until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gauges.registry, promhttp.HandlerOpts{}))
	s.srv = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
