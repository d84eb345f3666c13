package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/accelsim/internal/sim"
)

// Collector exports samples as prometheus series labelled by run name.
type Collector struct {
	run        string
	particles  *prometheus.GaugeVec
	emittance  *prometheus.GaugeVec
	centroid   *prometheus.GaugeVec
	steps      *prometheus.GaugeVec
	lossesSeen int
	losses     *prometheus.CounterVec
}

// NewCollector registers the accelsim series on reg.
func NewCollector(reg prometheus.Registerer, run string) *Collector {
	c := &Collector{
		run: run,
		particles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "accelsim_particles",
				Help: "Live macroparticles in the accelerator",
			},
			[]string{"run"},
		),
		emittance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "accelsim_emittance",
				Help: "Particle-weighted beam emittance per transverse axis",
			},
			[]string{"run", "axis"},
		),
		centroid: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "accelsim_centroid_meters",
				Help: "Mean transverse offset per axis",
			},
			[]string{"run", "axis"},
		),
		steps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "accelsim_step",
				Help: "Last sampled simulation step",
			},
			[]string{"run"},
		),
		losses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accelsim_losses_total",
				Help: "Macroparticles lost at the wall",
			},
			[]string{"run"},
		),
	}

	reg.MustRegister(c.particles, c.emittance, c.centroid, c.steps, c.losses)
	return c
}

// OnSample implements sim.Observer.
func (c *Collector) OnSample(s sim.Sample) {
	c.particles.WithLabelValues(c.run).Set(float64(s.Particles))
	c.emittance.WithLabelValues(c.run, "r").Set(s.EmittanceR)
	c.emittance.WithLabelValues(c.run, "z").Set(s.EmittanceZ)
	c.centroid.WithLabelValues(c.run, "r").Set(s.CentroidR)
	c.centroid.WithLabelValues(c.run, "z").Set(s.CentroidZ)
	c.steps.WithLabelValues(c.run).Set(float64(s.Step))
	if d := s.Losses - c.lossesSeen; d > 0 {
		c.losses.WithLabelValues(c.run).Add(float64(d))
		c.lossesSeen = s.Losses
	}
}

// Handler serves the series gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ServeMetrics blocks serving /metrics for g on addr.
func ServeMetrics(addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	return http.ListenAndServe(addr, mux)
}
