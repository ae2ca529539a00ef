// Package metrics exports the statistics of parses as Prometheus collectors.
package metrics

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/nihei9/urchin/driver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "urchin"

const (
	resultAccepted    = "accepted"
	resultAmbiguous   = "ambiguous"
	resultTruncated   = "truncated"
	resultSyntaxError = "syntax_error"
	resultException   = "exception"
	resultError       = "error"
)

var defaultRoundsBuckets = prometheus.ExponentialBuckets(1, 4, 10)

// Recorder accumulates the statistics of parses. Every collector is labeled with the grammar name.
type Recorder struct {
	parses      *prometheus.CounterVec
	rounds      *prometheus.HistogramVec
	forks       *prometheus.CounterVec
	merges      *prometheus.CounterVec
	reductions  *prometheus.CounterVec
	shifts      *prometheus.CounterVec
	maxFrontier *prometheus.GaugeVec
	values      *prometheus.HistogramVec
	duration    *prometheus.HistogramVec

	mu       sync.Mutex
	frontier map[string]int
}

func NewRecorder() *Recorder {
	return &Recorder{
		parses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parses_total",
				Help:      "Number of parses by result.",
			},
			[]string{"grammar", "result"},
		),
		rounds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_rounds",
				Help:      "Number of terminals consumed by a parse.",
				Buckets:   defaultRoundsBuckets,
			},
			[]string{"grammar"},
		),
		forks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forks_total",
				Help:      "Number of extra actions taken on conflicting cells.",
			},
			[]string{"grammar"},
		),
		merges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "merges_total",
				Help:      "Number of reductions that joined an existing stack node.",
			},
			[]string{"grammar"},
		),
		reductions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reductions_total",
				Help:      "Number of reductions.",
			},
			[]string{"grammar"},
		),
		shifts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shifts_total",
				Help:      "Number of shifts.",
			},
			[]string{"grammar"},
		),
		maxFrontier: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "max_frontier",
				Help:      "Largest number of stack tops at one position seen so far.",
			},
			[]string{"grammar"},
		),
		values: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_values",
				Help:      "Number of values of an accepted input.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
			},
			[]string{"grammar"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_duration_seconds",
				Help:      "Time taken by a parse.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"grammar"},
		),
		frontier: map[string]int{},
	}
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.parses,
		r.rounds,
		r.forks,
		r.merges,
		r.reductions,
		r.shifts,
		r.maxFrontier,
		r.values,
		r.duration,
	}
}

func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range r.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe records one parse. res is nil when the parse failed.
func (r *Recorder) Observe(grammar string, res *driver.Result, err error, d time.Duration) {
	r.parses.WithLabelValues(grammar, result(res, err)).Inc()
	r.duration.WithLabelValues(grammar).Observe(d.Seconds())
	if res == nil {
		return
	}

	st := res.Stats
	r.rounds.WithLabelValues(grammar).Observe(float64(st.Rounds))
	r.forks.WithLabelValues(grammar).Add(float64(st.Forks))
	r.merges.WithLabelValues(grammar).Add(float64(st.Merges))
	r.reductions.WithLabelValues(grammar).Add(float64(st.Reductions))
	r.shifts.WithLabelValues(grammar).Add(float64(st.Shifts))
	r.values.WithLabelValues(grammar).Observe(float64(len(res.Values)))

	r.mu.Lock()
	defer r.mu.Unlock()
	if st.MaxFrontier > r.frontier[grammar] {
		r.frontier[grammar] = st.MaxFrontier
		r.maxFrontier.WithLabelValues(grammar).Set(float64(st.MaxFrontier))
	}
}

func result(res *driver.Result, err error) string {
	if err != nil {
		var perr *driver.ParseError
		if errors.As(err, &perr) {
			return resultSyntaxError
		}
		var eerr *driver.ExceptionError
		if errors.As(err, &eerr) {
			return resultException
		}
		return resultError
	}
	switch {
	case res.Truncated:
		return resultTruncated
	case len(res.Values) > 1:
		return resultAmbiguous
	}
	return resultAccepted
}

// WriteText writes every metric gathered from g in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
