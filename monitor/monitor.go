// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/services"
	"github.com/wfunc/liargame/turn"
)

type Metrics struct {
	Requests      *prometheus.CounterVec
	AISteps       prometheus.Histogram
	Stops         *prometheus.CounterVec
	LockWait      prometheus.Histogram
	LockTimeouts  prometheus.Counter
	RoundsStarted prometheus.Counter
	RoundsEnded   *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_requests_total",
			Help:      "Step requests by human action type",
		}, []string{"action"}),
		AISteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_steps_per_request",
			Help:      "Automated turns run per step request",
			Buckets:   []float64{0, 1, 2, 4, 8, 16},
		}),
		Stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advance_stops_total",
			Help:      "Why the automated turns stopped",
		}, []string{"reason"}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_lock_wait_seconds",
			Help:      "Time spent waiting for a session lock",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		LockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_lock_timeouts_total",
			Help:      "Session lock acquisitions that gave up",
		}),
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_started_total",
			Help:      "Rounds started, including resets",
		}),
		RoundsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_ended_total",
			Help:      "Rounds ended by winning side",
		}, []string{"winner"}),
	}

	reg.MustRegister(
		m.Requests,
		m.AISteps,
		m.Stops,
		m.LockWait,
		m.LockTimeouts,
		m.RoundsStarted,
		m.RoundsEnded,
	)

	return m
}

// Monitor implements services.Metrics on top of Metrics.
type Monitor struct {
	metrics      *Metrics
	registry     *prometheus.Registry
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

var _ services.Metrics = (*Monitor)(nil)

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// TrackSessions exports the number of sessions with a lock as a gauge.
func (m *Monitor) TrackSessions(namespace string, count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Sessions that have been touched since start",
	}, func() float64 { return float64(count()) }))
}

// Handler serves /metrics and /debug/vars.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	// 添加expvar指标
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

// StartServer serves Handler on addr in the background. The returned
// server is stopped with Shutdown.
func (m *Monitor) StartServer(addr string) *http.Server {
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			return m.RequestCount()
		}))
	})

	srv := &http.Server{Addr: addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Log.Infof("Metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Errorf("Metrics server: %v", err)
		}
	}()
	return srv
}

// expvar names are process-global.
var publishOnce sync.Once

func (m *Monitor) RequestCount() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requestCount
}

func (m *Monitor) ObserveLockWait(wait time.Duration, acquired bool) {
	m.metrics.LockWait.Observe(wait.Seconds())
	if !acquired {
		m.metrics.LockTimeouts.Inc()
	}
}

func (m *Monitor) ObserveStep(action string, steps int, stop turn.StopReason) {
	m.metrics.Requests.WithLabelValues(action).Inc()
	m.metrics.AISteps.Observe(float64(steps))
	m.metrics.Stops.WithLabelValues(string(stop)).Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) RoundStarted() {
	m.metrics.RoundsStarted.Inc()
}

func (m *Monitor) RoundEnded(winner game.Role) {
	m.metrics.RoundsEnded.WithLabelValues(winner.String()).Inc()
}
