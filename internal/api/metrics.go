package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BTreeMap/Parabola/internal/models"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
}

// newHTTPMetrics registers request counters and gauges reading the live
// session state of s.
func newHTTPMetrics(reg prometheus.Registerer, s *Server) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parabola",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
	}
	focusRemaining := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "parabola",
		Subsystem: "focus",
		Name:      "remaining_seconds",
		Help:      "Seconds left on the focus countdown.",
	}, func() float64 { return float64(s.focus.State().RemainingSeconds) })
	focusRunning := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "parabola",
		Subsystem: "focus",
		Name:      "running",
		Help:      "1 while the focus countdown is running.",
	}, func() float64 { return boolGauge(s.focus.State().Status == models.CountdownRunning) })
	breathCycles := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "parabola",
		Subsystem: "breath",
		Name:      "cycles",
		Help:      "Completed cycles of the current breathing session.",
	}, func() float64 { return float64(s.breath.State().CycleCount) })
	reg.MustRegister(m.requests, focusRemaining, focusRunning, breathCycles)
	return m
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}
