package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Prediction outcomes used as the outcome label of drift_predictions_total.
const (
	OutcomeOK        = "ok"
	OutcomeTruncated = "truncated"
	OutcomeError     = "error"
)

// PredictionObservation is one completed (or failed) prediction.
type PredictionObservation struct {
	ObjectType string
	Outcome    string
	Duration   time.Duration

	DegradedSteps int
	// TruncationReason is empty when the run reached its requested duration.
	TruncationReason string
	// Pattern is empty when no recommendation was produced.
	Pattern string
}

// DriftCollector bundles Prometheus metrics for drift predictions and the
// RPC surface, and provides helpers to wire them into gRPC servers and HTTP
// handlers.
type DriftCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	Predictions         *prometheus.CounterVec
	IntegrationDuration prometheus.Histogram
	DegradedSteps       prometheus.Histogram
	Truncations         *prometheus.CounterVec
	Recommendations     *prometheus.CounterVec
}

// NewDriftCollector registers drift metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewDriftCollector(reg prometheus.Registerer) (*DriftCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drift_rpc_requests_total",
		Help: "Total number of handled drift RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "drift_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drift_rpc_duration_seconds",
		Help:    "Drift RPC latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"service", "method"}), "drift_rpc_duration_seconds")
	if err != nil {
		return nil, err
	}

	predictions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drift_predictions_total",
		Help: "Drift predictions by object type and outcome (ok, truncated, error).",
	}, []string{"object_type", "outcome"}), "drift_predictions_total")
	if err != nil {
		return nil, err
	}

	integration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "drift_integration_duration_seconds",
		Help:    "Wall time spent integrating one trajectory.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}), "drift_integration_duration_seconds")
	if err != nil {
		return nil, err
	}

	degraded, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "drift_degraded_steps",
		Help:    "Dead-reckoned integration steps per prediction.",
		Buckets: []float64{0, 1, 4, 16, 64, 256, 1024},
	}), "drift_degraded_steps")
	if err != nil {
		return nil, err
	}

	truncations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drift_truncations_total",
		Help: "Trajectories that stopped before their requested duration, by reason.",
	}, []string{"reason"}), "drift_truncations_total")
	if err != nil {
		return nil, err
	}

	recommendations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drift_recommendations_total",
		Help: "Search pattern recommendations by pattern.",
	}, []string{"pattern"}), "drift_recommendations_total")
	if err != nil {
		return nil, err
	}

	return &DriftCollector{
		gatherer:            gatherer,
		RPCRequests:         requests,
		RPCDurations:        durations,
		Predictions:         predictions,
		IntegrationDuration: integration,
		DegradedSteps:       degraded,
		Truncations:         truncations,
		Recommendations:     recommendations,
	}, nil
}

// ObservePrediction records one prediction. A nil collector is a no-op.
func (c *DriftCollector) ObservePrediction(o PredictionObservation) {
	if c == nil {
		return
	}
	objectType := o.ObjectType
	if objectType == "" {
		objectType = "unknown"
	}
	if c.Predictions != nil {
		c.Predictions.WithLabelValues(objectType, o.Outcome).Inc()
	}
	if o.Outcome == OutcomeError {
		return
	}
	if c.IntegrationDuration != nil {
		c.IntegrationDuration.Observe(o.Duration.Seconds())
	}
	if c.DegradedSteps != nil {
		c.DegradedSteps.Observe(float64(o.DegradedSteps))
	}
	if o.TruncationReason != "" && c.Truncations != nil {
		c.Truncations.WithLabelValues(o.TruncationReason).Inc()
	}
	if o.Pattern != "" && c.Recommendations != nil {
		c.Recommendations.WithLabelValues(o.Pattern).Inc()
	}
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *DriftCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *DriftCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *DriftCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
