package dintero

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"storefront-checkout-backend/pkg/logger"
)

// Exchange is one request/response pair with the provider. Bodies passed to
// hooks have credentials redacted.
type Exchange struct {
	Operation    string
	Method       string
	URL          string
	RequestBody  []byte
	ResponseBody []byte
	StatusCode   int
	Duration     time.Duration
	Err          error
}

// AuditHook observes every exchange with the provider.
type AuditHook func(ctx context.Context, exchange Exchange)

var (
	metricsOnce             sync.Once
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront_checkout",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total requests sent to the payment provider",
		}, []string{"operation", "status"})

		providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront_checkout",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Duration of payment provider requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"})
	})
}

var redactedKeys = map[string]struct{}{
	"client_secret": {},
	"access_token":  {},
	"authorization": {},
	"password":      {},
}

// Redact replaces credential values in a JSON body. Bodies that are not JSON
// objects are returned unchanged.
func Redact(body []byte) []byte {
	if len(body) == 0 {
		return body
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return body
	}

	encoded, err := json.Marshal(redactValue(decoded))
	if err != nil {
		return body
	}
	return encoded
}

func redactValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, inner := range typed {
			if _, ok := redactedKeys[strings.ToLower(key)]; ok {
				typed[key] = "[REDACTED]"
				continue
			}
			typed[key] = redactValue(inner)
		}
		return typed
	case []interface{}:
		for i, inner := range typed {
			typed[i] = redactValue(inner)
		}
		return typed
	default:
		return value
	}
}

// LogHook writes each exchange to the structured log.
func LogHook(ctx context.Context, exchange Exchange) {
	entry := logger.FromContext(ctx).WithFields(logrus.Fields{
		"provider_operation": exchange.Operation,
		"method":             exchange.Method,
		"url":                exchange.URL,
		"status":             exchange.StatusCode,
		"duration_ms":        exchange.Duration.Milliseconds(),
	})

	if logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		entry = entry.WithFields(logrus.Fields{
			"request_body":  string(exchange.RequestBody),
			"response_body": string(exchange.ResponseBody),
		})
	}

	switch {
	case exchange.Err != nil:
		entry.WithError(exchange.Err).Warn("Payment provider request failed")
	case exchange.StatusCode >= 400:
		entry.Warn("Payment provider returned an error status")
	default:
		entry.Info("Payment provider request completed")
	}
}

// MetricsHook records request counts and latencies.
func MetricsHook(_ context.Context, exchange Exchange) {
	initMetrics()

	status := "error"
	if exchange.Err == nil {
		status = strconv.Itoa(exchange.StatusCode)
	}
	providerRequestsTotal.WithLabelValues(exchange.Operation, status).Inc()
	providerRequestDuration.WithLabelValues(exchange.Operation).Observe(exchange.Duration.Seconds())
}

// Chain runs hooks in order.
func Chain(hooks ...AuditHook) AuditHook {
	return func(ctx context.Context, exchange Exchange) {
		for _, hook := range hooks {
			if hook != nil {
				hook(ctx, exchange)
			}
		}
	}
}

// DefaultAuditHook logs and meters every exchange.
func DefaultAuditHook() AuditHook {
	initMetrics()
	return Chain(LogHook, MetricsHook)
}
