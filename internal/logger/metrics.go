package logger

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes the logger counters as Prometheus counters on reg
func RegisterMetrics(reg prometheus.Registerer) error {
	counters := []struct {
		name  string
		help  string
		value *atomic.Int64
	}{
		{"cvrisk_log_errors_total", "Errors reported through the logger, sampled or not", &TotalErrors},
		{"cvrisk_log_warnings_total", "Warnings reported through the logger, sampled or not", &TotalWarnings},
		{"cvrisk_http_5xx_total", "Responses with a 5xx status", &Total5xxErrors},
		{"cvrisk_http_4xx_total", "Responses with a 4xx status", &Total4xxErrors},
		{"cvrisk_http_400_total", "Responses with status 400", &Total400Errors},
		{"cvrisk_http_404_total", "Responses with status 404", &Total404Errors},
		{"cvrisk_http_429_total", "Responses with status 429", &Total429Errors},
		{"cvrisk_http_slow_requests_total", "Requests slower than the configured threshold", &SlowRequests},
		{"cvrisk_store_warnings_total", "Failed store health checks", &StoreWarnings},
	}

	for _, c := range counters {
		v := c.value
		collector := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: c.name,
			Help: c.help,
		}, func() float64 { return float64(v.Load()) })
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
