package visual

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var oracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_oracle_api_duration_seconds",
	Help: "Duration of classifier and OCR API calls",
}, []string{"oracle"})

var oracleCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_oracle_api_count",
	Help: "Number of classifier and OCR API calls, by HTTP status code",
}, []string{"oracle", "status"})
