package o11y

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faceproof_gateway_requests_total",
		Help: "Gateway round-trips by signed method and outcome.",
	}, []string{"method", "outcome"})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faceproof_verifications_total",
		Help: "Validation judgements by claim type and outcome.",
	}, []string{"claim_type", "outcome"})
)

func CountGatewayRequest(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequests.WithLabelValues(method, outcome).Inc()
}

func CountVerification(claimType string, passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	verifications.WithLabelValues(claimType, outcome).Inc()
}
