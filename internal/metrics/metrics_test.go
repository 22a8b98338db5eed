package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestMetricsRegistration(t *testing.T) {
	if LoginAttemptsTotal == nil {
		t.Error("LoginAttemptsTotal metric not registered")
	}
	if LoginFailuresTotal == nil {
		t.Error("LoginFailuresTotal metric not registered")
	}
	if TokensIssuedTotal == nil {
		t.Error("TokensIssuedTotal metric not registered")
	}
	if TokenRejectionsTotal == nil {
		t.Error("TokenRejectionsTotal metric not registered")
	}
	if UploadsTotal == nil {
		t.Error("UploadsTotal metric not registered")
	}
}

func TestRecordLoginSuccess(t *testing.T) {
	before := getCounterValue(LoginAttemptsTotal.WithLabelValues("success"))

	RecordLoginSuccess()

	after := getCounterValue(LoginAttemptsTotal.WithLabelValues("success"))
	if after <= before {
		t.Errorf("expected counter to increment, got before=%f, after=%f", before, after)
	}
}

func TestRecordLoginFailure(t *testing.T) {
	beforeAttempts := getCounterValue(LoginAttemptsTotal.WithLabelValues("failure"))
	beforeFailures := getCounterValue(LoginFailuresTotal.WithLabelValues("upstream_auth"))

	RecordLoginFailure("upstream_auth")

	if getCounterValue(LoginAttemptsTotal.WithLabelValues("failure")) <= beforeAttempts {
		t.Error("expected LoginAttemptsTotal to increment")
	}
	if getCounterValue(LoginFailuresTotal.WithLabelValues("upstream_auth")) <= beforeFailures {
		t.Error("expected LoginFailuresTotal to increment")
	}
}

func TestRecordTokenRejected(t *testing.T) {
	before := getCounterValue(TokenRejectionsTotal.WithLabelValues("expired"))

	RecordTokenRejected("expired")

	if getCounterValue(TokenRejectionsTotal.WithLabelValues("expired")) <= before {
		t.Error("expected TokenRejectionsTotal to increment")
	}
}

func TestRecordUpload(t *testing.T) {
	before := getCounterValue(UploadsTotal)

	RecordUpload(2048)

	if getCounterValue(UploadsTotal) <= before {
		t.Error("expected UploadsTotal to increment")
	}
}
