package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const paymentSubsystem = "storepay"

var paymentInitiations = &Metric{
	ID:          "payInit",
	Name:        "payment_initiations_total",
	Description: "Payment initiations, partitioned by provider and result.",
	Type:        "counter_vec",
	Args:        []string{"provider", "result"},
}

var gatewayCallDur = &Metric{
	ID:          "gwDur",
	Name:        "gateway_call_dur_ms",
	Description: "Payment gateway call latency in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"provider", "op", "outcome"},
}

var reconciliations = &Metric{
	ID:          "recon",
	Name:        "reconciliations_total",
	Description: "Applied transaction outcomes, partitioned by source and resulting status.",
	Type:        "counter_vec",
	Args:        []string{"source", "status"},
}

var paymentMetrics = []*Metric{paymentInitiations, gatewayCallDur, reconciliations}

var (
	initCnt  = NewMetric(paymentInitiations, paymentSubsystem).(*prometheus.CounterVec)
	gwDur    = NewMetric(gatewayCallDur, paymentSubsystem).(*prometheus.HistogramVec)
	reconCnt = NewMetric(reconciliations, paymentSubsystem).(*prometheus.CounterVec)

	registerOnce sync.Once
)

func init() {
	paymentInitiations.MetricCollector = initCnt
	gatewayCallDur.MetricCollector = gwDur
	reconciliations.MetricCollector = reconCnt
}

// RegisterPayment registers the payment collectors with reg once per process.
func RegisterPayment(reg prometheus.Registerer, l Logger) {
	registerOnce.Do(func() {
		for _, m := range paymentMetrics {
			if err := reg.Register(m.MetricCollector); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					l.Errorf("%s could not be registered in Prometheus, err=%v", m.Name, err)
				}
			}
		}
	})
}

func IncPaymentInitiation(provider, result string) {
	initCnt.WithLabelValues(provider, result).Inc()
}

func ObserveGatewayCall(provider, op, outcome string, start time.Time) {
	gwDur.WithLabelValues(provider, op, outcome).Observe(MillisecondsSince(start))
}

func IncReconciliation(source, status string) {
	reconCnt.WithLabelValues(source, status).Inc()
}
