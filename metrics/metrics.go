// Package metrics records payment-flow counters and latencies.
package metrics

import "time"

// Event names counted by the payment client.
const (
	EventPaymentChallenge = "payment_challenge"
	EventPaymentSigned    = "payment_signed"
	EventSpendCapExceeded = "spend_cap_exceeded"
	EventSettlementRetry  = "settlement_retry"

	OperationFetch = "fetch"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
