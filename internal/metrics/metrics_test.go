package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterTotal sums every series of the named counter family.
func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestCounters(t *testing.T) {
	Register()
	Register()

	reg := prometheus.NewRegistry()
	reg.MustRegister(apiRequests, apiDuration, bookingSubmitted, bookingCanceled, logins)

	cases := []struct {
		name string
		bump func()
	}{
		{"roombook_api_requests_total", func() { ObserveRequest("login", "4xx", 20*time.Millisecond) }},
		{"roombook_booking_canceled_total", IncBookingCanceled},
		{"roombook_booking_submitted_total", func() { IncBookingSubmitted("created") }},
		{"roombook_login_total", func() { IncLogin("ok") }},
	}
	for _, tc := range cases {
		before := counterTotal(t, reg, tc.name)
		tc.bump()
		if got := counterTotal(t, reg, tc.name); got != before+1 {
			t.Errorf("%s = %v, want %v", tc.name, got, before+1)
		}
	}
}
