package main

import (
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"
)

// ProbeTracer records connection phase timestamps for a single probe via
// httptrace. A tracer must not be reused across probes.
type ProbeTracer struct {
	mu sync.Mutex

	connStart    time.Time
	connAcquired time.Time
	dnsStart     time.Time
	dnsDone      time.Time
	tlsStart     time.Time
	tlsDone      time.Time
	firstByte    time.Time
}

// ProbeTimings is the per-phase breakdown persisted on a sample for
// diagnostics. All values are durations in milliseconds; a phase that did not
// occur (e.g. TLS on a plain HTTP probe) stays zero.
type ProbeTimings struct {
	DNSLookupMs    int64 `json:"dns_lookup_ms"`
	ConnAcquiredMs int64 `json:"conn_acquired_ms"`
	TLSHandshakeMs int64 `json:"tls_handshake_ms"`
	FirstByteMs    int64 `json:"first_byte_ms"`
}

func NewProbeTracer() *ProbeTracer {
	return &ProbeTracer{}
}

func (pt *ProbeTracer) ClientTrace() *httptrace.ClientTrace {
	stamp := func(target *time.Time) {
		pt.mu.Lock()
		*target = time.Now()
		pt.mu.Unlock()
	}

	return &httptrace.ClientTrace{
		GetConn: func(string) {
			stamp(&pt.connStart)
		},
		GotConn: func(httptrace.GotConnInfo) {
			stamp(&pt.connAcquired)
		},
		DNSStart: func(httptrace.DNSStartInfo) {
			stamp(&pt.dnsStart)
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			stamp(&pt.dnsDone)
		},
		TLSHandshakeStart: func() {
			stamp(&pt.tlsStart)
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			stamp(&pt.tlsDone)
		},
		GotFirstResponseByte: func() {
			stamp(&pt.firstByte)
		},
	}
}

// Timings collapses the recorded timestamps into per-phase durations.
func (pt *ProbeTracer) Timings() ProbeTimings {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	var timings ProbeTimings
	elapsed := func(from, to time.Time) int64 {
		if from.IsZero() || to.IsZero() || to.Before(from) {
			return 0
		}
		return to.Sub(from).Milliseconds()
	}

	timings.DNSLookupMs = elapsed(pt.dnsStart, pt.dnsDone)
	timings.ConnAcquiredMs = elapsed(pt.connStart, pt.connAcquired)
	timings.TLSHandshakeMs = elapsed(pt.tlsStart, pt.tlsDone)
	timings.FirstByteMs = elapsed(pt.connAcquired, pt.firstByte)
	return timings
}
