package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"slices"
	"strings"
	"time"

	"github.com/guregu/null/v5"
)

// probeTimeout is the hard deadline for one probe, covering connection, TLS,
// request write and response body drain. It is not user-configurable.
const probeTimeout = 30 * time.Second

// maxCapturedBodyBytes bounds the diagnostic response body capture.
const maxCapturedBodyBytes = 10_000

const transportFailureStatusText = "Connection Failed"

// ProbeOutcome is the structured result of one probe. Execute always returns
// one; transport-level failures are encoded with StatusCode 0 rather than an
// error.
type ProbeOutcome struct {
	StatusCode      int               `json:"status_code"`
	StatusText      string            `json:"status_text"`
	ResponseTimeMs  int64             `json:"response_time_ms"`
	Success         bool              `json:"success"`
	ErrorMessage    string            `json:"error_message"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    null.String       `json:"response_body,omitempty"`
	TlsVersion      null.String       `json:"tls_version,omitempty"`
	TlsCipher       null.String       `json:"tls_cipher,omitempty"`
	TlsExpiry       null.Time         `json:"tls_expiry,omitempty"`
	Timings         ProbeTimings      `json:"timings,omitzero"`
	CompletedAt     time.Time         `json:"completed_at"`
}

// Prober executes single outbound probes. It holds no state besides the
// transport and never mutates anything.
type Prober struct {
	httpClient *http.Client
}

type ProberOptions struct {
	// HttpClient overrides the default probing client; used by tests.
	HttpClient *http.Client
}

func NewProber(options ProberOptions) *Prober {
	if options.HttpClient == nil {
		options.HttpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				TLSClientConfig:       &tls.Config{},
			},
			Timeout: probeTimeout,
		}
	}
	return &Prober{httpClient: options.HttpClient}
}

// Execute performs one probe against the given configuration and classifies
// the result. It blocks until the probe completes or the 30 second deadline
// fires.
func (p *Prober) Execute(ctx context.Context, config ProbeConfig) ProbeOutcome {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	tracer := NewProbeTracer()
	ctx = httptrace.WithClientTrace(ctx, tracer.ClientTrace())

	var requestBody io.Reader
	if len(config.Body) > 0 && methodCarriesBody(config.Method) {
		requestBody = bytes.NewReader(config.Body)
	}

	start := time.Now()
	request, err := http.NewRequestWithContext(ctx, config.Method, config.EndpointURL, requestBody)
	if err != nil {
		return transportFailure(start, tracer, err)
	}
	request.Header.Set("User-Agent", "roost-prober/1.0")
	for key, value := range config.Headers {
		request.Header.Set(key, value)
	}

	response, err := p.httpClient.Do(request)
	if err != nil {
		return transportFailure(start, tracer, err)
	}
	defer func() {
		if response.Body != nil {
			_ = response.Body.Close()
		}
	}()

	// Drain the full body so the measured time covers the complete exchange,
	// keeping at most maxCapturedBodyBytes for diagnostics.
	captured, readErr := drainBody(response.Body)
	responseTime := time.Since(start)
	if readErr != nil {
		return transportFailure(start, tracer, readErr)
	}

	outcome := ProbeOutcome{
		StatusCode:     response.StatusCode,
		StatusText:     statusText(response),
		ResponseTimeMs: responseTime.Milliseconds(),
		Success:        slices.Contains(config.ExpectedStatusCodes, response.StatusCode),
		Timings:        tracer.Timings(),
		CompletedAt:    time.Now(),
	}

	if len(captured) > 0 {
		outcome.ResponseBody = null.StringFrom(string(captured))
	}

	outcome.ResponseHeaders = make(map[string]string, len(response.Header))
	for key := range response.Header {
		outcome.ResponseHeaders[key] = response.Header.Get(key)
	}

	if response.TLS != nil {
		outcome.TlsVersion = null.StringFrom(tls.VersionName(response.TLS.Version))
		outcome.TlsCipher = null.StringFrom(tls.CipherSuiteName(response.TLS.CipherSuite))

		if len(response.TLS.PeerCertificates) > 0 {
			// The first element is the leaf certificate the connection is
			// verified against.
			leaf := response.TLS.PeerCertificates[0]
			if leaf != nil {
				outcome.TlsExpiry = null.TimeFrom(leaf.NotAfter)
			}
		}
	}

	return outcome
}

func transportFailure(start time.Time, tracer *ProbeTracer, err error) ProbeOutcome {
	return ProbeOutcome{
		StatusCode:     0,
		StatusText:     transportFailureStatusText,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Success:        false,
		ErrorMessage:   err.Error(),
		Timings:        tracer.Timings(),
		CompletedAt:    time.Now(),
	}
}

func methodCarriesBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// drainBody reads the response body to EOF, returning at most
// maxCapturedBodyBytes of it with a trailing ellipsis when truncated.
func drainBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	captured := make([]byte, 0, 512)
	buffer := make([]byte, 4096)
	truncated := false
	for {
		n, err := body.Read(buffer)
		if n > 0 {
			if remaining := maxCapturedBodyBytes - len(captured); remaining > 0 {
				if n > remaining {
					captured = append(captured, buffer[:remaining]...)
					truncated = true
				} else {
					captured = append(captured, buffer[:n]...)
				}
			} else {
				truncated = true
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}

	if truncated {
		captured = append(captured, []byte("…")...)
	}
	return captured, nil
}

// statusText extracts the reason phrase from the response status line,
// falling back to the stdlib's canonical text.
func statusText(response *http.Response) string {
	if _, phrase, found := strings.Cut(response.Status, " "); found && phrase != "" {
		return phrase
	}
	return http.StatusText(response.StatusCode)
}
