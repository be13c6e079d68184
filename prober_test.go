package main

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestProberExecuteSuccess(t *testing.T) {
	server := stubEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	prober := NewProber(ProberOptions{})
	outcome := prober.Execute(t.Context(), ProbeConfig{
		EndpointURL:         server.URL,
		Method:              "GET",
		ExpectedStatusCodes: []int{200},
	})

	if !outcome.Success {
		t.Errorf("expected success, got failure: %s", outcome.ErrorMessage)
	}
	if outcome.StatusCode != 200 {
		t.Errorf("expected status code 200, got %d", outcome.StatusCode)
	}
	if outcome.StatusText != "OK" {
		t.Errorf("expected status text OK, got %q", outcome.StatusText)
	}
	if outcome.ResponseTimeMs < 0 {
		t.Errorf("expected non-negative response time, got %d", outcome.ResponseTimeMs)
	}
	if outcome.ErrorMessage != "" {
		t.Errorf("expected empty error message, got %q", outcome.ErrorMessage)
	}
	if outcome.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestProberExecuteUnexpectedStatus(t *testing.T) {
	server := stubEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	prober := NewProber(ProberOptions{})
	outcome := prober.Execute(t.Context(), ProbeConfig{
		EndpointURL:         server.URL,
		Method:              "GET",
		ExpectedStatusCodes: []int{200, 201, 204},
	})

	if outcome.Success {
		t.Error("expected failure for unexpected status code")
	}
	if outcome.StatusCode != 503 {
		t.Errorf("expected status code 503, got %d", outcome.StatusCode)
	}
}

func TestProberExecuteCustomExpectedCodes(t *testing.T) {
	server := stubEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	prober := NewProber(ProberOptions{})
	outcome := prober.Execute(t.Context(), ProbeConfig{
		EndpointURL:         server.URL,
		Method:              "GET",
		ExpectedStatusCodes: []int{418},
	})

	if !outcome.Success {
		t.Error("expected success, 418 is in the expected set")
	}
}

func TestProberExecuteTransportFailure(t *testing.T) {
	// A server that is already closed refuses connections.
	server := closedServerURL(t)

	prober := NewProber(ProberOptions{})
	outcome := prober.Execute(t.Context(), ProbeConfig{
		EndpointURL:         server,
		Method:              "GET",
		ExpectedStatusCodes: []int{200},
	})

	if outcome.Success {
		t.Error("expected transport failure")
	}
	if outcome.StatusCode != 0 {
		t.Errorf("expected status code 0 sentinel, got %d", outcome.StatusCode)
	}
	if outcome.StatusText != "Connection Failed" {
		t.Errorf("expected status text \"Connection Failed\", got %q", outcome.StatusText)
	}
	if outcome.ErrorMessage == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestProberExecuteRequestHeadersAndBody(t *testing.T) {
	var receivedHeader string
	var receivedBody []byte
	server := stubEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		receivedHeader = r.Header.Get("X-Probe-Token")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	})

	prober := NewProber(ProberOptions{})
	outcome := prober.Execute(t.Context(), ProbeConfig{
		EndpointURL:         server.URL,
		Method:              "POST",
		Headers:             map[string]string{"X-Probe-Token": "secret"},
		Body:                []byte(`{"ping":true}`),
		ExpectedStatusCodes: []int{201},
	})

	if !outcome.Success {
		t.Errorf("expected success, got failure: %s", outcome.ErrorMessage)
	}
	if receivedHeader != "secret" {
		t.Errorf("expected header to be forwarded, got %q", receivedHeader)
	}
	if string(receivedBody) != `{"ping":true}` {
		t.Errorf("expected body to be forwarded, got %q", receivedBody)
	}
}

func TestProberExecuteTruncatesCapturedBody(t *testing.T) {
	payload := strings.Repeat("a", maxCapturedBodyBytes*2)
	server := stubEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	})

	prober := NewProber(ProberOptions{})
	outcome := prober.Execute(t.Context(), ProbeConfig{
		EndpointURL:         server.URL,
		Method:              "GET",
		ExpectedStatusCodes: []int{200},
	})

	if !outcome.ResponseBody.Valid {
		t.Fatal("expected a captured response body")
	}
	captured := outcome.ResponseBody.String
	if !strings.HasSuffix(captured, "…") {
		t.Error("expected truncated body to end with an ellipsis marker")
	}
	if got := len(captured); got > maxCapturedBodyBytes+len("…") {
		t.Errorf("expected capture bounded at %d bytes, got %d", maxCapturedBodyBytes, got)
	}
}

// closedServerURL returns the URL of a server that no longer accepts
// connections.
func closedServerURL(t *testing.T) string {
	t.Helper()
	server := stubEndpoint(t, func(w http.ResponseWriter, r *http.Request) {})
	url := server.URL
	server.Close()
	return url
}
