package main

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/guregu/null/v5"
)

// NodeStatus represents the lifecycle state of a monitored node.
type NodeStatus string

const (
	// NodeStatusActive means the node is scheduled and its latest probes succeed.
	NodeStatusActive NodeStatus = "active"
	// NodeStatusPaused means the user suspended probing; no timer exists for the node.
	NodeStatusPaused NodeStatus = "paused"
	// NodeStatusWarning means the node accumulated two or more consecutive failures
	// but has not yet reached its failure threshold.
	NodeStatusWarning NodeStatus = "warning"
	// NodeStatusDown means consecutive failures reached the node's failure threshold.
	NodeStatusDown NodeStatus = "down"
)

const (
	// MinCheckIntervalMs and MaxCheckIntervalMs bound check_interval_ms, inclusive.
	MinCheckIntervalMs = 15_000
	MaxCheckIntervalMs = 3_600_000

	// MinFailureThreshold and MaxFailureThreshold bound failure_threshold, inclusive.
	MinFailureThreshold = 1
	MaxFailureThreshold = 10

	// DefaultFailureThreshold applies when a create request omits the field.
	DefaultFailureThreshold = 3

	maxNodeNameLength = 100
)

var allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

var defaultExpectedStatusCodes = []int{200, 201, 204}

// Node is a user-owned monitored endpoint plus its probing state.
type Node struct {
	ID                  string            `db:"id" json:"id"`
	UserID              string            `db:"user_id" json:"user_id"`
	Name                string            `db:"name" json:"name"`
	EndpointURL         string            `db:"endpoint_url" json:"endpoint_url"`
	Method              string            `db:"method" json:"method"`
	Headers             map[string]string `db:"headers" json:"headers"`
	Body                []byte            `db:"body" json:"body,omitempty"`
	CheckIntervalMs     int               `db:"check_interval_ms" json:"check_interval_ms"`
	ExpectedStatusCodes []int             `db:"expected_status_codes" json:"expected_status_codes"`
	FailureThreshold    int               `db:"failure_threshold" json:"failure_threshold"`
	Status              NodeStatus        `db:"status" json:"status"`
	ConsecutiveFailures int               `db:"consecutive_failures" json:"consecutive_failures"`
	LastCheckAt         null.Time         `db:"last_check_at" json:"last_check_at"`
	CreatedAt           time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time         `db:"updated_at" json:"updated_at"`
}

// Scheduled reports whether the scheduler should hold a timer for the node.
func (n Node) Scheduled() bool {
	return n.Status != NodeStatusPaused
}

// ProbeConfig is the effective configuration handed to the prober.
type ProbeConfig struct {
	EndpointURL         string            `json:"endpoint_url"`
	Method              string            `json:"method"`
	Headers             map[string]string `json:"headers"`
	Body                []byte            `json:"body,omitempty"`
	ExpectedStatusCodes []int             `json:"expected_status_codes"`
}

// ProbeConfig returns the node's effective probe configuration.
func (n Node) ProbeConfig() ProbeConfig {
	return ProbeConfig{
		EndpointURL:         n.EndpointURL,
		Method:              n.Method,
		Headers:             n.Headers,
		Body:                n.Body,
		ExpectedStatusCodes: n.ExpectedStatusCodes,
	}
}

// NodeSpec is a create request. Zero values fall back to the documented defaults.
type NodeSpec struct {
	Name                string            `json:"name"`
	EndpointURL         string            `json:"endpoint_url"`
	Method              string            `json:"method"`
	Headers             map[string]string `json:"headers"`
	Body                []byte            `json:"body"`
	CheckIntervalMs     int               `json:"check_interval_ms"`
	ExpectedStatusCodes []int             `json:"expected_status_codes"`
	FailureThreshold    int               `json:"failure_threshold"`
}

// NodePatch is a partial update. Nil fields are left untouched.
type NodePatch struct {
	Name                *string            `json:"name"`
	EndpointURL         *string            `json:"endpoint_url"`
	Method              *string            `json:"method"`
	Headers             *map[string]string `json:"headers"`
	Body                *[]byte            `json:"body"`
	CheckIntervalMs     *int               `json:"check_interval_ms"`
	ExpectedStatusCodes *[]int             `json:"expected_status_codes"`
	FailureThreshold    *int               `json:"failure_threshold"`
}

// withDefaults fills the spec's omitted fields in place.
func (s *NodeSpec) withDefaults() {
	if s.Method == "" {
		s.Method = "GET"
	}
	// An explicitly empty list is kept so validation can reject it; only an
	// omitted field gets the default.
	if s.ExpectedStatusCodes == nil {
		s.ExpectedStatusCodes = slices.Clone(defaultExpectedStatusCodes)
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
}

// Validate checks the spec against the accepted ranges. It assumes defaults
// have already been applied.
func (s NodeSpec) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(s.Name) > maxNodeNameLength {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", maxNodeNameLength)}
	}
	if err := validateEndpointURL(s.EndpointURL); err != nil {
		return err
	}
	if !slices.Contains(allowedMethods, s.Method) {
		return &ValidationError{Field: "method", Reason: "must be one of " + strings.Join(allowedMethods, ", ")}
	}
	if s.CheckIntervalMs < MinCheckIntervalMs || s.CheckIntervalMs > MaxCheckIntervalMs {
		return &ValidationError{Field: "check_interval_ms", Reason: fmt.Sprintf("must be between %d and %d", MinCheckIntervalMs, MaxCheckIntervalMs)}
	}
	if len(s.ExpectedStatusCodes) == 0 {
		return &ValidationError{Field: "expected_status_codes", Reason: "must not be empty"}
	}
	for _, code := range s.ExpectedStatusCodes {
		if code < 100 || code > 599 {
			return &ValidationError{Field: "expected_status_codes", Reason: fmt.Sprintf("code %d is outside 100-599", code)}
		}
	}
	if s.FailureThreshold < MinFailureThreshold || s.FailureThreshold > MaxFailureThreshold {
		return &ValidationError{Field: "failure_threshold", Reason: fmt.Sprintf("must be between %d and %d", MinFailureThreshold, MaxFailureThreshold)}
	}
	return nil
}

func validateEndpointURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "endpoint_url", Reason: "must not be empty"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "endpoint_url", Reason: "must be a valid URL"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: "endpoint_url", Reason: "must use http or https"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "endpoint_url", Reason: "must be an absolute URL"}
	}
	return nil
}

// apply merges the patch into a copy of the node and returns it. The result
// still needs validation.
func (p NodePatch) apply(node Node) Node {
	if p.Name != nil {
		node.Name = *p.Name
	}
	if p.EndpointURL != nil {
		node.EndpointURL = *p.EndpointURL
	}
	if p.Method != nil {
		node.Method = *p.Method
	}
	if p.Headers != nil {
		node.Headers = *p.Headers
	}
	if p.Body != nil {
		node.Body = *p.Body
	}
	if p.CheckIntervalMs != nil {
		node.CheckIntervalMs = *p.CheckIntervalMs
	}
	if p.ExpectedStatusCodes != nil {
		node.ExpectedStatusCodes = *p.ExpectedStatusCodes
	}
	if p.FailureThreshold != nil {
		node.FailureThreshold = *p.FailureThreshold
	}
	return node
}

// spec converts a node back into the shape Validate understands.
func (n Node) spec() NodeSpec {
	return NodeSpec{
		Name:                n.Name,
		EndpointURL:         n.EndpointURL,
		Method:              n.Method,
		Headers:             n.Headers,
		Body:                n.Body,
		CheckIntervalMs:     n.CheckIntervalMs,
		ExpectedStatusCodes: n.ExpectedStatusCodes,
		FailureThreshold:    n.FailureThreshold,
	}
}
