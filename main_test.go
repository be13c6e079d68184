package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb/v2"
)

var db *sql.DB

func TestMain(m *testing.M) {
	var err error
	db, err = sql.Open("duckdb", "")
	if err != nil {
		slog.Error("failed to open duckdb", slog.String("error", err.Error()))
		os.Exit(1)
		return
	}

	setupCtx, setupCancel := context.WithTimeout(context.Background(), time.Minute)
	err = Migrate(db, setupCtx, true)
	if err != nil {
		slog.Error("failed to migrate duckdb", slog.String("error", err.Error()))
		setupCancel()
		os.Exit(1)
		return
	}
	setupCancel()

	exitCode := m.Run()
	if err := db.Close(); err != nil {
		slog.Error("failed to close duckdb", slog.String("error", err.Error()))
	}

	os.Exit(exitCode)
}

// testNode returns a valid node owned by the given user, persisted through
// the node store. Interval and threshold can be overridden afterwards by the
// caller before Create, so it accepts a mutator.
func testNode(t *testing.T, userID string, mutate func(*Node)) Node {
	t.Helper()

	now := time.Now().UTC()
	node := Node{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Name:                "test node",
		EndpointURL:         "http://example.test/ok",
		Method:              "GET",
		Headers:             map[string]string{},
		CheckIntervalMs:     MinCheckIntervalMs,
		ExpectedStatusCodes: []int{200},
		FailureThreshold:    3,
		Status:              NodeStatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if mutate != nil {
		mutate(&node)
	}

	if err := NewNodeStore(db).Create(t.Context(), node); err != nil {
		t.Fatalf("failed to create test node: %v", err)
	}
	return node
}

// stubEndpoint runs an HTTP test server backed by the given handler and
// closes it when the test ends.
func stubEndpoint(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

func sampleCount(t *testing.T, nodeID string) int {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM samples WHERE node_id = ?`, nodeID).Scan(&count)
	if err != nil {
		t.Fatalf("failed to count samples: %v", err)
	}
	return count
}
