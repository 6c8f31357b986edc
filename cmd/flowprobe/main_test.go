// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-fredrickson/resultflow/policyfile"
)

const policies = `
retry:
  api:
    max_retries: 3
    backoff: exponential
    delay: 200ms
    max_delay: 5s
    jitter: full
  quick:
    max_retries: 1
periodic:
  fast:
    interval: 10ms
    max_recoveries: 1
    retry: quick
`

func writePolicies(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policies), 0o600))
	return path
}

func runApp(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).RunContext(ctx, append([]string{"flowprobe"}, args...))
	return stdout.String(), stderr.String(), err
}

// rows returns the whitespace-separated fields of each output line.
func rows(out string) [][]string {
	var r [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		r = append(r, strings.Fields(line))
	}
	return r
}

func TestDelays(t *testing.T) {
	path := writePolicies(t)
	out, _, err := runApp(t, t.Context(), "delays", "-p", path, "--retry", "api", "--attempts", "4")
	require.NoError(t, err)

	r := rows(out)
	require.Len(t, r, 6)
	assert.Equal(t, "strategy: exponential(base=200ms, max=5s, jitter=full)", strings.Join(r[0], " "))
	assert.Equal(t, []string{"ATTEMPT", "DELAY", "TOTAL"}, r[1])
	assert.Equal(t, []string{"1", "200ms", "200ms"}, r[2])
	assert.Equal(t, []string{"2", "400ms", "600ms"}, r[3])
	assert.Equal(t, []string{"3", "800ms", "1.4s"}, r[4])
	assert.Equal(t, []string{"4", "1.6s", "3s"}, r[5])
}

func TestDelaysDefaults(t *testing.T) {
	out, _, err := runApp(t, t.Context(), "delays")
	require.NoError(t, err)
	r := rows(out)
	require.Len(t, r, 3)
	assert.Equal(t, "strategy: immediate", strings.Join(r[0], " "))
	assert.Equal(t, []string{"1", "0s", "0s"}, r[2])
}

func TestDelaysUnknownPolicy(t *testing.T) {
	path := writePolicies(t)
	_, _, err := runApp(t, t.Context(), "delays", "-p", path, "--retry", "missing")
	assert.ErrorIs(t, err, policyfile.ErrUnknownPolicy)
}

type server struct {
	*httptest.Server
	hits atomic.Int64
}

func newServer(t *testing.T, status int) *server {
	t.Helper()
	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestProbeStopsOnClientError(t *testing.T) {
	srv := newServer(t, http.StatusNotFound)
	_, logs, err := runApp(t, t.Context(), "probe", "--url", srv.URL, "--interval", "10ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe stopped after 1 ticks")
	assert.Contains(t, err.Error(), "404 Not Found")
	assert.Contains(t, logs, "periodic session stopped")
	assert.Equal(t, int64(1), srv.hits.Load())
}

func TestProbeWithPolicies(t *testing.T) {
	srv := newServer(t, http.StatusServiceUnavailable)
	path := writePolicies(t)
	_, _, err := runApp(t, t.Context(), "probe", "--url", srv.URL, "-p", path, "--periodic", "fast")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe stopped after 2 ticks")
	assert.Contains(t, err.Error(), "503 Service Unavailable")
	// one retry per tick, one recovery
	assert.Equal(t, int64(4), srv.hits.Load())
}

func TestProbeCancelled(t *testing.T) {
	srv := newServer(t, http.StatusOK)
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	_, logs, err := runApp(t, ctx, "--verbose", "probe", "--url", srv.URL, "--interval", "10ms")
	require.NoError(t, err)
	assert.Contains(t, logs, "probe succeeded")
	assert.Contains(t, logs, "cause=aborted")
}

func TestProbeRequiresURL(t *testing.T) {
	_, _, err := runApp(t, t.Context(), "probe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}
