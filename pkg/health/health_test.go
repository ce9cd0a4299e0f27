package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func runN(h *Health, p Probe, i, n int) {
	c := h.checks[p][i]
	for range n {
		c.run(context.Background(), h.lg)
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New(zap.NewNop())
	h.Register(Liveness, "goroutines", time.Second, passing)
	h.Register(Liveness, "postgres", time.Second, failing("connection refused"))

	code, body := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.Equal(t, "ok", body.Status)

	runN(h, Liveness, 1, failureThreshold-1)
	code, _ = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below threshold")

	runN(h, Liveness, 1, 1)
	code, body = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"postgres": "connection refused"}, body.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	h := New(zap.NewNop())
	h.Register(Readiness, "postgres", time.Second, passing)
	h.Register(Readiness, "amqp", time.Second, failing("channel closed"))

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	runN(h, Readiness, 1, failureThreshold)
	code, body = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "amqp")
	assert.NotContains(t, body.Checks, "postgres")
	assert.False(t, h.IsReady())

	h.SetReady(false)
	_, body = probe(t, h.ReadyEndpoint)
	assert.Contains(t, body.Checks, "_readiness")
}

func TestCheckRecovers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	down := true
	h := New(zap.New(core))
	h.Register(Readiness, "postgres", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	h.SetReady(true)

	runN(h, Readiness, 0, failureThreshold)
	assert.False(t, h.IsReady())
	assert.Equal(t, 1, logs.FilterMessage("Health check failing").Len())

	down = false
	runN(h, Readiness, 0, successThreshold)
	assert.True(t, h.IsReady())
	assert.Equal(t, 1, logs.FilterMessage("Health check recovered").Len())
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck("postgres", fakePinger{})(context.Background()))

	err := PingCheck("postgres", fakePinger{err: errors.New("refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestStartStop(t *testing.T) {
	h := New(zap.NewNop())
	h.Register(Liveness, "flaky", time.Second, failing("err"))
	h.Register(Readiness, "postgres", time.Second, passing)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}
