package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/strategos-engine/internal/gateway"
)

func TestSpawn_ReturnsIDOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spawn-from-template", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "worker-123"})
	}))
	defer srv.Close()

	g := gateway.New(srv.URL, "test-token", 100, nil)
	id, err := g.Spawn(context.Background(), "research", "label", "/tmp/proj", "", "investigate")
	require.NoError(t, err)
	assert.Equal(t, "worker-123", id)
}

func TestSpawn_NonTransientFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("validation failed: label too long"))
	}))
	defer srv.Close()

	g := gateway.New(srv.URL, "", 100, nil)
	_, err := g.Spawn(context.Background(), "research", "label", "/tmp/proj", "", "investigate")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSpawn_TransientRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("server error"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "worker-456"})
	}))
	defer srv.Close()

	g := gateway.New(srv.URL, "", 100, nil)

	start := time.Now()
	id, err := g.Spawn(context.Background(), "research", "label", "/tmp/proj", "", "investigate")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "worker-456", id)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(t, elapsed, 3*time.Second)
}

func TestSpawn_CancelledContextStopsRetryLoop(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := gateway.New(srv.URL, "", 100, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := g.Spawn(ctx, "research", "label", "/tmp/proj", "", "investigate")
	require.Error(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestWaitForDone_PollsUntilTerminalSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			fmt.Fprint(w, "running healthy 40% investigating")
			return
		}
		fmt.Fprint(w, "done healthy 100% complete")
	}))
	defer srv.Close()

	g := gateway.New(srv.URL, "", 100, nil)
	line, err := g.WaitForDone(context.Background(), "worker-1", 0)
	require.NoError(t, err)
	assert.Contains(t, line, "done")
}

func TestWaitForDone_TerminalFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "failed unhealthy 0% aborted")
	}))
	defer srv.Close()

	g := gateway.New(srv.URL, "", 100, nil)
	_, err := g.WaitForDone(context.Background(), "worker-1", time.Minute)
	require.Error(t, err)
}

func TestDelete_SwallowsErrors(t *testing.T) {
	g := gateway.New("http://127.0.0.1:1", "", 100, nil)
	assert.NotPanics(t, func() {
		g.Delete(context.Background(), "worker-1")
	})
}
