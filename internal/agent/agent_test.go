package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New("", "host-1", time.Second, testLogger())
	assert.Error(t, err)

	_, err = New("http://collector:8098", "", time.Second, testLogger())
	assert.Error(t, err)

	a, err := New("http://collector:8098", "host-1", 0, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, a.interval)
}

func TestAgentReportsSamples(t *testing.T) {
	var mu sync.Mutex
	var got []models.Sample

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/agent/report", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var s models.Sample
		require.NoError(t, json.NewDecoder(r.Body).Decode(&s))
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a, err := New(srv.URL, "edge-7", 25*time.Millisecond, testLogger())
	require.NoError(t, err)
	a.collect = func(target string) *models.Sample {
		return &models.Sample{Target: target, TS: time.Now(), CPUPercent: 12}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	err = a.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(got), 2, "immediate report plus interval reports")
	assert.Equal(t, "edge-7", got[0].Target)
	assert.Equal(t, 12.0, got[0].CPUPercent)
}

func TestAgentSurvivesCollectorErrors(t *testing.T) {
	var mu sync.Mutex
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a, err := New(srv.URL, "edge-7", 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	a.collect = func(target string) *models.Sample {
		return &models.Sample{Target: target, TS: time.Now()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()
	_ = a.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, calls, 2, "ticks continue after failed reports")
}
