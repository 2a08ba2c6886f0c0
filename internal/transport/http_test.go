// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestServer struct {
	mu       sync.Mutex
	readings []Reading
	auth     []string
	status   int
	*httptest.Server
}

func newIngestServer(t *testing.T, status int) *ingestServer {
	t.Helper()
	s := &ingestServer{status: status}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reading Reading
		if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.readings = append(s.readings, reading)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()
		w.WriteHeader(s.status)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *ingestServer) received() []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reading(nil), s.readings...)
}

func (s *ingestServer) headers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth...)
}

func TestNewHTTPPosterValidation(t *testing.T) {
	_, err := NewHTTPPoster(HTTPOptions{MinInterval: time.Second})
	assert.Error(t, err)

	_, err = NewHTTPPoster(HTTPOptions{URL: "http://localhost"})
	assert.Error(t, err)
}

func TestHTTPPosterPostsJSON(t *testing.T) {
	srv := newIngestServer(t, http.StatusAccepted)
	p, err := NewHTTPPoster(HTTPOptions{URL: srv.URL, MinInterval: time.Nanosecond, QueueSize: 4})
	require.NoError(t, err)
	defer p.Close()

	want := Reading{DeviceID: "dev-1", BPMSmoothed: 72, BPMRaw: 73.2, Status: "normal", Phase: "NORMAL", Source: "simulator"}
	require.NoError(t, p.Send(want))

	require.Eventually(t, func() bool { return p.Posted() == 1 }, 2*time.Second, 5*time.Millisecond)
	got := srv.received()
	require.Len(t, got, 1)
	assert.Equal(t, "dev-1", got[0].DeviceID)
	assert.Equal(t, 72.0, got[0].BPMSmoothed)
	assert.Equal(t, "normal", got[0].Status)
	assert.Empty(t, srv.headers()[0])
}

func TestHTTPPosterRateLimitSkips(t *testing.T) {
	srv := newIngestServer(t, http.StatusOK)
	p, err := NewHTTPPoster(HTTPOptions{URL: srv.URL, MinInterval: time.Hour, QueueSize: 4})
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Send(Reading{BPMSmoothed: float64(60 + i)}))
	}

	require.Eventually(t, func() bool { return p.Posted() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	got := srv.received()
	require.Len(t, got, 1)
	assert.Equal(t, 60.0, got[0].BPMSmoothed)
}

func TestHTTPPosterSignsToken(t *testing.T) {
	srv := newIngestServer(t, http.StatusOK)
	p, err := NewHTTPPoster(HTTPOptions{
		URL:         srv.URL,
		MinInterval: time.Nanosecond,
		JWTSecret:   "s3cret",
		JWTIssuer:   "pulse",
		Subject:     "dev-1",
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Send(Reading{DeviceID: "dev-1"}))
	require.Eventually(t, func() bool { return p.Posted() == 1 }, 2*time.Second, 5*time.Millisecond)

	header := srv.headers()[0]
	require.True(t, strings.HasPrefix(header, "Bearer "))

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "pulse", claims.Issuer)
	assert.Equal(t, "dev-1", claims.Subject)
}

func TestHTTPPosterBreakerOpens(t *testing.T) {
	srv := newIngestServer(t, http.StatusInternalServerError)
	var mu sync.Mutex
	var errs []error
	p, err := NewHTTPPoster(HTTPOptions{
		URL:              srv.URL,
		MinInterval:      time.Nanosecond,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Hour,
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Send(Reading{}))
	require.Eventually(t, func() bool { return p.Failed() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, BreakerClosed, p.BreakerState())

	require.NoError(t, p.Send(Reading{}))
	require.Eventually(t, func() bool { return p.Failed() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, BreakerOpen, p.BreakerState())

	assert.ErrorIs(t, p.Send(Reading{}), ErrCircuitOpen)
	assert.Zero(t, p.Posted())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 2
	}, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, errs[0].Error(), "500")
}

func TestHTTPPosterQueueFull(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}))
	defer srv.Close()

	p, err := NewHTTPPoster(HTTPOptions{URL: srv.URL, MinInterval: time.Nanosecond, QueueSize: 1})
	require.NoError(t, err)

	require.NoError(t, p.Send(Reading{}))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the server")
	}

	require.NoError(t, p.Send(Reading{}))
	assert.ErrorIs(t, p.Send(Reading{}), ErrQueueFull)

	close(release)
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Send(Reading{}), ErrClosed)
}
