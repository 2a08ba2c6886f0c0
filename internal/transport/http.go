// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	applog "pulse/internal/log"
)

// HTTPOptions configures an HTTPPoster.
type HTTPOptions struct {
	URL         string
	MinInterval time.Duration // Minimum time between accepted readings.
	Timeout     time.Duration // Per request.
	QueueSize   int

	// HS256 bearer token. Empty disables auth.
	JWTSecret string
	JWTIssuer string
	Subject   string // Usually the device id.

	BreakerThreshold int
	BreakerCooldown  time.Duration

	Client  *http.Client
	OnError func(error) // Called from the worker for every failed post.
}

// HTTPPoster posts readings as JSON to an ingestion endpoint. Send only
// enqueues; a single worker performs the requests and never retries.
type HTTPPoster struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter
	breaker *Breaker
	queue   chan Reading

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	posted atomic.Uint64
	failed atomic.Uint64
}

// NewHTTPPoster validates opts and starts the worker.
func NewHTTPPoster(opts HTTPOptions) (*HTTPPoster, error) {
	if opts.URL == "" {
		return nil, errors.New("http transport: url required")
	}
	if opts.MinInterval <= 0 {
		return nil, errors.New("http transport: min interval must be positive")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	p := &HTTPPoster{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		breaker: NewBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
		queue:   make(chan Reading, opts.QueueSize),
		done:    make(chan struct{}),
	}
	p.breaker.OnStateChange(func(from, to BreakerState) {
		applog.Warnf("HTTPPoster: Circuit %s -> %s", from, to)
	})

	p.wg.Add(1)
	go p.run()

	applog.Infof("HTTPPoster: Posting to %s at most every %s", opts.URL, opts.MinInterval)
	return p, nil
}

// Send enqueues r unless the rate limit has not yet elapsed, in which case
// the reading is skipped silently. An open circuit or full queue is
// reported to the caller.
func (p *HTTPPoster) Send(r Reading) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	if err := p.breaker.Allow(); err != nil {
		return err
	}
	if !p.limiter.Allow() {
		return nil
	}

	select {
	case p.queue <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *HTTPPoster) run() {
	defer p.wg.Done()
	for {
		select {
		case r := <-p.queue:
			err := p.post(r)
			p.breaker.Record(err)
			if err != nil {
				p.failed.Add(1)
				applog.Warnf("HTTPPoster: %v", err)
				if p.opts.OnError != nil {
					p.opts.OnError(err)
				}
				continue
			}
			p.posted.Add(1)
		case <-p.done:
			return
		}
	}
}

func (p *HTTPPoster) post(r Reading) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if p.opts.JWTSecret != "" {
		token, err := p.token(time.Now())
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post failed: %s", resp.Status)
	}
	return nil
}

// token signs a short-lived HS256 token for one request.
func (p *HTTPPoster) token(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    p.opts.JWTIssuer,
		Subject:   p.opts.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.opts.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Posted returns the number of successful posts.
func (p *HTTPPoster) Posted() uint64 { return p.posted.Load() }

// Failed returns the number of failed posts.
func (p *HTTPPoster) Failed() uint64 { return p.failed.Load() }

// BreakerState returns the state of the circuit breaker.
func (p *HTTPPoster) BreakerState() BreakerState { return p.breaker.State() }

// Close stops the worker. Queued readings are discarded.
func (p *HTTPPoster) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
	return nil
}

var _ Transport = (*HTTPPoster)(nil)
