// Package prober issues the HTTP GET requests that classify a target.
package prober

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazz-dev/sitecheck/internal/result"
)

// Prober checks a single target.
type Prober interface {
	Probe(ctx context.Context, target string) result.Result
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures an HTTP prober.
type Options struct {
	Timeout   time.Duration // per attempt
	Attempts  int
	UserAgent string
	// Rate limits attempts per second across all probes. Zero means unlimited.
	Rate float64
	// Client overrides the default *http.Client.
	Client Doer
	// OnAttemptError is called for every failed attempt. It must not block.
	OnAttemptError func(target string, attempt int, err error)
}

// HTTP probes targets with GET requests, retrying on network failures.
type HTTP struct {
	timeout        time.Duration
	attempts       int
	userAgent      string
	client         Doer
	limiter        *rate.Limiter
	onAttemptError func(string, int, error)
}

// New validates opts and returns an HTTP prober.
func New(opts Options) (*HTTP, error) {
	if opts.Attempts < 1 {
		return nil, fmt.Errorf("attempts must be at least 1, got %d", opts.Attempts)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", opts.Timeout)
	}
	if opts.Rate < 0 {
		return nil, errors.New("rate must not be negative")
	}

	p := &HTTP{
		timeout:        opts.Timeout,
		attempts:       opts.Attempts,
		userAgent:      opts.UserAgent,
		client:         opts.Client,
		onAttemptError: opts.OnAttemptError,
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Rate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return p, nil
}

// Probe returns the status code of the first attempt that gets an HTTP
// response, or result.Failure once every attempt has failed.
func (p *HTTP) Probe(ctx context.Context, target string) result.Result {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		code, err := p.attempt(ctx, target)
		if err == nil {
			return result.Code(code)
		}
		if p.onAttemptError != nil {
			p.onAttemptError(target, attempt, err)
		}
	}
	return result.Failure
}

func (p *HTTP) attempt(ctx context.Context, target string) (int, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
