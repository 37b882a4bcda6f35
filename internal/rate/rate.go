// Package rate spaces outbound requests to providers with strict
// usage policies.
package rate

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// LimitError is returned when a call is blocked by a provider cooldown.
type LimitError struct {
	Provider string
	RetryAt  time.Time
}

func (e LimitError) Error() string {
	return fmt.Sprintf("%s rate limited, retry at %s", e.Provider, e.RetryAt.UTC().Format(time.RFC3339))
}

// Limiter enforces a minimum spacing between requests and backs off
// when the provider answers 429.
type Limiter struct {
	provider string
	spacing  time.Duration
	cooldown time.Duration

	mu       sync.Mutex
	nextCall time.Time
}

func NewLimiter(provider string, spacing, cooldown time.Duration) *Limiter {
	return &Limiter{provider: provider, spacing: spacing, cooldown: cooldown}
}

// reserve blocks the caller until a slot is free, or returns a
// LimitError when a provider cooldown is active.
func (l *Limiter) reserve() error {
	l.mu.Lock()
	now := time.Now()
	wait := l.nextCall.Sub(now)
	if wait > l.spacing {
		// Longer than normal spacing means an active 429 cooldown.
		retryAt := l.nextCall
		l.mu.Unlock()
		return LimitError{Provider: l.provider, RetryAt: retryAt}
	}
	l.nextCall = now.Add(l.spacing)
	if wait > 0 {
		l.nextCall = l.nextCall.Add(wait)
	}
	l.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
	return nil
}

// observe applies the provider's response to future scheduling.
func (l *Limiter) observe(status int) {
	if status != http.StatusTooManyRequests {
		return
	}
	l.mu.Lock()
	l.nextCall = time.Now().Add(l.cooldown)
	l.mu.Unlock()
}

// WrapHTTP returns a client whose requests respect the limiter.
func WrapHTTP(limiter *Limiter, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &roundTripper{base: transport, limiter: limiter}
	return &client
}

type roundTripper struct {
	base    http.RoundTripper
	limiter *Limiter
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.limiter.reserve(); err != nil {
		return nil, err
	}
	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	rt.limiter.observe(resp.StatusCode)
	return resp, nil
}
