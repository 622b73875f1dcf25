package transport

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	DefaultConnectTimeout = 20 * time.Second
	DefaultMaxConcurrent  = 16
)

var ErrClosed = errors.New("transport: closed")

// Transport sends a single HTTP request.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
	Close() error
}

type Options struct {
	ConnectTimeout  time.Duration
	MaxConcurrent   int
	TLSInsecureSkip bool
}

// HTTP is a Transport over net/http that bounds the number of outstanding
// calls. Redirects follow the net/http default policy.
type HTTP struct {
	client *http.Client
	sem    *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
}

func New(opts Options) *HTTP {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	rt := http.DefaultTransport.(*http.Transport).Clone()
	rt.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	rt.TLSHandshakeTimeout = opts.ConnectTimeout
	if opts.TLSInsecureSkip {
		rt.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return Wrap(&http.Client{Transport: rt}, opts.MaxConcurrent)
}

// Wrap adapts an existing client, e.g. one from httptest.
func Wrap(client *http.Client, maxConcurrent int) *HTTP {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &HTTP{client: client, sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Do blocks until a slot is free or the request context is done.
// The slot is released once response headers are received.
func (h *HTTP) Do(req *http.Request) (*http.Response, error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	if err := h.sem.Acquire(req.Context(), 1); err != nil {
		return nil, err
	}
	defer h.sem.Release(1)
	return h.client.Do(req)
}

// Close drops idle connections. In-flight calls are not interrupted.
func (h *HTTP) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.client.CloseIdleConnections()
	return nil
}
