// Package client issues GET and PUT requests against an S3-compatible endpoint
// using path-style addresses derived from dotted bucket names.
//
// Requests carry Content-MD5, x-amz-content-sha256 and x-amz-date headers but
// are not signed; the secret key only gates the SHA-256 header.
package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/simple-minio-client/internal/auth"
	"github.com/rowjay/simple-minio-client/internal/headers"
	"github.com/rowjay/simple-minio-client/internal/transport"
)

const DefaultTimeout = 15 * time.Second

type state int

const (
	stateOpen state = iota
	stateClosed
)

type Client struct {
	location string
	creds    *auth.Credentials
	builder  *headers.Builder
	timeout  time.Duration
	log      zerolog.Logger

	transportOpts transport.Options

	mu        sync.Mutex
	state     state
	transport transport.Transport
}

type Option func(*Client)

// WithTransport injects the transport. The client takes ownership and closes it on Close.
func WithTransport(tr transport.Transport) Option {
	return func(c *Client) { c.transport = tr }
}

// WithTransportOptions configures the default transport. Ignored when WithTransport is used.
func WithTransportOptions(opts transport.Options) Option {
	return func(c *Client) { c.transportOpts = opts }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.builder.UserAgent = ua
		}
	}
}

func WithConnectionClose(enabled bool) Option {
	return func(c *Client) { c.builder.ConnectionClose = enabled }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.builder.Now = now }
}

// New returns an open client for location (e.g. "http://localhost:9000").
// creds may be nil.
func New(location string, creds *auth.Credentials, opts ...Option) (*Client, error) {
	if location == "" {
		return nil, errors.New("client: location is required")
	}
	c := &Client{
		location: location,
		creds:    creds,
		builder:  headers.NewBuilder(),
		timeout:  DefaultTimeout,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = transport.New(c.transportOpts)
	}
	return c, nil
}

func (c *Client) Location() string { return c.location }

// Get fetches bucket/object. The caller must close the returned stream.
func (c *Client) Get(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	tr, err := c.acquire()
	if err != nil {
		return nil, err
	}
	uri, err := ObjectURI(c.location, bucket, object)
	if err != nil {
		return nil, err
	}
	resp, cancel, err := c.send(ctx, tr, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	return &responseBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// Put uploads body to bucket/fileName. The whole body is read into memory
// before the request is sent.
func (c *Client) Put(ctx context.Context, bucket, fileName string, body io.Reader) error {
	tr, err := c.acquire()
	if err != nil {
		return err
	}
	uri, err := ObjectURI(c.location, bucket, fileName)
	if err != nil {
		return err
	}
	payload := []byte{}
	if body != nil {
		if payload, err = io.ReadAll(body); err != nil {
			return err
		}
	}
	resp, cancel, err := c.send(ctx, tr, http.MethodPut, uri, payload)
	if err != nil {
		return err
	}
	defer cancel(nil)
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Close releases the transport. Later calls return ErrClosed. Calls already in
// flight keep the transport they started with.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosed
	tr := c.transport
	c.transport = nil
	c.mu.Unlock()
	return tr.Close()
}

func (c *Client) acquire() (transport.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return nil, ErrClosed
	}
	return c.transport, nil
}

// send issues the request and checks the status. The timeout covers the wait
// for response headers only; the returned cancel must be called once the body
// is done with.
func (c *Client) send(ctx context.Context, tr transport.Transport, method, uri string, body []byte) (*http.Response, context.CancelCauseFunc, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	// 0 waiting for headers, 1 timed out, 2 headers received.
	var phase atomic.Int32
	timer := time.AfterFunc(c.timeout, func() {
		if phase.CompareAndSwap(0, 1) {
			cancel(ErrTimeout)
		}
	})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, uri, reader)
	if err != nil {
		timer.Stop()
		cancel(nil)
		return nil, nil, errors.Join(ErrInvalidURI, err)
	}
	hdrs := c.builder.Build(body, c.creds)
	hdrs.Apply(req.Header)
	req.Close = c.builder.ConnectionClose

	start := time.Now()
	resp, err := tr.Do(req)
	phase.CompareAndSwap(0, 2)
	timer.Stop()
	if err != nil {
		timedOut := errors.Is(context.Cause(reqCtx), ErrTimeout)
		cancel(err)
		if timedOut {
			return nil, nil, errors.Join(ErrTimeout, err)
		}
		c.log.Debug().Err(err).Str("method", method).Str("uri", uri).Msg("request failed")
		return nil, nil, err
	}

	c.log.Debug().
		Str("method", method).
		Str("uri", uri).
		Int("status", resp.StatusCode).
		Int("body_bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("object request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		cancel(nil)
		return nil, nil, &StatusError{Method: method, URI: uri, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, cancel, nil
}

// responseBody releases the request context when the caller closes the stream.
type responseBody struct {
	io.ReadCloser
	cancel context.CancelCauseFunc
	once   sync.Once
}

func (r *responseBody) Close() error {
	err := r.ReadCloser.Close()
	r.once.Do(func() { r.cancel(nil) })
	return err
}
