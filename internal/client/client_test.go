package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rowjay/simple-minio-client/internal/auth"
	"github.com/rowjay/simple-minio-client/internal/headers"
	"github.com/rowjay/simple-minio-client/internal/transport"
)

const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// stubServer stores PUT bodies by path and serves them back on GET.
type stubServer struct {
	mu       sync.Mutex
	objects  map[string][]byte
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Close  bool
}

func newStubServer(t *testing.T) (*stubServer, *httptest.Server) {
	t.Helper()
	stub := &stubServer{objects: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(srv.Close)
	return stub, srv
}

func (s *stubServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Close: r.Close})
	switch r.Method {
	case http.MethodPut:
		s.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := s.objects[r.URL.Path]
		if !ok {
			http.Error(w, "NoSuchKey", http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *stubServer) put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
}

func (s *stubServer) object(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[path]
}

func (s *stubServer) last() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestClient(t *testing.T, srv *httptest.Server, creds *auth.Credentials, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithTransport(transport.Wrap(srv.Client(), 4))}, opts...)
	c, err := New(srv.URL, creds, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	stub, srv := newStubServer(t)
	c := newTestClient(t, srv, nil)
	ctx := context.Background()
	payload := []byte("the quick brown fox")

	if err := c.Put(ctx, "a.b", "k", bytes.NewReader(payload)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := stub.last(); got.Method != http.MethodPut || got.Path != "/a/b/k" {
		t.Fatalf("unexpected put request: %s %s", got.Method, got.Path)
	}

	rc, err := c.Get(ctx, "a.b", "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("unexpected payload: %q", data)
	}
	if got := stub.last(); got.Method != http.MethodGet || got.Path != "/a/b/k" {
		t.Fatalf("unexpected get request: %s %s", got.Method, got.Path)
	}
}

func TestGetWithCredentialsSendsEmptySHA256(t *testing.T) {
	stub, srv := newStubServer(t)
	stub.put("/bucket/obj", []byte("data"))
	c := newTestClient(t, srv, auth.New("ak", "sk"))

	rc, err := c.Get(context.Background(), "bucket", "obj")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rc.Close()

	hdr := stub.last().Header
	if got := hdr.Get(headers.ContentSHA256); got != emptySHA256 {
		t.Fatalf("unexpected x-amz-content-sha256: %q", got)
	}
	if got := hdr.Get(headers.ContentMD5); got != headers.MD5Base64(nil) {
		t.Fatalf("unexpected Content-MD5: %q", got)
	}
	if got := hdr.Get(headers.UserAgent); got != headers.DefaultUserAgent {
		t.Fatalf("unexpected User-Agent: %q", got)
	}
	if _, err := time.Parse(headers.AmzDateFormat, hdr.Get(headers.AmzDate)); err != nil {
		t.Fatalf("invalid x-amz-date: %v", err)
	}
}

func TestGetWithoutCredentialsSendsNoHashes(t *testing.T) {
	stub, srv := newStubServer(t)
	stub.put("/bucket/obj", []byte("data"))
	c := newTestClient(t, srv, nil)

	rc, err := c.Get(context.Background(), "bucket", "obj")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rc.Close()
	hdr := stub.last().Header
	if hdr.Get(headers.ContentMD5) != "" || hdr.Get(headers.ContentSHA256) != "" {
		t.Fatalf("unexpected hash headers: %v", hdr)
	}
}

func TestPutWithoutCredentialsSendsOnlyMD5(t *testing.T) {
	stub, srv := newStubServer(t)
	c := newTestClient(t, srv, nil)
	payload := []byte("payload")

	if err := c.Put(context.Background(), "bucket", "obj", bytes.NewReader(payload)); err != nil {
		t.Fatalf("put: %v", err)
	}
	hdr := stub.last().Header
	if got := hdr.Get(headers.ContentMD5); got != headers.MD5Base64(payload) {
		t.Fatalf("unexpected Content-MD5: %q", got)
	}
	if got := hdr.Get(headers.ContentSHA256); got != "" {
		t.Fatalf("x-amz-content-sha256 must be absent, got %q", got)
	}
	if got := stub.object("/bucket/obj"); !bytes.Equal(got, payload) {
		t.Fatalf("server received %q", got)
	}
}

func TestPutWithCredentialsHashesPayload(t *testing.T) {
	stub, srv := newStubServer(t)
	c := newTestClient(t, srv, auth.New("ak", "sk"))
	payload := strings.Repeat("x", 100_000)

	if err := c.Put(context.Background(), "bucket", "big", strings.NewReader(payload)); err != nil {
		t.Fatalf("put: %v", err)
	}
	hdr := stub.last().Header
	if got := hdr.Get(headers.ContentSHA256); got != headers.SHA256Hex([]byte(payload)) {
		t.Fatalf("unexpected x-amz-content-sha256: %q", got)
	}
	if got := stub.object("/bucket/big"); len(got) != len(payload) {
		t.Fatalf("server received %d bytes", len(got))
	}
}

func TestPutNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "AccessDenied", http.StatusForbidden)
	}))
	defer srv.Close()
	c := newTestClient(t, srv, nil)

	err := c.Put(context.Background(), "bucket", "obj", strings.NewReader("x"))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden || statusErr.Method != http.MethodPut {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestGetMissingObject(t *testing.T) {
	_, srv := newStubServer(t)
	c := newTestClient(t, srv, nil)

	_, err := c.Get(context.Background(), "bucket", "missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestCloseFailsFast(t *testing.T) {
	_, srv := newStubServer(t)
	c := newTestClient(t, srv, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := c.Get(context.Background(), "bucket", "obj"); !errors.Is(err, ErrClosed) {
			t.Errorf("get after close: expected ErrClosed, got %v", err)
		}
		if err := c.Put(context.Background(), "bucket", "obj", strings.NewReader("x")); !errors.Is(err, ErrClosed) {
			t.Errorf("put after close: expected ErrClosed, got %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("calls after close did not return")
	}
}

func TestCloseClosesInjectedTransport(t *testing.T) {
	fake := &fakeTransport{status: http.StatusOK}
	c, err := New("http://example.invalid", nil, WithTransport(fake))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = c.Close()
	if !fake.closed {
		t.Fatalf("transport was not closed")
	}
}

func TestMalformedObjectName(t *testing.T) {
	fake := &fakeTransport{status: http.StatusOK}
	c, err := New("http://example.invalid", nil, WithTransport(fake))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	for _, object := range []string{"with space", "bad%zz", "a{b}", "tab\tname"} {
		if _, err := c.Get(context.Background(), "bucket", object); !errors.Is(err, ErrInvalidURI) {
			t.Fatalf("object %q: expected ErrInvalidURI, got %v", object, err)
		}
	}
	if err := c.Put(context.Background(), "bucket", "x y", strings.NewReader("x")); !errors.Is(err, ErrInvalidURI) {
		t.Fatalf("expected ErrInvalidURI, got %v", err)
	}
	if len(fake.requests) != 0 {
		t.Fatalf("transport should not be called for malformed input")
	}
}

func TestRelativeLocationRejected(t *testing.T) {
	c, err := New("localhost", nil, WithTransport(&fakeTransport{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()
	if _, err := c.Get(context.Background(), "bucket", "obj"); !errors.Is(err, ErrInvalidURI) {
		t.Fatalf("expected ErrInvalidURI, got %v", err)
	}
}

func TestEmptyLocation(t *testing.T) {
	if _, err := New("", nil); err == nil {
		t.Fatalf("expected error for empty location")
	}
}

func TestHeaderNamesKeepCase(t *testing.T) {
	fake := &fakeTransport{status: http.StatusOK}
	c, err := New("http://example.invalid", auth.New("ak", "sk"), WithTransport(fake), WithConnectionClose(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if err := c.Put(context.Background(), "a.b.c", "obj", strings.NewReader("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	req := fake.requests[0]
	for _, name := range []string{headers.ContentMD5, headers.ContentSHA256, headers.AmzDate, headers.UserAgent, headers.Connection} {
		if _, ok := req.Header[name]; !ok {
			t.Fatalf("header %q missing: %v", name, req.Header)
		}
	}
	if !req.Close {
		t.Fatalf("request should ask for connection close")
	}
	if req.URL.Path != "/a/b/c/obj" {
		t.Fatalf("unexpected path: %s", req.URL.Path)
	}
}

func TestConnectionCloseOnWire(t *testing.T) {
	stub, srv := newStubServer(t)
	c := newTestClient(t, srv, nil, WithConnectionClose(true))
	if err := c.Put(context.Background(), "bucket", "obj", strings.NewReader("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !stub.last().Close {
		t.Fatalf("server did not see Connection: close")
	}
}

func TestFixedClockAndUserAgent(t *testing.T) {
	fake := &fakeTransport{status: http.StatusOK}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c, err := New("http://example.invalid", nil,
		WithTransport(fake),
		WithClock(func() time.Time { return now }),
		WithUserAgent("smc-test/1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	rc, err := c.Get(context.Background(), "bucket", "obj")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rc.Close()
	req := fake.requests[0]
	if got := req.Header[headers.AmzDate][0]; got != "20240501T120000Z" {
		t.Fatalf("unexpected x-amz-date: %s", got)
	}
	if got := req.Header.Get(headers.UserAgent); got != "smc-test/1" {
		t.Fatalf("unexpected user agent: %s", got)
	}
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv, nil, WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := c.Get(context.Background(), "bucket", "slow")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout took too long")
	}
}

func TestLateSuccessIsNotTimeout(t *testing.T) {
	slow := &delayedTransport{delay: 60 * time.Millisecond}
	c, err := New("http://example.test", nil, WithTransport(slow), WithTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()
	if err := c.Put(context.Background(), "bucket", "obj", strings.NewReader("x")); err != nil {
		t.Fatalf("successful response reported as failure: %v", err)
	}
}

func TestTimeoutDoesNotCutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("slow body"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, WithTimeout(30*time.Millisecond))
	rc, err := c.Get(context.Background(), "bucket", "obj")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || string(data) != "slow body" {
		t.Fatalf("unexpected body: %q (%v)", data, err)
	}
}

func TestTransportFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	location := srv.URL
	srv.Close()

	c, err := New(location, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()
	_, err = c.Get(context.Background(), "bucket", "obj")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected a plain transport error, got %v", err)
	}
}

func TestConcurrentCalls(t *testing.T) {
	_, srv := newStubServer(t)
	c := newTestClient(t, srv, auth.New("ak", "sk"))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			if err := c.Put(ctx, "bucket", key, strings.NewReader(key)); err != nil {
				errs <- err
				return
			}
			rc, err := c.Get(ctx, "bucket", key)
			if err != nil {
				errs <- err
				return
			}
			defer rc.Close()
			data, _ := io.ReadAll(rc)
			if string(data) != key {
				errs <- errors.New("payload mismatch for " + key)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}

type fakeTransport struct {
	mu       sync.Mutex
	status   int
	body     []byte
	requests []*http.Request
	closed   bool
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(f.body)),
		Request:    req,
	}, nil
}

// delayedTransport answers 200 after delay regardless of the request context.
type delayedTransport struct {
	delay time.Duration
}

func (d *delayedTransport) Do(req *http.Request) (*http.Response, error) {
	time.Sleep(d.delay)
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Request:    req,
	}, nil
}

func (d *delayedTransport) Close() error { return nil }

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}
