package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agentq/internal/script"
)

// Request is a fully rendered request ready to send.
type Request struct {
	Method  string
	URL     string
	Headers []script.Header
	Body    string
}

type Response struct {
	Status  int
	Body    []byte
	Elapsed time.Duration // zero means the caller measures
	Bytes   int64
}

// Transport performs one request. Implementations must be safe for use by
// many agents at once.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (*Response, error)

func (f TransportFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPTransport sends requests over a shared, pooled http.Client.
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &HTTPTransport{Client: &http.Client{
		Timeout:   timeout,
		Transport: t,
	}}
}

func (h *HTTPTransport) Do(ctx context.Context, r Request) (*Response, error) {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for _, hd := range r.Headers {
		req.Header.Add(hd.Name, hd.Value)
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		Status:  resp.StatusCode,
		Body:    b,
		Elapsed: elapsed,
		Bytes:   int64(len(b)),
	}, nil
}
