package jmap

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout        = 30 * time.Second
	defaultConnectTimeout = 5 * time.Second
	defaultTLSTimeout     = 5 * time.Second

	// maxErrorBody bounds how much of a failed reply is kept in HTTPStatusError.
	maxErrorBody = 512
)

// Transport sends one serialized request envelope to endpoint and returns the
// serialized reply. Implementations report *TransportError and
// *HTTPStatusError.
type Transport interface {
	Post(ctx context.Context, endpoint string, body []byte) ([]byte, error)
}

// HTTPTransport posts envelopes as application/json.
type HTTPTransport struct {
	HTTPClient *http.Client
	// Header is added to every request, e.g. Authorization.
	Header http.Header
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := &net.Dialer{
		Timeout: defaultConnectTimeout,
	}
	return &HTTPTransport{
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: defaultTLSTimeout,
			},
		},
	}
}

func (t *HTTPTransport) Post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := respBody
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(excerpt))}
	}
	return respBody, nil
}
