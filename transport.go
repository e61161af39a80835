package statsnet

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Transport delivers one payload to the collector.
// Post blocks until the delivery succeeded or failed; it owns its timeout policy.
type Transport interface {
	Post(ctx context.Context, target string, payload Payload) error
}

// PostFunc adapts a plain function to the Transport interface
type PostFunc func(ctx context.Context, target string, payload Payload) error

// Post implements Transport
func (f PostFunc) Post(ctx context.Context, target string, payload Payload) error {
	return f(ctx, target, payload)
}

// StatusError is returned when the collector answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("statsnet: collector status: %s", e.Status)
}

// HTTPTransportOptions configures NewHTTPTransport
type HTTPTransportOptions struct {
	// HTTPClient overrides the default client (10s timeout)
	HTTPClient *http.Client

	// Resolver resolves the collector host through custom DNS servers.
	// Ignored when HTTPClient is set.
	Resolver *Resolver

	Logger *zap.Logger
}

// HTTPTransport posts the payload as a form field named "metrics"
type HTTPTransport struct {
	hc     *http.Client
	logger *zap.Logger
}

// NewHTTPTransport creates the default transport
func NewHTTPTransport(opts HTTPTransportOptions) *HTTPTransport {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := opts.HTTPClient
	if hc == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Resolver != nil {
			tr.DialContext = opts.Resolver.DialContext(&net.Dialer{Timeout: 5 * time.Second})
			opts.Resolver.onChange(func(host string, ips []string) {
				tr.CloseIdleConnections()
				logger.Info("collector address changed, dropped idle connections",
					zap.String("host", host), zap.Strings("ips", ips))
			})
		}
		hc = &http.Client{Timeout: 10 * time.Second, Transport: tr}
	}

	return &HTTPTransport{hc: hc, logger: logger}
}

// Post implements Transport
func (t *HTTPTransport) Post(ctx context.Context, target string, payload Payload) error {
	err := t.post(ctx, target, payload)
	if err != nil {
		t.logger.Warn("failed to post metrics",
			zap.String("target", target),
			zap.Int("entries", payload.Len()),
			zap.Error(err))
	}
	return err
}

func (t *HTTPTransport) post(ctx context.Context, target string, payload Payload) error {
	body := payload.Form().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("statsnet: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("statsnet: post metrics: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}
