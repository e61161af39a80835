package statsnet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eryajf/promwrite"
	"go.uber.org/zap"
)

// RemoteWriteOptions configures NewRemoteWriteTransport
type RemoteWriteOptions struct {
	// Labels are attached to every series
	Labels map[string]string
	Logger *zap.Logger
}

// RemoteWriteTransport ships payloads to a Prometheus Remote Write endpoint.
// The target passed to Post selects the endpoint; clients are reused per target.
// A RemoteWriteTransport may be shared by several Clients.
type RemoteWriteTransport struct {
	labels map[string]string
	logger *zap.Logger
	now    func() time.Time

	clientsMutex sync.Mutex
	clients      map[string]*promwrite.Client
}

// NewRemoteWriteTransport creates a remote write transport
func NewRemoteWriteTransport(opts RemoteWriteOptions) *RemoteWriteTransport {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteWriteTransport{
		labels:  opts.Labels,
		logger:  logger,
		clients: make(map[string]*promwrite.Client),
		now:     time.Now,
	}
}

// Post implements Transport
func (t *RemoteWriteTransport) Post(ctx context.Context, target string, payload Payload) error {
	client := t.client(target)

	series, err := t.convertToTimeSeries(payload)
	if err != nil {
		return err
	}

	if _, err := client.Write(ctx, &promwrite.WriteRequest{TimeSeries: series}); err != nil {
		t.logger.Warn("failed to write metrics",
			zap.String("target", target),
			zap.Int("series", len(series)),
			zap.Error(err))
		return fmt.Errorf("statsnet: writing time series failed: %w", err)
	}
	return nil
}

// client returns the promwrite client for target, creating it on first use
func (t *RemoteWriteTransport) client(target string) *promwrite.Client {
	t.clientsMutex.Lock()
	defer t.clientsMutex.Unlock()

	client, ok := t.clients[target]
	if !ok {
		client = promwrite.NewClient(target)
		t.clients[target] = client
	}
	return client
}

// convertToTimeSeries maps every entry to one sample
func (t *RemoteWriteTransport) convertToTimeSeries(payload Payload) ([]promwrite.TimeSeries, error) {
	now := t.now()
	result := make([]promwrite.TimeSeries, 0, payload.Len())

	for _, e := range payload {
		v, err := e.Float()
		if err != nil {
			return nil, fmt.Errorf("statsnet: entry %q: %w", e.String(), err)
		}

		labels := make([]promwrite.Label, 0, 2+len(t.labels))
		labels = append(labels,
			promwrite.Label{Name: "__name__", Value: promName(e.Key)},
			promwrite.Label{Name: "statsd_type", Value: e.Kind.Suffix()},
		)
		for k, val := range t.labels {
			labels = append(labels, promwrite.Label{Name: k, Value: val})
		}

		result = append(result, promwrite.TimeSeries{
			Labels: labels,
			Sample: promwrite.Sample{
				Time:  now,
				Value: v,
			},
		})
	}

	return result, nil
}

// promName maps characters Prometheus does not accept in metric names to '_'
func promName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			return r
		case r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}
