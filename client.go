package statsnet

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client buffers counts, timings and gauges and posts them as one batch
// on every flush.
type Client struct {
	config    Config
	transport Transport
	buf       *buffer

	// flushMutex serializes flush cycles; lastLatency is only touched under it
	flushMutex  sync.Mutex
	lastLatency time.Duration
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// stateMutex orders inflight.Add against Close
	stateMutex sync.Mutex
	closed     bool
	inflight   sync.WaitGroup
	closeOnce  sync.Once
}

// New creates a client and, unless the flush interval is NoFlushInterval,
// starts flushing in the background.
func New(config Config) (*Client, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	transport := config.Transport
	if transport == nil {
		var err error
		if transport, err = NewTransport(config); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:    config,
		transport: transport,
		buf:       newBuffer(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}

	if config.periodic() {
		c.wg.Add(1)
		go c.pump()
	}

	config.Logger.Info("statsnet client started",
		zap.String("target", config.TargetURL),
		zap.String("namespace", config.Namespace),
		zap.Duration("flush_interval", config.FlushInterval),
		zap.Bool("periodic", config.periodic()))

	return c, nil
}

// Count adds value to the named counter
func (c *Client) Count(name string, value int64) {
	c.buf.add(name, value)
}

// Increment adds 1 to the named counter
func (c *Client) Increment(name string) {
	c.buf.add(name, 1)
}

// Gauge sets the named gauge, replacing any value set since the last flush
func (c *Client) Gauge(name string, value float64) {
	c.buf.set(name, value)
}

// Timing records a latency in milliseconds
func (c *Client) Timing(name string, milliseconds int64) {
	c.buf.observe(name, milliseconds)
}

// TimingDuration records d truncated to whole milliseconds
func (c *Client) TimingDuration(name string, d time.Duration) {
	c.buf.observe(name, d.Milliseconds())
}

// Pending returns the number of entries the next flush would send, before
// internal metrics and the size cap are applied.
func (c *Client) Pending() int {
	return c.buf.size()
}

// Flush sends everything recorded so far. The aggregates are snapshotted and
// reset before Flush returns; later recordings belong to the next flush.
// The returned channel is closed once the transport call finished, whatever
// its outcome. After Close the post runs synchronously.
func (c *Client) Flush() <-chan struct{} {
	c.stateMutex.Lock()
	snap := c.buf.take()
	if c.closed {
		c.stateMutex.Unlock()
		c.flush(snap)
		return closedChan
	}
	c.inflight.Add(1)
	c.stateMutex.Unlock()

	done := make(chan struct{})
	go func() {
		defer c.inflight.Done()
		defer close(done)
		c.flush(snap)
	}()
	return done
}

// Close stops the scheduler, flushes what is left and waits for in-flight
// flushes. Posts are not cancelled, so Close can block for as long as the
// transport takes to give up (10s for the default HTTP transport).
// Recording after Close is allowed but nothing is sent until Flush.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.stateMutex.Lock()
		c.closed = true
		c.stateMutex.Unlock()

		c.cancel()
		c.wg.Wait()
		c.flush(c.buf.take())
		c.inflight.Wait()
		c.config.Logger.Info("statsnet client closed", zap.String("target", c.config.TargetURL))
	})
}

// pump flushes on a timer that is re-armed after every flush
func (c *Client) pump() {
	defer c.wg.Done()

	timer := time.NewTimer(c.config.FlushInterval)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
			if c.config.RuntimeStats {
				RecordRuntimeStats(c)
			}
			c.flush(c.buf.take())
			timer.Reset(c.config.FlushInterval)
		}
	}
}

// flush posts one snapshot: build, post, record latency
func (c *Client) flush(snap snapshot) {
	if snap.empty() {
		return
	}

	c.flushMutex.Lock()
	defer c.flushMutex.Unlock()

	if ms := c.lastLatency.Milliseconds(); !c.config.DisableInternalMetrics && ms > 0 {
		snap.timings = append(snap.timings, timing{name: InternalPostMetric, millis: ms})
	}

	payload, dropped := buildPayload(c.config.Namespace, snap).keep(c.config.MaxBufferSize)

	c.config.Logger.Debug("flushing metrics",
		zap.Int("entries", payload.Len()),
		zap.Int("dropped", dropped))

	start := c.now()
	if err := c.safePost(payload); err != nil {
		c.lastLatency = 0
		return
	}
	c.lastLatency = c.now().Sub(start)
}

// safePost calls the transport with panic recovery
func (c *Client) safePost(payload Payload) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("transport panicked: %v\n%s", v, debug.Stack())
		}
	}()
	return c.transport.Post(context.Background(), c.config.TargetURL, payload)
}
