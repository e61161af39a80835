package statsnet

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

type post struct {
	target  string
	payload Payload
}

// recordingTransport is a Transport test double that keeps every payload
type recordingTransport struct {
	mu          sync.Mutex
	posts       []post
	err         error
	panicMsg    string
	delay       time.Duration
	inflight    int
	maxInflight int
}

func (r *recordingTransport) Post(_ context.Context, target string, payload Payload) error {
	r.mu.Lock()
	r.inflight++
	if r.inflight > r.maxInflight {
		r.maxInflight = r.inflight
	}
	r.posts = append(r.posts, post{target: target, payload: payload})
	err, panicMsg, delay := r.err, r.panicMsg, r.delay
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inflight--
		r.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	return err
}

func (r *recordingTransport) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *recordingTransport) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posts)
}

func (r *recordingTransport) bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.posts))
	for i, p := range r.posts {
		out[i] = p.payload.String()
	}
	return out
}

func (r *recordingTransport) last() post {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.posts) == 0 {
		return post{}
	}
	return r.posts[len(r.posts)-1]
}

// countTotal sums every count entry with the given key across all posts
func (r *recordingTransport) countTotal(key string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, p := range r.posts {
		for _, e := range p.payload {
			if e.Kind == KindCount && e.Key == key {
				n, _ := strconv.ParseInt(e.Value, 10, 64)
				total += n
			}
		}
	}
	return total
}

var errCollectorDown = errors.New("collector down")

// stepClock returns a clock advancing by step on every call
func stepClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func manualConfig(tr Transport) Config {
	return Config{
		TargetURL:     "http://foo.com/",
		Namespace:     "test",
		FlushInterval: NoFlushInterval,
		Transport:     tr,
	}
}

// newManualClient returns a client without scheduler whose clock never moves,
// so no post latency is reported unless a test swaps the clock.
func newManualClient(tr Transport) *Client {
	c, err := New(manualConfig(tr))
	if err != nil {
		panic(err)
	}
	frozen := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return frozen }
	return c
}
